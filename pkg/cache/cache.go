// Package cache persists the uuid to payload-hash map used to skip
// unchanged entities across runs. The file is a flat JSON object. Writes go
// to a temporary file that is renamed into place, and concurrent writers are
// serialised by an advisory lock on a sibling ".lock" file.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// Cache is a persisted identity to hash map. The zero path keeps the cache
// in memory only.
type Cache struct {
	path string

	mu      sync.RWMutex
	entries map[string]string
	// dirty records this process's changes since the last Save; a nil value
	// marks a removal.
	dirty map[string]*string
}

// New returns an empty cache bound to path. Call Load to read it.
func New(path string) *Cache {
	return &Cache{
		path:    path,
		entries: make(map[string]string),
		dirty:   make(map[string]*string),
	}
}

// Open creates a cache and loads it from disk.
func Open(path string) (*Cache, error) {
	c := New(path)
	if err := c.Load(); err != nil {
		return c, err
	}
	return c, nil
}

// Path returns the backing file path.
func (c *Cache) Path() string { return c.path }

// Load replaces the in-memory entries with the file's contents. A missing
// file yields an empty cache. Pending unsaved changes are kept.
func (c *Cache) Load() error {
	if c.path == "" {
		return nil
	}

	var entries map[string]string
	err := withLock(c.path+constants.LockSuffix, false, func() error {
		var rerr error
		entries, rerr = readFile(c.path)
		return rerr
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.applyDirtyLocked(c.entries)
	return nil
}

// Get returns the cached hash for id.
func (c *Cache) Get(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[id]
	return h, ok
}

// Set records the hash pushed for id.
func (c *Cache) Set(id, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = hash
	c.dirty[id] = &hash
}

// Delete removes id.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.dirty[id] = nil
}

// Invalidate forgets id so the next run compares it structurally.
func (c *Cache) Invalidate(id string) { c.Delete(id) }

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Dirty reports whether there are unsaved changes.
func (c *Cache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirty) > 0
}

// Save merges this process's changes into the file on disk and writes it
// atomically. The file is re-read under an exclusive lock so that changes
// saved by other processes since Load are kept.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("create", dir, err)
		}
	}

	err := withLock(c.path+constants.LockSuffix, true, func() error {
		onDisk, err := readFile(c.path)
		if err != nil {
			// A corrupt file is replaced; the cache is only an optimisation.
			onDisk = make(map[string]string)
		}
		c.applyDirtyLocked(onDisk)
		if err := writeFile(c.path, onDisk); err != nil {
			return err
		}
		c.entries = onDisk
		return nil
	})
	if err != nil {
		return err
	}

	c.dirty = make(map[string]*string)
	return nil
}

func (c *Cache) applyDirtyLocked(into map[string]string) {
	for id, h := range c.dirty {
		if h == nil {
			delete(into, id)
		} else {
			into[id] = *h
		}
	}
}

func readFile(path string) (map[string]string, error) {
	entries := make(map[string]string)
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, errors.WrapIO("read", path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return entries, nil
}

func writeFile(path string, entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.WrapParse("json", path, err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapIO("create", "temp file", err)
	}
	tempPath := tempFile.Name()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("write", tempPath, err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("sync", tempPath, err)
	}
	if err := tempFile.Chmod(constants.SecureFilePermissions); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("chmod", tempPath, err)
	}

	// Atomically move temp file to final location
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("move", path, err)
	}
	return nil
}
