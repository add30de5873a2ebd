// Package differ partitions source payloads and the target snapshot into
// upserts, deletes and unchanged identities.
package differ

import (
	"github.com/agentstation/orgsync/pkg/ownership"
	"github.com/agentstation/orgsync/pkg/payload"
)

// HashLookup is the read side of the hash cache.
type HashLookup interface {
	Get(id string) (string, bool)
}

// Differ compares source payloads with the target's stored state.
type Differ struct {
	table     *ownership.Table
	cache     HashLookup
	prefilter bool
	tracking  bool
}

// New creates a Differ. Without options it uses the default ownership table,
// no cache pre-filter and no field-change tracking.
func New(opts ...Option) *Differ {
	d := &Differ{table: ownership.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ownership returns the table used to merge target-owned fields.
func (d *Differ) Ownership() *ownership.Table { return d.table }

// Diff partitions every identity in source and snapshot into exactly one of
// the changeset's created, updated, deleted or unchanged sets.
func Diff[T payload.Record](d *Differ, source, snapshot []T) *Changeset[T] {
	cs := &Changeset[T]{}

	existing := make(map[string]T, len(snapshot))
	for _, item := range snapshot {
		if _, dup := existing[item.Identity()]; !dup {
			existing[item.Identity()] = item
		}
	}

	seen := make(map[string]bool, len(source)+len(snapshot))
	for _, src := range source {
		id := src.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true

		if old, ok := existing[id]; ok {
			classify(d, cs, src, &old)
		} else {
			classify(d, cs, src, nil)
		}
	}

	for _, item := range snapshot {
		id := item.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		cs.Deleted = append(cs.Deleted, Delete[T]{ID: id, Existing: true, Stored: item})
	}

	return cs
}

// DiffOne classifies a single identity. Either side may be nil; with both
// nil the changeset is empty.
func DiffOne[T payload.Record](d *Differ, source, existing *T) *Changeset[T] {
	cs := &Changeset[T]{}
	switch {
	case source != nil:
		classify(d, cs, *source, existing)
	case existing != nil:
		cs.Deleted = append(cs.Deleted, Delete[T]{ID: (*existing).Identity(), Existing: true, Stored: *existing})
	}
	return cs
}

func classify[T payload.Record](d *Differ, cs *Changeset[T], src T, existing *T) {
	id := src.Identity()

	if src.MustDelete() {
		del := Delete[T]{ID: id, Existing: existing != nil}
		if existing != nil {
			del.Stored = *existing
		}
		cs.Deleted = append(cs.Deleted, del)
		return
	}

	if existing == nil {
		hash, _ := payload.Hash(src)
		cs.Created = append(cs.Created, Upsert[T]{ID: id, Payload: src, Hash: hash})
		return
	}

	merged := ownership.MergeForward(d.table, src, *existing)
	hash, err := payload.Hash(merged)

	if d.prefilter && d.cache != nil && err == nil {
		if cached, ok := d.cache.Get(id); ok && cached == hash {
			cs.Unchanged = append(cs.Unchanged, id)
			return
		}
	}

	if payload.Equal(merged, *existing) {
		cs.Unchanged = append(cs.Unchanged, id)
		return
	}

	up := Upsert[T]{ID: id, Payload: merged, Previous: existing, Hash: hash}
	if d.tracking {
		up.Changes = fieldChanges(*existing, merged)
	}
	cs.Updated = append(cs.Updated, up)
}
