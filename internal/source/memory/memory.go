// Package memory is an in-process source backend holding fixed records.
// It backs tests and dry runs against exported data.
package memory

import (
	"context"
	"encoding/json"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/agentstation/orgsync/internal/source"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
)

// Backend serves org units and persons from memory.
type Backend struct {
	mu      sync.RWMutex
	units   []source.OrgUnit
	persons []source.Person
}

// New creates a backend holding the given records.
func New(units []source.OrgUnit, persons []source.Person) *Backend {
	return &Backend{units: units, persons: persons}
}

// Dump is the JSON layout read by Load.
type Dump struct {
	OrgUnits []source.OrgUnit `json:"org_units"`
	Persons  []source.Person  `json:"persons"`
}

// Load reads a JSON dump from path.
func Load(path string) (*Backend, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return New(d.OrgUnits, d.Persons), nil
}

// SetPerson adds or replaces a person.
func (b *Backend) SetPerson(p source.Person) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.persons {
		if b.persons[i].UUID == p.UUID {
			b.persons[i] = p
			return
		}
	}
	b.persons = append(b.persons, p)
}

// SetOrgUnit adds or replaces a unit.
func (b *Backend) SetOrgUnit(u source.OrgUnit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.units {
		if b.units[i].UUID == u.UUID {
			b.units[i] = u
			return
		}
	}
	b.units = append(b.units, u)
}

// RemovePerson deletes a person.
func (b *Backend) RemovePerson(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.persons = slices.DeleteFunc(b.persons, func(p source.Person) bool { return p.UUID == id })
}

// OrgUnits implements source.Backend.
func (b *Backend) OrgUnits(ctx context.Context) iter.Seq2[source.OrgUnit, error] {
	b.mu.RLock()
	units := slices.Clone(b.units)
	b.mu.RUnlock()
	return each(ctx, units)
}

// Persons implements source.Backend.
func (b *Backend) Persons(ctx context.Context) iter.Seq2[source.Person, error] {
	b.mu.RLock()
	persons := slices.Clone(b.persons)
	b.mu.RUnlock()
	return each(ctx, persons)
}

// OrgUnit implements source.Backend.
func (b *Backend) OrgUnit(_ context.Context, id string) (*source.OrgUnit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, u := range b.units {
		if u.UUID == id {
			return &u, nil
		}
	}
	return nil, errors.NewNotFoundError("orgunit", id)
}

// Person implements source.Backend.
func (b *Backend) Person(_ context.Context, id string) (*source.Person, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.persons {
		if p.UUID == id {
			return &p, nil
		}
	}
	return nil, errors.NewNotFoundError("user", id)
}

// FindByITAccount implements source.Backend.
func (b *Backend) FindByITAccount(_ context.Context, kind payload.Kind, systems []string, userKey string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	match := func(accounts []source.ITAccount) bool {
		return slices.ContainsFunc(accounts, func(a source.ITAccount) bool {
			return a.UserKey == userKey && slices.Contains(systems, a.System)
		})
	}

	var out []string
	if kind == payload.KindUser {
		for _, p := range b.persons {
			if match(p.ITAccounts) {
				out = append(out, p.UUID)
			}
		}
		return out, nil
	}
	for _, u := range b.units {
		if match(u.ITAccounts) {
			out = append(out, u.UUID)
		}
	}
	return out, nil
}

// Close implements source.Backend.
func (b *Backend) Close() error { return nil }

func each[T any](ctx context.Context, items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}
