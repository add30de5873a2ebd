package source

import (
	"context"
	"iter"
	"slices"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
)

// Reader reads source entities through a Backend and transforms them into
// target payloads.
type Reader struct {
	backend Backend
	opts    Options
}

// NewReader creates a Reader over backend.
func NewReader(backend Backend, opts ...Option) *Reader {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Reader{backend: backend, opts: o}
}

// Options returns the reader's transform options.
func (r *Reader) Options() Options { return r.opts }

// Close closes the backend.
func (r *Reader) Close() error { return r.backend.Close() }

// ReadOrgUnits yields the payload of every unit in the subtree under
// scopeRoot, parents before children. Malformed units are yielded as
// EntityValidationErrors; other errors end the sequence.
func (r *Reader) ReadOrgUnits(ctx context.Context, scopeRoot string, hierarchyFilter []string) iter.Seq2[payload.OrgUnit, error] {
	return func(yield func(payload.OrgUnit, error) bool) {
		scope, err := r.Scope(ctx, scopeRoot, hierarchyFilter)
		if err != nil {
			yield(payload.OrgUnit{}, err)
			return
		}
		for ou, err := range r.OrgUnits(scope) {
			if !yield(ou, err) {
				return
			}
		}
	}
}

// OrgUnits yields the payloads of the units in an already built scope.
func (r *Reader) OrgUnits(scope *Scope) iter.Seq2[payload.OrgUnit, error] {
	return func(yield func(payload.OrgUnit, error) bool) {
		for _, err := range scope.Problems {
			if !yield(payload.OrgUnit{}, err) {
				return
			}
		}
		for _, raw := range scope.units {
			ou, err := transformOrgUnit(raw, scope, r.opts)
			if !yield(ou, err) {
				return
			}
		}
	}
}

// ReadPersons yields the payload of every person with an engagement. Persons
// without engagements in scope are yielded with no positions so they are
// removed from the target. Malformed persons are yielded as
// EntityValidationErrors and reading continues; other errors end the
// sequence.
func (r *Reader) ReadPersons(ctx context.Context, scope *Scope) iter.Seq2[payload.User, error] {
	return func(yield func(payload.User, error) bool) {
		for raw, err := range r.backend.Persons(ctx) {
			if errors.IsValidationError(err) {
				if !yield(payload.User{}, err) {
					return
				}
				continue
			}
			if err != nil {
				yield(payload.User{}, err)
				return
			}
			user, err := transformPerson(raw, scope, r.opts)
			if err != nil && !errors.IsValidationError(err) {
				yield(payload.User{}, err)
				return
			}
			if !yield(user, err) {
				return
			}
		}
	}
}

// ReadOne reads and transforms a single entity by source uuid. Units outside
// the configured scope and unknown entities yield a NotFoundError.
func (r *Reader) ReadOne(ctx context.Context, kind payload.Kind, id string) (payload.Record, error) {
	scope, err := r.Scope(ctx, r.opts.RootUnit, r.opts.HierarchyFilter)
	if err != nil {
		return nil, err
	}

	switch kind {
	case payload.KindOrgUnit:
		for _, raw := range scope.units {
			if raw.UUID == id {
				return transformOrgUnit(raw, scope, r.opts)
			}
		}
		return nil, errors.NewNotFoundError(kind.String(), id)
	case payload.KindUser:
		raw, err := r.backend.Person(ctx, id)
		if err != nil {
			return nil, err
		}
		return transformPerson(*raw, scope, r.opts)
	default:
		return nil, &errors.EntityValidationError{Kind: string(kind), ID: id, Message: "unknown kind"}
	}
}

// ResolveIdentity maps a target identity back to source uuids. An identity
// equal to an existing source uuid resolves to itself; otherwise the
// identity it-systems are searched for accounts with that user key.
func (r *Reader) ResolveIdentity(ctx context.Context, kind payload.Kind, identity string) ([]string, error) {
	var err error
	switch kind {
	case payload.KindUser:
		_, err = r.backend.Person(ctx, identity)
	default:
		_, err = r.backend.OrgUnit(ctx, identity)
	}
	if err == nil {
		return []string{identity}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	if len(r.opts.IdentityITSystems) == 0 {
		return nil, errors.NewNotFoundError(kind.String(), identity)
	}
	owners, err := r.backend.FindByITAccount(ctx, kind, r.opts.IdentityITSystems, identity)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, errors.NewNotFoundError(kind.String(), identity)
	}
	slices.Sort(owners)
	return slices.Compact(owners), nil
}
