// Package mutation applies upserts and deletes to the target one entity at a
// time, isolating per-entity failures.
package mutation

import (
	"context"
	"fmt"

	"github.com/agentstation/orgsync/pkg/differ"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/payload"
)

// Operation names.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Target is the write side of the target directory.
type Target interface {
	Upsert(ctx context.Context, r payload.Record) error
	Delete(ctx context.Context, kind payload.Kind, id string) error
}

// HashStore records what has been pushed.
type HashStore interface {
	Set(id, hash string)
	Delete(id string)
}

// Observer is notified of every attempted mutation.
type Observer interface {
	ObserveMutation(kind payload.Kind, op string, err error)
}

// Failure describes one failed mutation.
type Failure struct {
	Kind      payload.Kind
	ID        string
	Operation string
	ErrorKind string
	Err       error
}

// Report counts applied mutations and collects failures.
type Report struct {
	Created int
	Updated int
	Deleted int
	Failed  []Failure
}

// Applied returns the number of successful mutations.
func (r *Report) Applied() int { return r.Created + r.Updated + r.Deleted }

// HasFailures reports whether any mutation failed.
func (r *Report) HasFailures() bool { return len(r.Failed) > 0 }

// Merge adds other's counts and failures to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Created += other.Created
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	r.Failed = append(r.Failed, other.Failed...)
}

// String summarises the report.
func (r *Report) String() string {
	return fmt.Sprintf("%d created, %d updated, %d deleted, %d failed", r.Created, r.Updated, r.Deleted, len(r.Failed))
}

// Applier executes mutations.
type Applier struct {
	target   Target
	cache    HashStore
	observer Observer
}

// Option configures an Applier.
type Option func(*Applier)

// WithCache records hashes of successful upserts and forgets deleted ids.
func WithCache(c HashStore) Option {
	return func(a *Applier) { a.cache = c }
}

// WithObserver sets the mutation observer.
func WithObserver(o Observer) Option {
	return func(a *Applier) { a.observer = o }
}

// New creates an Applier writing to target.
func New(target Target, opts ...Option) *Applier {
	a := &Applier{target: target}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply sends upserts then deletes. Each mutation is independent: failures
// are collected in the report and the batch continues. Cancellation is
// checked between entities, and a systemic failure (authorisation,
// cancellation) stops the batch; both are returned as the error alongside
// the report of what was applied.
func Apply[T payload.Record](ctx context.Context, a *Applier, upserts []differ.Upsert[T], deletes []differ.Delete[T]) (*Report, error) {
	report := &Report{}

	for _, up := range upserts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := a.target.Upsert(ctx, up.Payload)
		if stop := a.record(ctx, report, up.Payload.Kind(), up.ID, OpUpsert, err); stop != nil {
			return report, stop
		}
		if err != nil {
			continue
		}
		if up.Previous == nil {
			report.Created++
		} else {
			report.Updated++
		}
		if a.cache != nil && up.Hash != "" {
			a.cache.Set(up.ID, up.Hash)
		}
	}

	for _, del := range deletes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		kind := del.Stored.Kind()
		err := a.target.Delete(ctx, kind, del.ID)
		if stop := a.record(ctx, report, kind, del.ID, OpDelete, err); stop != nil {
			return report, stop
		}
		if err != nil {
			continue
		}
		report.Deleted++
		if a.cache != nil {
			a.cache.Delete(del.ID)
		}
	}

	return report, nil
}

// record logs and observes one outcome. It returns a non-nil error when the
// failure must abort the batch.
func (a *Applier) record(ctx context.Context, report *Report, kind payload.Kind, id, op string, err error) error {
	if a.observer != nil {
		a.observer.ObserveMutation(kind, op, err)
	}
	log := logging.FromContext(ctx)
	if err == nil {
		log.Debug().Str("kind", kind.String()).Str("entity_id", id).Str("operation", op).Msg("Applied mutation")
		return nil
	}

	merr := errors.NewMutationError(kind.String(), id, op, err)
	report.Failed = append(report.Failed, Failure{
		Kind:      kind,
		ID:        id,
		Operation: op,
		ErrorKind: merr.ErrorKind(),
		Err:       merr,
	})
	log.Error().
		Err(err).
		Str("kind", kind.String()).
		Str("entity_id", id).
		Str("operation", op).
		Str("error_kind", merr.ErrorKind()).
		Msg("Mutation failed")

	if ctx.Err() != nil || errors.IsSystemic(err) {
		return merr
	}
	return nil
}
