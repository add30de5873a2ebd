// Package duplicates finds and repairs target entries that carry the same
// identity more than once. They appear when identities are remapped through
// an identity it-system and the mapping changes between runs. The main sync
// never resolves them on its own.
package duplicates

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/agentstation/orgsync/pkg/differ"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// Reason says why an entry was flagged.
type Reason string

const (
	// ReasonRepeatedPosition marks a user holding the same position twice.
	ReasonRepeatedPosition Reason = "repeated_position"
	// ReasonRepeatedIdentity marks an identity listed more than once.
	ReasonRepeatedIdentity Reason = "repeated_identity"
	// ReasonSharedUserID marks distinct identities sharing one user id.
	ReasonSharedUserID Reason = "shared_user_id"
)

// Duplicate is one finding.
type Duplicate struct {
	Kind     payload.Kind
	Identity string
	Reason   Reason
	Err      *errors.IdentityConflictError
}

func (d Duplicate) String() string {
	return fmt.Sprintf("%s %s (%s): %v", d.Kind, d.Identity, d.Reason, d.Err)
}

// FindDuplicates scans a snapshot. Findings are ordered by kind then
// identity.
func FindDuplicates(snapshot *payload.Snapshot) []Duplicate {
	if snapshot == nil {
		return nil
	}
	var found []Duplicate

	found = append(found, repeatedIdentities(snapshot.OrgUnits)...)
	found = append(found, repeatedIdentities(snapshot.Users)...)

	userIDs := make(map[string][]string)
	for _, u := range snapshot.Users {
		if details := repeatedPositions(u.Positions); len(details) > 0 {
			found = append(found, finding(payload.KindUser, u.UUID, ReasonRepeatedPosition, details))
		}
		if u.UserID != "" && !slices.Contains(userIDs[u.UserID], u.UUID) {
			userIDs[u.UserID] = append(userIDs[u.UserID], u.UUID)
		}
	}
	for userID, ids := range userIDs {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			others := slices.DeleteFunc(slices.Clone(ids), func(o string) bool { return o == id })
			found = append(found, finding(payload.KindUser, id, ReasonSharedUserID,
				[]string{"UserId " + userID + " also on " + strings.Join(others, ", ")}))
		}
	}

	slices.SortStableFunc(found, func(a, b Duplicate) int {
		if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
			return c
		}
		return strings.Compare(a.Identity, b.Identity)
	})
	return found
}

// Identities returns the distinct identities of findings of kind.
func Identities(found []Duplicate, kind payload.Kind) []string {
	var ids []string
	for _, d := range found {
		if d.Kind == kind && !slices.Contains(ids, d.Identity) {
			ids = append(ids, d.Identity)
		}
	}
	return ids
}

func finding(kind payload.Kind, id string, reason Reason, details []string) Duplicate {
	return Duplicate{
		Kind:     kind,
		Identity: id,
		Reason:   reason,
		Err:      &errors.IdentityConflictError{Identity: id, Details: details},
	}
}

func repeatedIdentities[T payload.Record](items []T) []Duplicate {
	counts := make(map[string]int)
	for _, item := range items {
		counts[item.Identity()]++
	}
	var found []Duplicate
	for id, n := range counts {
		if n > 1 {
			var zero T
			found = append(found, finding(zero.Kind(), id, ReasonRepeatedIdentity,
				[]string{fmt.Sprintf("listed %d times", n)}))
		}
	}
	return found
}

// repeatedPositions returns "OrgUnitUuid/Name" for every position that
// occurs more than once.
func repeatedPositions(positions []payload.Position) []string {
	seen := make(map[string]int)
	var details []string
	for _, p := range positions {
		key := p.OrgUnitUUID + "/" + p.Name
		seen[key]++
		if seen[key] == 2 {
			details = append(details, key)
		}
	}
	return details
}

// Target is the part of the target client the fixer uses.
type Target interface {
	mutation.Target
	Snapshot(ctx context.Context) (*payload.Snapshot, error)
}

// Resolver maps target identities back to source uuids.
type Resolver interface {
	ResolveIdentity(ctx context.Context, kind payload.Kind, identity string) ([]string, error)
}

// Syncer re-sends one source entity.
type Syncer interface {
	RunSingle(ctx context.Context, kind payload.Kind, id string, dryRun bool) (*reconciler.SingleResult, error)
}

// Fixer inspects and repairs duplicates.
type Fixer struct {
	target   Target
	resolver Resolver
	syncer   Syncer
	observer mutation.Observer
}

// Option configures a Fixer.
type Option func(*Fixer)

// WithObserver observes the deletes sent by RemoveFromTarget.
func WithObserver(o mutation.Observer) Option {
	return func(f *Fixer) { f.observer = o }
}

// NewFixer creates a Fixer.
func NewFixer(target Target, resolver Resolver, syncer Syncer, opts ...Option) *Fixer {
	f := &Fixer{target: target, resolver: resolver, syncer: syncer}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find fetches a fresh snapshot and returns its duplicates.
func (f *Fixer) Find(ctx context.Context) ([]Duplicate, error) {
	snapshot, err := f.target.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	found := FindDuplicates(snapshot)

	logger := logging.FromContext(ctx)
	for _, d := range found {
		logger.Warn().
			Err(d.Err).
			Str("kind", d.Kind.String()).
			Str("entity_id", d.Identity).
			Str("reason", string(d.Reason)).
			Msg("Duplicate identity")
	}
	logger.Info().Int("duplicates", len(found)).Msg("Duplicate scan finished")
	return found, nil
}

// RemoveFromTarget deletes identities from the target. A missing identity
// counts as deleted.
func (f *Fixer) RemoveFromTarget(ctx context.Context, kind payload.Kind, ids []string) (*mutation.Report, error) {
	a := mutation.New(f.target, mutation.WithObserver(f.observer))
	switch kind {
	case payload.KindOrgUnit:
		return mutation.Apply(ctx, a, nil, deletes(ids, func(id string) payload.OrgUnit { return payload.OrgUnit{UUID: id} }))
	case payload.KindUser:
		return mutation.Apply(ctx, a, nil, deletes(ids, func(id string) payload.User { return payload.User{UUID: id} }))
	default:
		return nil, &errors.EntityValidationError{Kind: string(kind), Message: "unknown kind"}
	}
}

func deletes[T payload.Record](ids []string, stub func(string) T) []differ.Delete[T] {
	out := make([]differ.Delete[T], len(ids))
	for i, id := range ids {
		out[i] = differ.Delete[T]{ID: id, Existing: true, Stored: stub(id)}
	}
	return out
}

// ReExportResult is the outcome for one target identity.
type ReExportResult struct {
	Identity string
	Sources  []string
	Results  []*reconciler.SingleResult
	Err      error
}

// ReExport resolves each identity to its source entities and re-sends them,
// overwriting the duplicated entry with a clean payload. Failures are
// recorded per identity; only cancellation aborts.
func (f *Fixer) ReExport(ctx context.Context, kind payload.Kind, ids []string, dryRun bool) ([]ReExportResult, error) {
	results := make([]ReExportResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		logger := logging.FromContext(logging.WithEntity(ctx, kind.String(), id))

		res := ReExportResult{Identity: id}
		res.Sources, res.Err = f.resolver.ResolveIdentity(ctx, kind, id)
		if res.Err != nil {
			logger.Error().Err(res.Err).Msg("Cannot resolve identity to a source entity")
			results = append(results, res)
			continue
		}

		for _, src := range res.Sources {
			single, err := f.syncer.RunSingle(ctx, kind, src, dryRun)
			if err != nil {
				res.Err = err
				logger.Error().Err(err).Str("source_uuid", src).Msg("Re-export failed")
				continue
			}
			res.Results = append(res.Results, single)
		}
		results = append(results, res)
	}
	return results, nil
}
