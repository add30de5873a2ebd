// Package reconciler drives synchronization from the source of truth to the
// target directory. A full run reads every in-scope org unit and person,
// compares them with a fresh target snapshot and applies the difference in
// dependency order. A single run does the same for one entity.
package reconciler

import (
	"cmp"
	"context"
	"iter"
	"slices"

	"github.com/google/uuid"

	"github.com/agentstation/orgsync/internal/source"
	"github.com/agentstation/orgsync/pkg/cache"
	"github.com/agentstation/orgsync/pkg/differ"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
)

// Source reads and transforms source entities.
type Source interface {
	Scope(ctx context.Context, root string, hierarchyFilter []string) (*source.Scope, error)
	OrgUnits(scope *source.Scope) iter.Seq2[payload.OrgUnit, error]
	ReadPersons(ctx context.Context, scope *source.Scope) iter.Seq2[payload.User, error]
	ReadOne(ctx context.Context, kind payload.Kind, id string) (payload.Record, error)
}

// Target is the target directory: snapshots, single reads and mutations.
type Target interface {
	mutation.Target
	RequestSnapshot(ctx context.Context) (*payload.SyncJob, error)
	WaitAndFetch(ctx context.Context, job *payload.SyncJob) (*payload.Snapshot, error)
	FetchOrgUnit(ctx context.Context, id string) (*payload.OrgUnit, error)
	FetchUser(ctx context.Context, id string) (*payload.User, error)
}

// Cache remembers the hash of every payload pushed to the target.
type Cache interface {
	differ.HashLookup
	mutation.HashStore
	Invalidate(id string)
	Load() error
	Save() error
}

// Observer receives mutation outcomes and run summaries.
type Observer interface {
	mutation.Observer
	ObserveRun(report *Report, err error)
}

// Reconciler synchronizes source entities into the target.
type Reconciler struct {
	source Source
	target Target
	cache  Cache
	opts   *options
}

// New creates a Reconciler. Without WithCache a memory-only cache is used.
func New(src Source, tgt Target, opts ...Option) (*Reconciler, error) {
	if src == nil || tgt == nil {
		return nil, errors.NewConfigError("reconciler", "source and target are required", nil)
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	c := o.cache
	if c == nil {
		c = cache.New("")
	}
	return &Reconciler{source: src, target: tgt, cache: c, opts: o}, nil
}

// RunFull synchronizes every entity under scopeRoot. The cache is loaded
// first and saved on return whatever the outcome. Per-entity failures are
// collected in the report; the returned error is set only for failures that
// abort the run (snapshot timeout, unreachable systems, cancellation).
func (r *Reconciler) RunFull(ctx context.Context, scopeRoot string) (*Report, error) {
	ctx = logging.WithRun(ctx, uuid.NewString())
	report := r.newReport(ctx, scopeRoot)
	logging.FromContext(ctx).Info().Str("root", scopeRoot).Msg("Starting full sync")

	r.loadCache(ctx)
	defer r.saveCache(ctx)

	plan, err := r.plan(ctx, scopeRoot, report, false)
	if err == nil {
		err = r.apply(ctx, plan)
	}
	r.finish(ctx, report, err)
	return report, err
}

// Plan computes what a full run would send without mutating the target.
// Updates carry field-level changes.
func (r *Reconciler) Plan(ctx context.Context, scopeRoot string) (*Plan, error) {
	ctx = logging.WithRun(ctx, uuid.NewString())
	report := r.newReport(ctx, scopeRoot)
	logging.FromContext(ctx).Info().Str("root", scopeRoot).Msg("Planning full sync")

	r.loadCache(ctx)
	plan, err := r.plan(ctx, scopeRoot, report, true)
	r.finish(ctx, report, err)
	return plan, err
}

func (r *Reconciler) plan(ctx context.Context, scopeRoot string, report *Report, tracking bool) (*Plan, error) {
	logger := logging.FromContext(ctx)

	// Step 1: trigger the snapshot so the target builds it while we read
	job, err := r.target.RequestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("request_uuid", job.RequestUUID).Msg("Requested target snapshot")

	// Step 2: read and transform the source
	scope, err := r.source.Scope(ctx, scopeRoot, r.opts.hierarchyFilter)
	if err != nil {
		return nil, err
	}
	units, err := collect(ctx, report, payload.KindOrgUnit, r.source.OrgUnits(scope))
	if err != nil {
		return nil, err
	}
	users, err := collect(ctx, report, payload.KindUser, r.source.ReadPersons(ctx, scope))
	if err != nil {
		return nil, err
	}
	logger.Info().Int("org_units", len(units)).Int("users", len(users)).Msg("Read source")

	// Step 3: wait for the snapshot
	snapshot, err := r.target.WaitAndFetch(ctx, job)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int("org_units", len(snapshot.OrgUnits)).
		Int("users", len(snapshot.Users)).
		Msg("Fetched target snapshot")

	// Step 4: diff
	d := differ.New(
		differ.WithOwnership(r.opts.ownership),
		differ.WithCache(r.cache),
		differ.WithPrefilter(r.opts.prefilter),
		differ.WithTracking(tracking),
	)
	plan := &Plan{
		OrgUnits:    differ.Diff(d, units, snapshot.OrgUnits),
		Users:       differ.Diff(d, users, snapshot.Users),
		report:      report,
		depths:      payload.Depths(units),
		storedDepth: payload.Depths(snapshot.OrgUnits),
	}
	report.OrgUnits.Unchanged = len(plan.OrgUnits.Unchanged)
	report.Users.Unchanged = len(plan.Users.Unchanged)
	logger.Info().
		Str("org_units", plan.OrgUnits.Summary()).
		Str("users", plan.Users.Summary()).
		Msg("Computed changes")
	return plan, nil
}

// apply sends org-unit upserts parent-first, then user upserts and deletes,
// then org-unit deletes deepest-first.
func (r *Reconciler) apply(ctx context.Context, plan *Plan) error {
	a := mutation.New(r.target, mutation.WithCache(r.cache), mutation.WithObserver(r.opts.observer))
	report := plan.report

	upserts := plan.OrgUnits.Upserts()
	slices.SortStableFunc(upserts, func(x, y differ.Upsert[payload.OrgUnit]) int {
		return cmp.Compare(plan.depths[x.ID], plan.depths[y.ID])
	})
	applied, err := mutation.Apply(ctx, a, upserts, nil)
	report.merge(payload.KindOrgUnit, applied)
	if err != nil {
		return err
	}

	applied, err = mutation.Apply(ctx, a, plan.Users.Upserts(), plan.Users.Deletes())
	report.merge(payload.KindUser, applied)
	if err != nil {
		return err
	}

	deletes := plan.OrgUnits.Deletes()
	slices.SortStableFunc(deletes, func(x, y differ.Delete[payload.OrgUnit]) int {
		return cmp.Compare(plan.storedDepth[y.ID], plan.storedDepth[x.ID])
	})
	applied, err = mutation.Apply(ctx, a, nil, deletes)
	report.merge(payload.KindOrgUnit, applied)
	return err
}

// collect drains a source sequence. Validation errors and duplicate
// identities skip the entity; any other error aborts.
func collect[T payload.Record](ctx context.Context, report *Report, kind payload.Kind, seq iter.Seq2[T, error]) ([]T, error) {
	logger := logging.FromContext(ctx)
	var out []T
	seen := make(map[string]bool)

	for item, err := range seq {
		if err != nil {
			if !errors.IsValidationError(err) {
				return nil, err
			}
			report.skip(kind, err)
			logger.Warn().Err(err).Str("kind", kind.String()).Msg("Skipping invalid entity")
			continue
		}

		id := item.Identity()
		if seen[id] {
			conflict := &errors.IdentityConflictError{
				Identity: id,
				Details:  []string{"produced by more than one source " + kind.String()},
			}
			report.skip(kind, conflict)
			logger.Warn().Err(conflict).Str("kind", kind.String()).Str("entity_id", id).Msg("Skipping duplicate identity")
			continue
		}
		seen[id] = true
		out = append(out, item)
	}
	return out, ctx.Err()
}

// RunSingle synchronizes one entity by source uuid. An entity missing from
// the source, or a person without positions, is deleted from the target.
// With dryRun the result describes what would be sent and nothing is
// mutated. Otherwise the entity's cache entry is invalidated and the cache
// saved, so the next full run compares against the target again.
func (r *Reconciler) RunSingle(ctx context.Context, kind payload.Kind, id string, dryRun bool) (*SingleResult, error) {
	ctx = logging.WithEntity(logging.WithRun(ctx, uuid.NewString()), kind.String(), id)

	rec, err := r.source.ReadOne(ctx, kind, id)
	switch {
	case errors.IsNotFound(err):
		rec = nil
	case err != nil:
		return nil, err
	}
	identity := id
	if rec != nil {
		identity = rec.Identity()
	}

	d := differ.New(differ.WithOwnership(r.opts.ownership), differ.WithTracking(true))

	switch kind {
	case payload.KindOrgUnit:
		existing, err := fetchExisting(r.target.FetchOrgUnit(ctx, identity))
		if err != nil {
			return nil, err
		}
		var src *payload.OrgUnit
		if rec != nil {
			v := rec.(payload.OrgUnit)
			src = &v
		}
		return runOne(ctx, r, kind, identity, differ.DiffOne(d, src, existing), dryRun)
	case payload.KindUser:
		existing, err := fetchExisting(r.target.FetchUser(ctx, identity))
		if err != nil {
			return nil, err
		}
		var src *payload.User
		if rec != nil {
			v := rec.(payload.User)
			src = &v
		}
		return runOne(ctx, r, kind, identity, differ.DiffOne(d, src, existing), dryRun)
	default:
		return nil, &errors.EntityValidationError{Kind: string(kind), ID: id, Message: "unknown kind"}
	}
}

func fetchExisting[T any](v *T, err error) (*T, error) {
	if errors.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func runOne[T payload.Record](ctx context.Context, r *Reconciler, kind payload.Kind, id string, cs *differ.Changeset[T], dryRun bool) (*SingleResult, error) {
	logger := logging.FromContext(ctx)
	res := &SingleResult{Kind: kind, ID: id, Action: cs.Action(), DryRun: dryRun}
	if ups := cs.Upserts(); len(ups) > 0 {
		res.Payload = ups[0].Payload
		res.Changes = ups[0].Changes
	}

	if dryRun {
		logger.Info().Str("action", string(res.Action)).Msg("Dry run, nothing sent")
		return res, nil
	}

	r.cache.Invalidate(id)
	defer r.saveCache(ctx)

	if !cs.HasChanges() {
		logger.Info().Str("action", string(res.Action)).Msg("Nothing to send")
		return res, nil
	}

	a := mutation.New(r.target, mutation.WithObserver(r.opts.observer))
	applied, err := mutation.Apply(ctx, a, cs.Upserts(), cs.Deletes())
	res.Applied = applied
	if err != nil {
		return res, err
	}
	if applied.HasFailures() {
		return res, applied.Failed[0].Err
	}
	logger.Info().Str("action", string(res.Action)).Msg("Synchronized entity")
	return res, nil
}

func (r *Reconciler) newReport(ctx context.Context, root string) *Report {
	return &Report{
		RunID:     logging.RunID(ctx),
		Root:      root,
		StartTime: r.opts.clock.Now(),
	}
}

func (r *Reconciler) finish(ctx context.Context, report *Report, err error) {
	report.EndTime = r.opts.clock.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	logger := logging.FromContext(ctx)
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	} else if report.HasFailures() {
		event = logger.Warn()
	}
	event.
		Int("org_units_created", report.OrgUnits.Created).
		Int("org_units_updated", report.OrgUnits.Updated).
		Int("org_units_deleted", report.OrgUnits.Deleted).
		Int("org_units_unchanged", report.OrgUnits.Unchanged).
		Int("users_created", report.Users.Created).
		Int("users_updated", report.Users.Updated).
		Int("users_deleted", report.Users.Deleted).
		Int("users_unchanged", report.Users.Unchanged).
		Int("skipped", report.OrgUnits.Skipped+report.Users.Skipped).
		Int("failed", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("Sync finished")

	if r.opts.observer != nil {
		r.opts.observer.ObserveRun(report, err)
	}
}

func (r *Reconciler) loadCache(ctx context.Context) {
	if err := r.cache.Load(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Could not load cache, starting empty")
	}
}

func (r *Reconciler) saveCache(ctx context.Context) {
	if err := r.cache.Save(); err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("Could not save cache")
	}
}
