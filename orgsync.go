// Package orgsync synchronizes organisational units and employees from an
// authoritative source into a target directory service. A Client wires the
// source backend, the target client, the hash cache and the reconciler
// together from a Config.
package orgsync

import (
	"context"
	"fmt"

	"github.com/agentstation/orgsync/internal/metrics"
	"github.com/agentstation/orgsync/internal/server"
	"github.com/agentstation/orgsync/internal/source"
	"github.com/agentstation/orgsync/internal/source/graphql"
	"github.com/agentstation/orgsync/internal/source/replica"
	"github.com/agentstation/orgsync/internal/target"
	"github.com/agentstation/orgsync/pkg/cache"
	"github.com/agentstation/orgsync/pkg/clock"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/duplicates"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/ownership"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
	"github.com/agentstation/orgsync/pkg/retry"
)

// Client runs synchronizations.
type Client struct {
	config     Config
	backend    source.Backend
	reader     *source.Reader
	target     *target.Client
	cache      *cache.Cache
	metrics    *metrics.Metrics
	reconciler *reconciler.Reconciler
	fixer      *duplicates.Fixer
}

// New validates cfg and builds a Client. The source backend is opened here;
// call Close to release it.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}

	// Step 1: validate before any network call
	if o.backend == nil {
		if err := cfg.validateSource(); err != nil {
			return nil, err
		}
	}
	if err := cfg.validateSync(); err != nil {
		return nil, err
	}

	table := ownership.Default()
	if cfg.Ownership.File != "" {
		var err error
		if table, err = ownership.Load(cfg.Ownership.File); err != nil {
			return nil, err
		}
	}

	reads := retry.Policy{
		MaxAttempts: cfg.Sync.ReadAttempts,
		Backoff:     cfg.Sync.RetryBackoff,
		MaxBackoff:  constants.MaxRetryBackoff,
		Clock:       o.clock,
	}
	mutations := reads
	mutations.MaxAttempts = cfg.Sync.MutationAttempts

	// Step 2: target client
	tgt, err := target.New(target.Config{
		URL:            cfg.Target.URL,
		CVR:            cfg.Target.CVR,
		APIKey:         cfg.Target.APIKey,
		Timeout:        cfg.Target.Timeout,
		PollInterval:   cfg.Sync.SnapshotInterval,
		PollBudget:     cfg.Sync.SnapshotBudget,
		ReadPolicy:     reads,
		MutationPolicy: mutations,
		Clock:          o.clock,
		HTTPClient:     o.httpClient,
	})
	if err != nil {
		return nil, err
	}

	// Step 3: source backend
	backend := o.backend
	if backend == nil {
		if backend, err = openBackend(ctx, cfg.Source, reads, o); err != nil {
			return nil, err
		}
	}
	reader := source.NewReader(backend,
		source.WithRootUnit(cfg.Sync.RootUnit),
		source.WithHierarchyFilter(cfg.Sync.HierarchyFilter...),
		source.WithAddressPriorities(cfg.Sync.PhonePriority, cfg.Sync.LandlinePriority, cfg.Sync.EmailPriority, cfg.Sync.PostPriority),
		source.WithContactForTasks(cfg.Sync.UseContactForTasks),
		source.WithIdentityITSystems(cfg.Sync.IdentityITSystems...),
		source.WithUserKeyITSystem(cfg.Sync.UserKeyITSystem),
		source.WithCpr(cfg.Sync.XferCpr),
		source.WithManagers(cfg.Sync.SyncManagers),
		source.WithNameMaxLength(cfg.Sync.NameMaxLength),
	)

	// Step 4: reconciler and duplicate fixer
	c := cache.New(cfg.Cache.Path)
	rec, err := reconciler.New(reader, tgt,
		reconciler.WithOwnership(table),
		reconciler.WithCache(c),
		reconciler.WithPrefilter(cfg.Cache.Prefilter),
		reconciler.WithHierarchyFilter(cfg.Sync.HierarchyFilter...),
		reconciler.WithObserver(o.metrics),
		reconciler.WithClock(o.clock),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &Client{
		config:     cfg,
		backend:    backend,
		reader:     reader,
		target:     tgt,
		cache:      c,
		metrics:    o.metrics,
		reconciler: rec,
		fixer:      duplicates.NewFixer(tgt, reader, rec, duplicates.WithObserver(o.metrics)),
	}, nil
}

func openBackend(ctx context.Context, cfg SourceConfig, reads retry.Policy, o *options) (source.Backend, error) {
	switch cfg.Backend {
	case BackendReplica:
		return replica.Connect(ctx, cfg.ReplicaDSN, cfg.PageSize)
	default:
		return graphql.New(ctx, graphql.Config{
			URL:          cfg.URL,
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			PageSize:     cfg.PageSize,
			ReadPolicy:   reads,
			HTTPClient:   o.httpClient,
		})
	}
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.config }

// Metrics returns the metrics the client records into.
func (c *Client) Metrics() *metrics.Metrics { return c.metrics }

// Reconciler returns the underlying reconciler.
func (c *Client) Reconciler() *reconciler.Reconciler { return c.reconciler }

// Fixer returns the duplicate fixer.
func (c *Client) Fixer() *duplicates.Fixer { return c.fixer }

// Sync runs a full synchronization of the configured scope. A run that
// completes with failed mutations returns its report together with an
// error matching errors.ErrPartialFailure.
func (c *Client) Sync(ctx context.Context) (*reconciler.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.SyncTimeout)
	defer cancel()

	report, err := c.reconciler.RunFull(ctx, c.config.Sync.RootUnit)
	c.writeMetrics(ctx)
	if err != nil {
		return report, err
	}
	if report.HasFailures() {
		return report, fmt.Errorf("%w: %d mutations failed", errors.ErrPartialFailure, len(report.Failures))
	}
	return report, nil
}

// Plan computes what Sync would send without mutating the target.
func (c *Client) Plan(ctx context.Context) (*reconciler.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.SyncTimeout)
	defer cancel()
	return c.reconciler.Plan(ctx, c.config.Sync.RootUnit)
}

// SyncOne synchronizes a single org unit or user by source uuid.
func (c *Client) SyncOne(ctx context.Context, kind payload.Kind, id string, dryRun bool) (*reconciler.SingleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.CommandTimeout)
	defer cancel()
	return c.reconciler.RunSingle(ctx, kind, id, dryRun)
}

// FindDuplicates scans a fresh target snapshot for duplicated identities.
func (c *Client) FindDuplicates(ctx context.Context) ([]duplicates.Duplicate, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.CommandTimeout)
	defer cancel()
	return c.fixer.Find(ctx)
}

// RemoveDuplicates deletes the given identities from the target.
func (c *Client) RemoveDuplicates(ctx context.Context, kind payload.Kind, ids []string) (*mutation.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.CommandTimeout)
	defer cancel()
	return c.fixer.RemoveFromTarget(ctx, kind, ids)
}

// ReExport re-sends the source entities behind the given target identities.
func (c *Client) ReExport(ctx context.Context, kind payload.Kind, ids []string, dryRun bool) ([]duplicates.ReExportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.SyncTimeout)
	defer cancel()
	return c.fixer.ReExport(ctx, kind, ids, dryRun)
}

// Serve runs the webhook server until ctx is done.
func (c *Client) Serve(ctx context.Context) error {
	cfg := server.DefaultConfig()
	if c.config.Serve.Addr != "" {
		cfg.Addr = c.config.Serve.Addr
	}
	cfg.APIKey = c.config.Serve.APIKey
	srv := server.New(c.reconciler, cfg, logging.FromContext(ctx), server.WithMetrics(c.metrics.Handler()))
	return srv.ListenAndServe(ctx)
}

// Close releases the source backend.
func (c *Client) Close() error {
	return c.backend.Close()
}

func (c *Client) writeMetrics(ctx context.Context) {
	if c.config.Metrics.Textfile == "" {
		return
	}
	if err := c.metrics.WriteToTextfile(c.config.Metrics.Textfile); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Could not write metrics textfile")
	}
}
