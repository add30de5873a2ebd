// Package target is the client for the downstream directory API: hierarchy
// snapshots, single-entity reads, upserts and deletes.
package target

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/agentstation/orgsync/internal/transport"
	"github.com/agentstation/orgsync/pkg/clock"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/retry"
)

const system = "target"

// Config configures a Client.
type Config struct {
	URL    string
	CVR    string
	APIKey string

	Timeout        time.Duration
	PollInterval   time.Duration
	PollBudget     time.Duration
	ReadPolicy     retry.Policy
	MutationPolicy retry.Policy

	Clock      clock.Clock
	HTTPClient *http.Client
}

// Validate reports missing settings before any network call is made.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.NewConfigError("target", "url is required", nil)
	}
	if strings.TrimSpace(c.CVR) == "" {
		return errors.NewConfigError("target", "cvr is required", nil)
	}
	if c.PollInterval < 0 || c.PollBudget < 0 {
		return errors.NewConfigError("target", "snapshot interval and budget must not be negative", nil)
	}
	return nil
}

// Client talks to the target directory.
type Client struct {
	http      *transport.Client
	interval  time.Duration
	budget    time.Duration
	reads     retry.Policy
	mutations retry.Policy
	clock     clock.Clock
}

// New creates a Client, filling unset fields with defaults.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = constants.DefaultSnapshotInterval
	}
	if cfg.PollBudget == 0 {
		cfg.PollBudget = constants.DefaultSnapshotBudget
	}
	if cfg.ReadPolicy.MaxAttempts == 0 {
		cfg.ReadPolicy = retry.Reads()
	}
	if cfg.MutationPolicy.MaxAttempts == 0 {
		cfg.MutationPolicy = retry.Mutations()
	}
	cfg.ReadPolicy.Clock = cfg.Clock
	cfg.MutationPolicy.Clock = cfg.Clock

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = constants.DefaultHTTPTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	auth := transport.MultiAuth{
		&transport.HeaderAuth{Header: constants.CVRHeader, Value: cfg.CVR},
		&transport.HeaderAuth{Header: constants.APIKeyHeader, Value: cfg.APIKey},
	}

	return &Client{
		http:      transport.New(system, cfg.URL, transport.WithHTTPClient(hc), transport.WithAuth(auth)),
		interval:  cfg.PollInterval,
		budget:    cfg.PollBudget,
		reads:     cfg.ReadPolicy,
		mutations: cfg.MutationPolicy,
		clock:     cfg.Clock,
	}, nil
}

// RequestSnapshot triggers a hierarchy job and returns it in the polling state.
func (c *Client) RequestSnapshot(ctx context.Context) (*payload.SyncJob, error) {
	var raw json.RawMessage
	err := retry.Do(ctx, c.reads, "request hierarchy", func(ctx context.Context) error {
		return c.http.Get(ctx, c.http.URL("hierarchy"), &raw)
	})
	if err != nil {
		return nil, err
	}

	id, err := parseRequestUUID(raw)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info().Str("request_uuid", id).Msg("Requested target hierarchy")
	return &payload.SyncJob{RequestUUID: id, State: payload.JobPolling}, nil
}

// parseRequestUUID accepts either a bare JSON string or {"request_uuid": "..."}.
func parseRequestUUID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, nil
	}
	var obj struct {
		RequestUUID string `json:"request_uuid"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.RequestUUID != "" {
		return obj.RequestUUID, nil
	}
	return "", errors.NewParseError("json", "/hierarchy", "response carries no request uuid", nil)
}

type pollResponse struct {
	Result *payload.Snapshot `json:"result"`
}

// WaitAndFetch polls the job at a fixed interval until its result is
// available or the budget is spent. The first poll is immediate and the
// last one happens exactly when the budget runs out. Transient errors count
// as "not ready".
func (c *Client) WaitAndFetch(ctx context.Context, job *payload.SyncJob) (*payload.Snapshot, error) {
	log := logging.FromContext(ctx)
	job.State = payload.JobPolling
	deadline := c.clock.Now().Add(c.budget)
	endpoint := c.http.URL("hierarchy", job.RequestUUID)

	for polls := 1; ; polls++ {
		var resp *pollResponse
		err := c.http.Get(ctx, endpoint, &resp)
		switch {
		case err == nil && resp != nil && resp.Result != nil:
			job.State = payload.JobReady
			log.Info().
				Int("polls", polls).
				Int("org_units", len(resp.Result.OrgUnits)).
				Int("users", len(resp.Result.Users)).
				Msg("Target hierarchy ready")
			return resp.Result, nil
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && !errors.IsTransient(err) && !errors.IsNotFound(err):
			return nil, err
		case err != nil:
			log.Debug().Err(err).Int("poll", polls).Msg("Hierarchy poll failed, treating as not ready")
		}

		now := c.clock.Now()
		if !now.Before(deadline) {
			job.State = payload.JobTimedOut
			return nil, &errors.SnapshotTimeoutError{RequestUUID: job.RequestUUID, Budget: c.budget, Polls: polls}
		}
		if err := c.clock.Sleep(ctx, min(c.interval, deadline.Sub(now))); err != nil {
			return nil, err
		}
	}
}

// Snapshot requests a hierarchy job and waits for it.
func (c *Client) Snapshot(ctx context.Context) (*payload.Snapshot, error) {
	job, err := c.RequestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.WaitAndFetch(ctx, job)
}

// FetchOrgUnit reads one org unit. Absent units yield a NotFoundError.
func (c *Client) FetchOrgUnit(ctx context.Context, id string) (*payload.OrgUnit, error) {
	var out payload.OrgUnit
	if err := c.fetch(ctx, payload.KindOrgUnit, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchUser reads one user. Absent users yield a NotFoundError.
func (c *Client) FetchUser(ctx context.Context, id string) (*payload.User, error) {
	var out payload.User
	if err := c.fetch(ctx, payload.KindUser, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) fetch(ctx context.Context, kind payload.Kind, id string, out any) error {
	err := retry.Do(ctx, c.reads, "fetch "+kind.String(), func(ctx context.Context) error {
		return c.http.Get(ctx, c.http.URL(resource(kind), id), out)
	})
	if errors.IsNotFound(err) {
		return errors.NewNotFoundError(kind.String(), id)
	}
	return err
}

// Upsert creates or fully replaces a record keyed by its identity.
func (c *Client) Upsert(ctx context.Context, r payload.Record) error {
	endpoint := c.http.URL(resource(r.Kind()))
	if r.Kind() == payload.KindOrgUnit {
		endpoint += "/"
	}
	return retry.Do(ctx, c.mutations, "upsert "+r.Kind().String(), func(ctx context.Context) error {
		return c.http.Post(ctx, endpoint, r, nil)
	})
}

// Delete removes a record. Deleting an absent record succeeds.
func (c *Client) Delete(ctx context.Context, kind payload.Kind, id string) error {
	err := retry.Do(ctx, c.mutations, "delete "+kind.String(), func(ctx context.Context) error {
		return c.http.Delete(ctx, c.http.URL(resource(kind), id))
	})
	if errors.IsNotFound(err) {
		logging.FromContext(ctx).Debug().Str("kind", kind.String()).Str("entity_id", id).Msg("Already deleted")
		return nil
	}
	return err
}

func resource(kind payload.Kind) string {
	if kind == payload.KindOrgUnit {
		return "orgUnit"
	}
	return "user"
}
