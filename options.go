package orgsync

import (
	"net/http"

	"github.com/agentstation/orgsync/internal/metrics"
	"github.com/agentstation/orgsync/internal/source"
	"github.com/agentstation/orgsync/pkg/clock"
)

type options struct {
	backend    source.Backend
	httpClient *http.Client
	clock      clock.Clock
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*options)

// WithBackend uses backend instead of opening the configured one. The
// source section of the configuration is then ignored.
func WithBackend(backend source.Backend) Option {
	return func(o *options) { o.backend = backend }
}

// WithHTTPClient sets the HTTP client for the target and the GraphQL source.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithClock sets the clock used for polling, retries and run timing.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetrics records into m instead of a fresh registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}
