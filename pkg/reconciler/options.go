package reconciler

import (
	"github.com/agentstation/orgsync/pkg/clock"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/ownership"
)

type options struct {
	ownership       *ownership.Table
	cache           Cache
	prefilter       bool
	hierarchyFilter []string
	observer        Observer
	clock           clock.Clock
}

func defaultOptions() *options {
	return &options{
		ownership: ownership.Default(),
		clock:     clock.Real(),
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithOwnership sets the table of target-owned fields.
func WithOwnership(table *ownership.Table) Option {
	return func(o *options) error {
		if table == nil {
			return errors.NewConfigError("reconciler", "ownership table cannot be nil", nil)
		}
		if err := table.Validate(); err != nil {
			return err
		}
		o.ownership = table
		return nil
	}
}

// WithCache sets the hash cache. Without one nothing is remembered between
// runs.
func WithCache(c Cache) Option {
	return func(o *options) error {
		o.cache = c
		return nil
	}
}

// WithPrefilter skips updates whose merged payload hash matches the cache.
func WithPrefilter(enabled bool) Option {
	return func(o *options) error {
		o.prefilter = enabled
		return nil
	}
}

// WithHierarchyFilter restricts full runs to units in the given hierarchies.
func WithHierarchyFilter(hierarchies ...string) Option {
	return func(o *options) error {
		o.hierarchyFilter = hierarchies
		return nil
	}
}

// WithObserver receives mutation and run outcomes.
func WithObserver(obs Observer) Option {
	return func(o *options) error {
		o.observer = obs
		return nil
	}
}

// WithClock sets the clock used for run timing.
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		if c == nil {
			return errors.NewConfigError("reconciler", "clock cannot be nil", nil)
		}
		o.clock = c
		return nil
	}
}
