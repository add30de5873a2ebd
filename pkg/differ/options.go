package differ

import "github.com/agentstation/orgsync/pkg/ownership"

// Option is a functional option for configuring a Differ.
type Option func(*Differ)

// WithOwnership sets the field-ownership table.
func WithOwnership(t *ownership.Table) Option {
	return func(d *Differ) {
		if t != nil {
			d.table = t
		}
	}
}

// WithCache sets the hash cache consulted by the pre-filter.
func WithCache(c HashLookup) Option {
	return func(d *Differ) {
		d.cache = c
	}
}

// WithPrefilter enables the cache pre-filter. An identity whose merged
// payload hashes to the cached value is unchanged without a structural
// comparison.
func WithPrefilter(enabled bool) Option {
	return func(d *Differ) {
		d.prefilter = enabled
	}
}

// WithTracking enables per-field change reporting on updates.
func WithTracking(enabled bool) Option {
	return func(d *Differ) {
		d.tracking = enabled
	}
}
