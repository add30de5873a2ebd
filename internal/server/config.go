package server

import (
	"time"

	"github.com/agentstation/orgsync/pkg/constants"
)

// Config holds server configuration.
type Config struct {
	Addr string

	// Shared secret required on trigger requests; empty disables auth.
	APIKey     string
	AuthHeader string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults. Writes may take as
// long as a single-entity sync.
func DefaultConfig() Config {
	return Config{
		Addr:           constants.DefaultServeAddr,
		AuthHeader:     "X-API-Key",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   constants.CommandTimeout,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}
