// Package constants provides shared constants used throughout the orgsync codebase.
// This includes timeouts, limits, file permissions, and default values for the
// reconciliation run that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for a single HTTP request
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultSnapshotInterval is the fixed delay between hierarchy polls
	DefaultSnapshotInterval = 5 * time.Second

	// DefaultSnapshotBudget is the total time a hierarchy job may take to become ready
	DefaultSnapshotBudget = 10 * time.Minute

	// CommandTimeout is the default timeout for single-entity CLI commands
	CommandTimeout = 5 * time.Minute

	// SyncTimeout is the timeout for a full reconciliation run
	SyncTimeout = 2 * time.Hour

	// ShutdownTimeout bounds graceful shutdown of the webhook server
	ShutdownTimeout = 10 * time.Second

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like the hash cache (rw-------)
	SecureFilePermissions = 0600
)

// Limit constants define various limits and capacities
const (
	// DefaultReadAttempts is the number of attempts for idempotent reads
	DefaultReadAttempts = 3

	// DefaultMutationAttempts is the number of attempts for upserts and deletes
	DefaultMutationAttempts = 1

	// DefaultPageSize is the default number of items per source page
	DefaultPageSize = 100

	// DefaultNameMaxLength is the maximum number of runes in a position name
	DefaultNameMaxLength = 64

	// MaxErrorBodyLength caps how much of an error response body is kept
	MaxErrorBodyLength = 512
)

// Header constants for the target API
const (
	// CVRHeader carries the municipality's CVR number on every target request
	CVRHeader = "CVR"

	// APIKeyHeader carries the optional target API key
	APIKeyHeader = "x-api-key"
)

// Default paths and addresses
const (
	// DefaultCachePath is the default location of the hash cache file
	DefaultCachePath = "orgsync-cache.json"

	// DefaultServeAddr is the default webhook listen address
	DefaultServeAddr = ":8080"

	// LockSuffix is appended to the cache path to form its lock file
	LockSuffix = ".lock"
)
