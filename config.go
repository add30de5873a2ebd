package orgsync

import (
	"strings"
	"time"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// Source backends.
const (
	BackendGraphQL = "graphql"
	BackendReplica = "replica"
)

// Config is the complete runtime configuration.
type Config struct {
	Source    SourceConfig
	Target    TargetConfig
	Sync      SyncConfig
	Cache     CacheConfig
	Ownership OwnershipConfig
	Metrics   MetricsConfig
	Serve     ServeConfig
}

// SourceConfig selects and configures the source backend.
type SourceConfig struct {
	Backend      string
	URL          string
	TokenURL     string
	ClientID     string
	ClientSecret string
	PageSize     int
	ReplicaDSN   string
}

// TargetConfig configures the target directory client.
type TargetConfig struct {
	URL     string
	CVR     string
	APIKey  string
	Timeout time.Duration
}

// SyncConfig controls scope, transformation and retries.
type SyncConfig struct {
	RootUnit           string
	HierarchyFilter    []string
	PhonePriority      []string
	LandlinePriority   []string
	EmailPriority      []string
	PostPriority       []string
	UseContactForTasks bool
	IdentityITSystems  []string
	UserKeyITSystem    string
	XferCpr            bool
	SyncManagers       bool
	NameMaxLength      int

	SnapshotInterval time.Duration
	SnapshotBudget   time.Duration
	ReadAttempts     int
	MutationAttempts int
	RetryBackoff     time.Duration
}

// CacheConfig configures the hash cache.
type CacheConfig struct {
	Path      string // Empty keeps the cache in memory
	Prefilter bool
}

// OwnershipConfig points at a YAML table of target-owned fields.
type OwnershipConfig struct {
	File string // Empty uses the built-in table
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Textfile string // Written after each full run when set
}

// ServeConfig configures the webhook server.
type ServeConfig struct {
	Addr   string
	APIKey string
}

// DefaultConfig returns a configuration with every default filled in.
// Target and source endpoints are left empty.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Backend:  BackendGraphQL,
			PageSize: constants.DefaultPageSize,
		},
		Target: TargetConfig{
			Timeout: constants.DefaultHTTPTimeout,
		},
		Sync: SyncConfig{
			NameMaxLength:    constants.DefaultNameMaxLength,
			SnapshotInterval: constants.DefaultSnapshotInterval,
			SnapshotBudget:   constants.DefaultSnapshotBudget,
			ReadAttempts:     constants.DefaultReadAttempts,
			MutationAttempts: constants.DefaultMutationAttempts,
			RetryBackoff:     constants.RetryBackoff,
		},
		Cache: CacheConfig{
			Path:      constants.DefaultCachePath,
			Prefilter: true,
		},
		Serve: ServeConfig{
			Addr: constants.DefaultServeAddr,
		},
	}
}

// Validate checks the configuration before any network call is made.
func (c Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	return c.validateSync()
}

func (c Config) validateSource() error {
	switch c.Source.Backend {
	case BackendGraphQL:
		if strings.TrimSpace(c.Source.URL) == "" {
			return errors.NewConfigError("source", "url is required for the graphql backend", nil)
		}
	case BackendReplica:
		if strings.TrimSpace(c.Source.ReplicaDSN) == "" {
			return errors.NewConfigError("source", "replica_dsn is required for the replica backend", nil)
		}
	default:
		return errors.NewConfigError("source", "unknown backend "+c.Source.Backend, nil)
	}
	if c.Source.PageSize < 0 {
		return errors.NewConfigError("source", "page_size must not be negative", nil)
	}
	return nil
}

func (c Config) validateSync() error {
	if strings.TrimSpace(c.Target.URL) == "" {
		return errors.NewConfigError("target", "url is required", nil)
	}
	if strings.TrimSpace(c.Target.CVR) == "" {
		return errors.NewConfigError("target", "cvr is required", nil)
	}

	s := c.Sync
	if s.SnapshotInterval <= 0 || s.SnapshotBudget <= 0 {
		return errors.NewConfigError("sync", "snapshot_interval and snapshot_budget must be positive", nil)
	}
	if s.SnapshotInterval > s.SnapshotBudget {
		return errors.NewConfigError("sync", "snapshot_interval must not exceed snapshot_budget", nil)
	}
	if s.ReadAttempts < 1 || s.MutationAttempts < 1 {
		return errors.NewConfigError("sync", "read_attempts and mutation_attempts must be at least 1", nil)
	}
	if s.NameMaxLength < 0 {
		return errors.NewConfigError("sync", "name_max_length must not be negative", nil)
	}
	return nil
}
