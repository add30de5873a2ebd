package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/orgsync"
	"github.com/agentstation/orgsync/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "ORGSYNC"

// Config holds the CLI configuration loaded from flags, environment, .env
// files and the config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Logging configuration
	LogLevel    string // --log-level
	EnvLogLevel string // LOG_LEVEL
	LogFormat   string
	LogOutput   string

	// Sync is the configuration handed to orgsync.New.
	Sync orgsync.Config
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (handled by cobra)
//  2. Environment variables (ORGSYNC_SECTION_KEY)
//  3. .env and .env.local files
//  4. Config file (--config, or .orgsync.yaml in $HOME or the working directory)
//  5. Defaults
func LoadConfig(v *viper.Viper) (*Config, error) {
	loadEnvFiles()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, orgsync.DefaultConfig())

	config := &Config{
		EnvLogLevel: os.Getenv("LOG_LEVEL"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput:   getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
	if err := config.readSync(v); err != nil {
		return nil, err
	}
	return config, nil
}

// readSync reads the config file, if any, and rebuilds the sync section.
func (c *Config) readSync(v *viper.Viper) error {
	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".orgsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit --config must exist; the search locations are optional.
		if c.ConfigFile != "" || !errors.As(err, &notFound) {
			return errors.NewConfigError("config", "cannot read config file", err)
		}
	}
	c.ConfigFile = v.ConfigFileUsed()
	c.Sync = syncConfig(v)
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

func setDefaults(v *viper.Viper, d orgsync.Config) {
	v.SetDefault("source.backend", d.Source.Backend)
	v.SetDefault("source.page_size", d.Source.PageSize)
	v.SetDefault("target.timeout", d.Target.Timeout)
	v.SetDefault("sync.name_max_length", d.Sync.NameMaxLength)
	v.SetDefault("sync.snapshot_interval", d.Sync.SnapshotInterval)
	v.SetDefault("sync.snapshot_budget", d.Sync.SnapshotBudget)
	v.SetDefault("sync.read_attempts", d.Sync.ReadAttempts)
	v.SetDefault("sync.mutation_attempts", d.Sync.MutationAttempts)
	v.SetDefault("sync.retry_backoff", d.Sync.RetryBackoff)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.prefilter", d.Cache.Prefilter)
	v.SetDefault("serve.addr", d.Serve.Addr)
}

func syncConfig(v *viper.Viper) orgsync.Config {
	return orgsync.Config{
		Source: orgsync.SourceConfig{
			Backend:      strings.ToLower(v.GetString("source.backend")),
			URL:          v.GetString("source.url"),
			TokenURL:     v.GetString("source.token_url"),
			ClientID:     v.GetString("source.client_id"),
			ClientSecret: v.GetString("source.client_secret"),
			PageSize:     v.GetInt("source.page_size"),
			ReplicaDSN:   v.GetString("source.replica_dsn"),
		},
		Target: orgsync.TargetConfig{
			URL:     v.GetString("target.url"),
			CVR:     v.GetString("target.cvr"),
			APIKey:  v.GetString("target.api_key"),
			Timeout: v.GetDuration("target.timeout"),
		},
		Sync: orgsync.SyncConfig{
			RootUnit:           v.GetString("sync.root_unit"),
			HierarchyFilter:    stringSlice(v, "sync.hierarchy_filter"),
			PhonePriority:      stringSlice(v, "sync.phone_priority"),
			LandlinePriority:   stringSlice(v, "sync.landline_priority"),
			EmailPriority:      stringSlice(v, "sync.email_priority"),
			PostPriority:       stringSlice(v, "sync.post_priority"),
			UseContactForTasks: v.GetBool("sync.use_contact_for_tasks"),
			IdentityITSystems:  stringSlice(v, "sync.identity_it_systems"),
			UserKeyITSystem:    v.GetString("sync.user_key_it_system"),
			XferCpr:            v.GetBool("sync.xfer_cpr"),
			SyncManagers:       v.GetBool("sync.sync_managers"),
			NameMaxLength:      v.GetInt("sync.name_max_length"),
			SnapshotInterval:   v.GetDuration("sync.snapshot_interval"),
			SnapshotBudget:     v.GetDuration("sync.snapshot_budget"),
			ReadAttempts:       v.GetInt("sync.read_attempts"),
			MutationAttempts:   v.GetInt("sync.mutation_attempts"),
			RetryBackoff:       v.GetDuration("sync.retry_backoff"),
		},
		Cache: orgsync.CacheConfig{
			Path:      v.GetString("cache.path"),
			Prefilter: v.GetBool("cache.prefilter"),
		},
		Ownership: orgsync.OwnershipConfig{File: v.GetString("ownership.file")},
		Metrics:   orgsync.MetricsConfig{Textfile: v.GetString("metrics.textfile")},
		Serve: orgsync.ServeConfig{
			Addr:   v.GetString("serve.addr"),
			APIKey: v.GetString("serve.api_key"),
		},
	}
}

// stringSlice reads a list that may come from YAML or from a comma
// separated environment variable.
func stringSlice(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// loadEnvFiles loads .env then .env.local. godotenv never overrides a
// variable that is already set.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
