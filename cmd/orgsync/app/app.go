// Package app provides the application context and dependency management
// for the orgsync CLI: configuration, logging and the lazily built client.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/agentstation/orgsync"
	"github.com/agentstation/orgsync/cmd/application"
	"github.com/agentstation/orgsync/pkg/errors"
)

// App holds the CLI's configuration, logger and sync client.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	viper  *viper.Viper
	config *Config
	logger *zerolog.Logger

	clientOpts []orgsync.Option
	out        io.Writer

	mu     sync.Mutex
	client application.Client
	closer interface{ Close() error }
}

// New creates an App with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		viper:   viper.New(),
	}

	config, err := LoadConfig(app.viper)
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the CLI configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// OutputFormat returns the --format value.
func (a *App) OutputFormat() string { return a.config.Format }

// Client returns the sync client, building it on first use. Configuration
// errors are returned before any connection is made.
func (a *App) Client(ctx context.Context) (application.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	c, err := orgsync.New(ctx, a.config.Sync, a.clientOpts...)
	if err != nil {
		return nil, err
	}
	a.client, a.closer = c, c
	return c, nil
}

// Shutdown releases the client's source connection.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.client, a.closer = nil, nil
	return err
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithClient sets a ready client (useful for testing).
func WithClient(c application.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}

// WithClientOptions passes options to orgsync.New when the client is built.
func WithClientOptions(opts ...orgsync.Option) Option {
	return func(a *App) error {
		a.clientOpts = append(a.clientOpts, opts...)
		return nil
	}
}

// WithOutput sets where command output is written.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}

var _ application.Application = (*App)(nil)
