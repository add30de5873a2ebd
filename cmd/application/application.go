// Package application provides the application interface for orgsync commands.
//
// Commands accept Application rather than the concrete App so they can be
// tested with Mock:
//
//	mock := &application.Mock{
//	    ClientFunc: func(context.Context) (application.Client, error) {
//	        return &application.MockClient{...}, nil
//	    },
//	}
//	cmd := sync.NewCommand(mock)
package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync/pkg/duplicates"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// Client is the part of *orgsync.Client the commands use.
type Client interface {
	Sync(ctx context.Context) (*reconciler.Report, error)
	Plan(ctx context.Context) (*reconciler.Plan, error)
	SyncOne(ctx context.Context, kind payload.Kind, id string, dryRun bool) (*reconciler.SingleResult, error)
	FindDuplicates(ctx context.Context) ([]duplicates.Duplicate, error)
	RemoveDuplicates(ctx context.Context, kind payload.Kind, ids []string) (*mutation.Report, error)
	ReExport(ctx context.Context, kind payload.Kind, ids []string, dryRun bool) ([]duplicates.ReExportResult, error)
	Serve(ctx context.Context) error
}

// Application provides what commands need from the application layer.
// All methods must be safe for concurrent access.
type Application interface {
	// Client returns the sync client, building it on first use. The
	// configuration is validated before anything is dialed.
	Client(ctx context.Context) (Client, error)

	// Logger returns the configured logger.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml).
	OutputFormat() string

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
