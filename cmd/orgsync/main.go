// Package main provides the entry point for the orgsync CLI.
package main

import (
	"context"
	"os"

	"github.com/agentstation/orgsync/cmd/orgsync/app"
	"github.com/agentstation/orgsync/pkg/constants"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.PrintError(os.Stderr, err)
		return app.ExitFatal
	}

	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	err = application.Execute(ctx, os.Args[1:])

	// The signal context may already be cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil {
		application.Logger().Error().Err(shutdownErr).Msg("Shutdown error")
	}

	app.PrintError(os.Stderr, err)
	return app.ExitCode(err)
}
