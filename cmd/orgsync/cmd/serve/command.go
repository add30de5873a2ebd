// Package serve provides the webhook server command.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/cmd/application"
)

// NewCommand creates the serve command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		GroupID: "core",
		Short:   "Run the webhook server that triggers single-entity syncs",
		Long: `Serve listens for change notifications and syncs the named entity:

  POST /trigger/{orgunit|user}/{uuid}?dry_run=false
  GET  /healthz
  GET  /metrics

Requests other than /healthz must carry the configured API key. The server
shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			return client.Serve(ctx)
		},
	}
}
