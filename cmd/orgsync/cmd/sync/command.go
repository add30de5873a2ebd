// Package sync provides the full synchronization command.
package sync

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/cmd/application"
	"github.com/agentstation/orgsync/internal/cmd/cmdutil"
	"github.com/agentstation/orgsync/internal/cmd/output"
)

// NewCommand creates the sync command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "core",
		Short:   "Synchronize the configured scope to the target",
		Long: `Sync reads every org unit and employee under the root unit, compares
them with a fresh target snapshot and sends the creates, updates and deletes
needed to make the target match.

The command exits with status 2 when the run completed but some mutations
failed.`,
		Example: `  orgsync sync              # Apply all changes
  orgsync sync --dry-run    # Show what would change`,
		Args: cobra.NoArgs,
	}
	flags := cmdutil.AddDryRunFlag(cmd, "compute the changes without sending them")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, err := app.Client(ctx)
		if err != nil {
			return err
		}

		if flags.DryRun {
			plan, err := client.Plan(ctx)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.NewPlanView(plan))
		}

		report, err := client.Sync(ctx)
		if report != nil {
			if werr := output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.NewRunView(report)); werr != nil && err == nil {
				err = werr
			}
		}
		return err
	}
	return cmd
}
