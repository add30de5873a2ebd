// Package duplicates provides the cleanup-duplicates command group.
package duplicates

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/cmd/application"
	"github.com/agentstation/orgsync/internal/cmd/cmdutil"
	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/pkg/duplicates"
	"github.com/agentstation/orgsync/pkg/mutation"
	"github.com/agentstation/orgsync/pkg/payload"
)

// NewCommand creates the cleanup-duplicates command and its subcommands.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cleanup-duplicates",
		GroupID: "maintenance",
		Short:   "Find and repair duplicated identities in the target",
		Long: `Identities remapped through an identity it-system can leave the
target holding the same entity twice. Regular syncs never resolve these.

  find      - list duplicated identities
  remove    - delete them from the target
  reexport  - re-send the source entities behind them`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newFindCommand(app))
	cmd.AddCommand(newRemoveCommand(app))
	cmd.AddCommand(newReExportCommand(app))
	return cmd
}

func newFindCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "find",
		Short: "List duplicated identities in a fresh target snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			found, err := client.FindDuplicates(ctx)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.NewDuplicatesView(found))
		},
	}
}

func newRemoveCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove [identity...]",
		Short: "Delete duplicated identities from the target",
		Long: `Remove deletes the given identities from the target. Without
arguments every identity of --kind reported by find is removed.`,
	}
	kind := cmdutil.AddKindFlag(cmd)
	dry := cmdutil.AddDryRunFlag(cmd, "list the identities without deleting them")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		k, err := kind.Parsed()
		if err != nil {
			return err
		}
		client, err := app.Client(ctx)
		if err != nil {
			return err
		}
		ids, err := identities(ctx, client, k, args)
		if err != nil {
			return err
		}

		var report *mutation.Report
		if !dry.DryRun {
			if report, err = client.RemoveDuplicates(ctx, k, ids); err != nil {
				return err
			}
		}
		return output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.NewRemovalView(k, ids, report))
	}
	return cmd
}

func newReExportCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reexport [identity...]",
		Short: "Re-send the source entities behind duplicated identities",
		Long: `Reexport resolves each identity to its source entities, through the
identity it-systems when needed, and syncs each of them again so the target
entry is overwritten with a clean payload. Without arguments every identity
of --kind reported by find is re-exported.`,
	}
	kind := cmdutil.AddKindFlag(cmd)
	dry := cmdutil.AddDryRunFlag(cmd, "show the payloads without sending them")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		k, err := kind.Parsed()
		if err != nil {
			return err
		}
		client, err := app.Client(ctx)
		if err != nil {
			return err
		}
		ids, err := identities(ctx, client, k, args)
		if err != nil {
			return err
		}
		results, err := client.ReExport(ctx, k, ids, dry.DryRun)
		if err != nil {
			return err
		}
		return output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.NewReExportView(results))
	}
	return cmd
}

// identities returns args when given, otherwise the identities of kind
// found in a fresh snapshot.
func identities(ctx context.Context, client application.Client, kind payload.Kind, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	found, err := client.FindDuplicates(ctx)
	if err != nil {
		return nil, err
	}
	return duplicates.Identities(found, kind), nil
}
