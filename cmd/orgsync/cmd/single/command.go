// Package single provides the commands that synchronize one entity.
package single

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/cmd/application"
	"github.com/agentstation/orgsync/internal/cmd/cmdutil"
	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
)

// NewUserCommand creates the sync-user command.
func NewUserCommand(app application.Application) *cobra.Command {
	return newCommand(app, payload.KindUser, "sync-user", "Synchronize one employee by source uuid")
}

// NewOrgUnitCommand creates the sync-orgunit command.
func NewOrgUnitCommand(app application.Application) *cobra.Command {
	return newCommand(app, payload.KindOrgUnit, "sync-orgunit", "Synchronize one org unit by source uuid")
}

func newCommand(app application.Application, kind payload.Kind, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use + " <uuid>",
		GroupID: "core",
		Short:   short,
		Long: fmt.Sprintf(`%s reads one %s from the source, compares it with the
entry the target stores and sends a single upsert or delete.

An entity that no longer exists in the source, or is outside the configured
scope, is deleted from the target.`, use, kind),
		Example: fmt.Sprintf("  orgsync %s 3f7e5a1c-0b7d-4c39-9f62-1a2b3c4d5e6f --dry-run", use),
		Args:    cobra.ExactArgs(1),
	}
	flags := cmdutil.AddDryRunFlag(cmd, "show the payload and field changes without sending them")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := uuid.Validate(id); err != nil {
			return errors.NewEntityValidationError(kind.String(), id, "uuid", "must be a uuid")
		}

		ctx := cmd.Context()
		client, err := app.Client(ctx)
		if err != nil {
			return err
		}
		res, err := client.SyncOne(ctx, kind, id, flags.DryRun)
		if err != nil {
			return err
		}
		return output.Write(cmd.OutOrStdout(), app.OutputFormat(), output.NewSingleView(res))
	}
	return cmd
}
