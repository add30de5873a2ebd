// Package cmdutil provides flags shared by orgsync commands.
package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/pkg/payload"
)

// DryRunFlags holds the --dry-run flag.
type DryRunFlags struct {
	DryRun bool
}

// AddDryRunFlag adds --dry-run to a command.
func AddDryRunFlag(cmd *cobra.Command, usage string) *DryRunFlags {
	flags := &DryRunFlags{}
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, usage)
	return flags
}

// KindFlags holds the --kind flag of the duplicate commands.
type KindFlags struct {
	Kind string
}

// AddKindFlag adds --kind to a command, defaulting to users.
func AddKindFlag(cmd *cobra.Command) *KindFlags {
	flags := &KindFlags{}
	cmd.Flags().StringVar(&flags.Kind, "kind", string(payload.KindUser), "entity kind: orgunit or user")
	return flags
}

// Parsed returns the parsed kind.
func (f *KindFlags) Parsed() (payload.Kind, error) {
	return payload.ParseKind(f.Kind)
}
