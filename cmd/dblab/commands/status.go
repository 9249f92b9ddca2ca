package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
)

// Status returns the command that prints the recorded cluster state.
func Status() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cluster recorded in the local state file",
		Long: `Status prints the cluster identity, infrastructure status, and host
inventory from state.json in the current directory. It makes no AWS calls;
the inventory reflects the last completed up or down run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.OutOrStdout())
		},
	}
}
