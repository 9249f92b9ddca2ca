package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
)

// CleanAll returns the command that sweeps every dblab-managed VPC.
func CleanAll() *cobra.Command {
	var (
		dryRun       bool
		includeBuild bool
	)

	cmd := &cobra.Command{
		Use:   "clean-all",
		Short: "Tear down every dblab-managed VPC in the region",
		Long: `Clean-all discovers every VPC tagged as dblab-managed and tears each one
down, whether or not a local state file exists for it. Use it to sweep
leftovers from interrupted runs or lost state files.

The shared image-build network is kept unless --include-build is set.

Examples:
  dblab clean-all --dry-run
  dblab clean-all
  dblab clean-all --include-build`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.CleanAll(cmd.Context(), dryRun, includeBuild)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be deleted without deleting anything")
	cmd.Flags().BoolVar(&includeBuild, "include-build", false, "Also remove the shared image-build network")

	return cmd
}
