package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
)

// Down returns the command that tears a cluster down.
//
// Resources are removed in dependency order: managed EMR clusters and
// instances first, then NAT gateways, security groups, route tables, subnets,
// the internet gateway, and finally the VPC.
func Down() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Tear down the cluster and all associated resources",
		Long: `Down removes every AWS resource belonging to the cluster.

Deletion runs in dependency order so nothing is left pinned: compute first
(EMR clusters, instances), network resources after, the VPC last. If a
resource cannot be deleted the run continues, reports every failure, and can
simply be re-run to pick up what remains.

The state file is kept and marked DOWN; 'dblab up' re-provisions the same
cluster identity.

Examples:
  dblab down
  dblab down --dry-run

WARNING: This terminates every instance in the cluster. All node data is lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Down(cmd.Context(), configPath, dryRun)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dblab.yaml", "Path to cluster definition file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be deleted without deleting anything")

	return cmd
}
