package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
)

// Up returns the command for provisioning a cluster.
//
// Required flags:
//
//	--config, -c: Path to the cluster definition YAML file
//
// Environment variables:
//
//	DBLAB_REGION, DBLAB_PROFILE, DBLAB_ACCESS_KEY / DBLAB_SECRET_KEY,
//	DBLAB_KEY_NAME, DBLAB_IMAGE_ID / DBLAB_IMAGE_PATTERN
func Up() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create or grow the cluster",
		Long: `Create or grow the cluster described by the configuration file.

The first run writes a state file (state.json) into the current directory,
creates the cluster VPC, and boots one instance per configured role slot.
Re-running is safe: instances that already exist are rediscovered by tag and
only the missing ones are created.

Examples:
  # Create a cluster from dblab.yaml in the current directory
  dblab up

  # Use a specific definition file
  dblab up -c bench.yaml

  # Grow the cluster after raising a role count in the config
  dblab up`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Up(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dblab.yaml", "Path to cluster definition file")

	return cmd
}
