// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the dblab CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dblab",
		Short: "Provision ephemeral database test clusters on AWS",
	}

	cmd.AddCommand(Up())
	cmd.AddCommand(Down())
	cmd.AddCommand(Status())
	cmd.AddCommand(CleanAll())
	cmd.AddCommand(Version())

	return cmd
}
