// Package main is the entry point for the dblab CLI.
//
// dblab provisions ephemeral database test and benchmark clusters on AWS:
// tagged VPCs with Cassandra, stress, and control instances that can be
// rediscovered, grown, and torn down from any machine holding the state file.
//
// Commands: up, down, status, clean-all, version.
//
// For detailed usage information, run:
//
//	dblab --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/dblab/cmd/dblab/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
