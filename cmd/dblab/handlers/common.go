// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/provisioning/compute"
	"github.com/imamik/dblab/internal/provisioning/destroy"
	"github.com/imamik/dblab/internal/state"
)

// stateDir is where the cluster state file lives. Every command operates on
// the cluster whose state file sits in the current directory.
const stateDir = "."

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadClusterConfig loads the cluster definition from file.
	loadClusterConfig = config.LoadClusterConfig

	// loadSettings reads tool settings from the environment.
	loadSettings = config.LoadSettings

	// newSession builds the authenticated AWS configuration.
	newSession = aws.NewSession

	// newEC2 / newEMR create the provider clients.
	newEC2 = aws.NewEC2
	newEMR = aws.NewEMR

	// newStateStore opens the state store for a directory.
	newStateStore = state.NewStore

	// newComputePhase assembles the compute provisioner over an EC2 client.
	newComputePhase = func(api aws.EC2API, t *config.Timeouts) provisioning.Phase {
		return compute.NewProvisioner(
			aws.NewNetworkService(api, t),
			aws.NewImageService(api, t),
			aws.NewInstanceService(api, t),
		)
	}

	// newTeardown assembles the teardown orchestrator.
	newTeardown = func(ec2api aws.EC2API, emrapi aws.EMRAPI, t *config.Timeouts) *aws.Teardown {
		return aws.NewTeardown(aws.NewNetworkService(ec2api, t), aws.NewEMRService(emrapi, t), t)
	}

	// newDestroyPhase assembles the destroy provisioner.
	newDestroyPhase = func(teardown destroy.TeardownService) provisioning.Phase {
		return destroy.NewProvisioner(teardown)
	}
)
