// Package destroy handles cluster teardown and resource cleanup.
package destroy

import (
	"context"

	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
)

// TeardownService removes all infrastructure belonging to a named cluster.
type TeardownService interface {
	TeardownByName(ctx context.Context, name string) (*aws.TeardownResult, error)
}

// Provisioner handles cluster destruction.
type Provisioner struct {
	teardown TeardownService
}

// NewProvisioner creates a destroy provisioner over the given teardown service.
func NewProvisioner(teardown TeardownService) *Provisioner {
	return &Provisioner{teardown: teardown}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "destroy"
}

// Provision tears the cluster's infrastructure down. The state file is kept
// and only marked DOWN, so the cluster's identity and sizing survive for a
// later re-provision. A partial teardown leaves the status untouched; the
// operation is re-runnable and picks up whatever remains.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	ctx.Observer.Printf("[Destroy] Tearing down cluster %s...", ctx.Config.Name)

	result, err := p.teardown.TeardownByName(ctx, ctx.Config.Name)
	if err != nil {
		return err
	}
	if !result.Success() {
		return result.Err()
	}

	if err := ctx.Store.MarkInfrastructureDown(); err != nil {
		return err
	}
	ctx.Observer.Printf("[Destroy] Cluster %s destroyed, %d resources removed", ctx.Config.Name, len(result.Removed))
	return nil
}
