package aws

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/util/async"
	"github.com/imamik/dblab/internal/util/tags"
)

// DiscoveredResources is everything a teardown found inside one VPC, in the
// order it will be removed.
type DiscoveredResources struct {
	VpcID             string
	VpcName           string
	EmrClusterIDs     []string
	InstanceIDs       []string
	NatGatewayIDs     []string
	SecurityGroups    []SecurityGroup
	RouteTableIDs     []string
	SubnetIDs         []string
	InternetGatewayID string
}

// IsEmpty reports whether the VPC holds nothing besides itself.
func (d *DiscoveredResources) IsEmpty() bool {
	return len(d.EmrClusterIDs) == 0 &&
		len(d.InstanceIDs) == 0 &&
		len(d.NatGatewayIDs) == 0 &&
		len(d.SecurityGroups) == 0 &&
		len(d.RouteTableIDs) == 0 &&
		len(d.SubnetIDs) == 0 &&
		d.InternetGatewayID == ""
}

// TeardownResult reports the outcome of one VPC teardown. Success is true only
// when every discovered resource was removed; Errors collects each failed step
// so a partial teardown can be diagnosed and re-run.
type TeardownResult struct {
	VpcID   string
	VpcName string
	Removed []string
	Errors  []error
}

// Success reports whether the teardown completed without failures.
func (r *TeardownResult) Success() bool {
	return len(r.Errors) == 0
}

// Err flattens the collected failures into one error, or nil on success.
func (r *TeardownResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("teardown of %s finished with %d errors: %s",
		r.VpcID, len(r.Errors), strings.Join(msgs, "; "))
}

// Teardown removes cluster infrastructure in dependency order. Compute goes
// first because instances pin network interfaces into subnets and security
// groups; the VPC itself goes last. Failures in the compute steps abort the
// run, failures in the network steps are collected and the run continues, so
// one stuck resource does not strand everything behind it.
type Teardown struct {
	network  *NetworkService
	emr      *EMRService
	timeouts *config.Timeouts

	// DryRun discovers and reports without deleting anything.
	DryRun bool
}

// NewTeardown creates a teardown orchestrator over the given services.
func NewTeardown(network *NetworkService, emr *EMRService, t *config.Timeouts) *Teardown {
	return &Teardown{network: network, emr: emr, timeouts: t}
}

// Discover inventories every removable resource inside a VPC.
func (t *Teardown) Discover(ctx context.Context, vpc Vpc) (*DiscoveredResources, error) {
	d := &DiscoveredResources{VpcID: vpc.ID, VpcName: vpc.Name}

	var err error
	if d.InstanceIDs, err = t.network.FindInstanceIDs(ctx, vpc.ID); err != nil {
		return nil, err
	}
	if d.SubnetIDs, err = t.network.FindSubnetIDs(ctx, vpc.ID); err != nil {
		return nil, err
	}
	if t.emr != nil {
		if d.EmrClusterIDs, err = t.emr.FindClustersInSubnets(ctx, d.SubnetIDs); err != nil {
			return nil, err
		}
	}
	if d.NatGatewayIDs, err = t.network.FindNatGatewayIDs(ctx, vpc.ID); err != nil {
		return nil, err
	}
	if d.SecurityGroups, err = t.network.FindSecurityGroups(ctx, vpc.ID); err != nil {
		return nil, err
	}
	if d.RouteTableIDs, err = t.network.FindRouteTableIDs(ctx, vpc.ID); err != nil {
		return nil, err
	}
	if d.InternetGatewayID, err = t.network.FindInternetGatewayID(ctx, vpc.ID); err != nil {
		return nil, err
	}
	return d, nil
}

// TeardownVpc discovers and removes everything inside one VPC, then the VPC
// itself. The returned result is non-nil even on failure; check Success.
func (t *Teardown) TeardownVpc(ctx context.Context, vpc Vpc) (*TeardownResult, error) {
	resources, err := t.Discover(ctx, vpc)
	if err != nil {
		return nil, fmt.Errorf("failed to discover resources in %s: %w", vpc.ID, err)
	}
	return t.teardown(ctx, resources), nil
}

// TeardownByName resolves a VPC by its Name tag and tears it down. A missing
// VPC is not an error: there is nothing to remove.
func (t *Teardown) TeardownByName(ctx context.Context, name string) (*TeardownResult, error) {
	vpc, err := t.network.FindVpcByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if vpc == nil {
		log.Printf("[Teardown] No VPC named %s, nothing to remove", name)
		return &TeardownResult{VpcName: name}, nil
	}
	return t.TeardownVpc(ctx, *vpc)
}

// TeardownAllTagged sweeps every VPC managed by this tool, skipping any name
// in the keep list. Results are returned per VPC; a failed VPC does not stop
// the sweep.
func (t *Teardown) TeardownAllTagged(ctx context.Context, keep ...string) ([]*TeardownResult, error) {
	vpcs, err := t.network.FindVpcsByTag(ctx, tags.KeyManagedBy, tags.ManagedByDblab)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool, len(keep))
	for _, name := range keep {
		kept[name] = true
	}

	var results []*TeardownResult
	for _, vpc := range vpcs {
		if kept[vpc.Name] {
			log.Printf("[Teardown] Keeping VPC %s (%s)", vpc.Name, vpc.ID)
			continue
		}
		result, err := t.TeardownVpc(ctx, vpc)
		if err != nil {
			result = &TeardownResult{VpcID: vpc.ID, VpcName: vpc.Name, Errors: []error{err}}
		}
		results = append(results, result)
	}
	return results, nil
}

func (t *Teardown) teardown(ctx context.Context, d *DiscoveredResources) *TeardownResult {
	result := &TeardownResult{VpcID: d.VpcID, VpcName: d.VpcName}

	if t.DryRun {
		t.report(d)
		return result
	}
	log.Printf("[Teardown] Removing VPC %s (%s)", d.VpcID, d.VpcName)

	// Compute first. A failure here is fatal: instances hold network
	// interfaces, so continuing would only produce dependency errors.
	if len(d.EmrClusterIDs) > 0 {
		if err := t.emr.TerminateClusters(ctx, d.EmrClusterIDs, t.timeouts.EmrTerminate); err != nil {
			result.Errors = append(result.Errors, err)
			return result
		}
		result.Removed = append(result.Removed, d.EmrClusterIDs...)
	}
	if len(d.InstanceIDs) > 0 {
		log.Printf("[Teardown] Terminating %d instances", len(d.InstanceIDs))
		if err := t.network.TerminateInstances(ctx, d.InstanceIDs, t.timeouts.InstanceTerminate); err != nil {
			result.Errors = append(result.Errors, err)
			return result
		}
		result.Removed = append(result.Removed, d.InstanceIDs...)
	}

	// Network resources, in dependency order. Failures are collected and the
	// run continues: later steps may still succeed, and whatever remains is
	// picked up by the next attempt.
	t.runStep(ctx, result, d.NatGatewayIDs, func(ctx context.Context, id string) error {
		return t.network.DeleteNatGateway(ctx, id, t.timeouts.NatGatewayDelete)
	})

	groupIDs := make([]string, 0, len(d.SecurityGroups))
	groupsByID := make(map[string]SecurityGroup, len(d.SecurityGroups))
	for _, g := range d.SecurityGroups {
		groupIDs = append(groupIDs, g.ID)
		groupsByID[g.ID] = g
	}
	t.runStep(ctx, result, groupIDs, func(ctx context.Context, id string) error {
		if err := t.network.RevokeAllRules(ctx, groupsByID[id]); err != nil {
			return err
		}
		return t.network.DeleteSecurityGroup(ctx, id)
	})

	t.runStep(ctx, result, d.RouteTableIDs, func(ctx context.Context, id string) error {
		return t.network.DeleteRouteTable(ctx, id)
	})
	t.runStep(ctx, result, d.SubnetIDs, func(ctx context.Context, id string) error {
		return t.network.DeleteSubnet(ctx, id)
	})

	if d.InternetGatewayID != "" {
		if err := t.network.DeleteInternetGateway(ctx, d.InternetGatewayID, d.VpcID); err != nil {
			result.Errors = append(result.Errors, err)
		} else {
			result.Removed = append(result.Removed, d.InternetGatewayID)
		}
	}

	// The VPC delete is attempted even after earlier failures: a leftover
	// resource makes it fail with a dependency error, which is collected
	// like any other and retried on the next run.
	if err := t.network.DeleteVpc(ctx, d.VpcID); err != nil {
		result.Errors = append(result.Errors, err)
		log.Printf("[Teardown] VPC %s left in place, %d resources failed to delete",
			d.VpcID, len(result.Errors))
		return result
	}
	result.Removed = append(result.Removed, d.VpcID)
	log.Printf("[Teardown] VPC %s removed", d.VpcID)
	return result
}

// runStep deletes a batch of sibling resources in parallel, recording every
// failure. Siblings within a step have no ordering dependency on each other.
func (t *Teardown) runStep(ctx context.Context, result *TeardownResult, ids []string, remove func(ctx context.Context, id string) error) {
	if len(ids) == 0 {
		return
	}
	ok := make([]bool, len(ids))
	tasks := make([]async.Task, len(ids))
	for i, id := range ids {
		tasks[i] = async.Task{
			Name: id,
			Func: func(ctx context.Context) error {
				if err := remove(ctx, id); err != nil {
					return err
				}
				ok[i] = true
				return nil
			},
		}
	}
	result.Errors = append(result.Errors, async.RunAll(ctx, tasks)...)

	for i, id := range ids {
		if ok[i] {
			result.Removed = append(result.Removed, id)
		}
	}
}

func (t *Teardown) report(d *DiscoveredResources) {
	log.Printf("[Teardown] Dry run for VPC %s (%s):", d.VpcID, d.VpcName)
	for _, id := range d.EmrClusterIDs {
		log.Printf("[Teardown]   would terminate EMR cluster %s", id)
	}
	for _, id := range d.InstanceIDs {
		log.Printf("[Teardown]   would terminate instance %s", id)
	}
	for _, id := range d.NatGatewayIDs {
		log.Printf("[Teardown]   would delete NAT gateway %s", id)
	}
	for _, g := range d.SecurityGroups {
		log.Printf("[Teardown]   would delete security group %s (%s)", g.ID, g.Name)
	}
	for _, id := range d.RouteTableIDs {
		log.Printf("[Teardown]   would delete route table %s", id)
	}
	for _, id := range d.SubnetIDs {
		log.Printf("[Teardown]   would delete subnet %s", id)
	}
	if d.InternetGatewayID != "" {
		log.Printf("[Teardown]   would delete internet gateway %s", d.InternetGatewayID)
	}
	log.Printf("[Teardown]   would delete VPC %s", d.VpcID)
}
