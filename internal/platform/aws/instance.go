package aws

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/util/retry"
	"github.com/imamik/dblab/internal/util/tags"
)

// StorageOpts describes an optional EBS root volume override.
type StorageOpts struct {
	VolumeType string
	SizeGB     int32
	IOPS       int32
	Throughput int32
}

// InstanceCreateOpts holds all parameters for creating a batch of instances.
type InstanceCreateOpts struct {
	ImageID      string
	InstanceType string
	Count        int

	// StartIndex carries continuation state across batches: aliases and
	// subnet placement continue from where the previous batch stopped.
	StartIndex int

	// SubnetIDs are assigned round-robin by global index, spreading
	// instances evenly across availability zones regardless of batching.
	SubnetIDs []string

	SecurityGroupID string
	IamProfileName  string
	KeyName         string

	ClusterName string
	ClusterID   string
	Role        string
	ExtraTags   map[string]string

	Storage *StorageOpts
}

// CreatedInstance is the provisioning-time result for one instance.
type CreatedInstance struct {
	InstanceID       string
	PublicIP         string
	PrivateIP        string
	Alias            string
	AvailabilityZone string
}

// DiscoveredInstance is the reconciliation-time result produced by tag search.
type DiscoveredInstance struct {
	InstanceID       string
	PublicIP         string
	PrivateIP        string
	Alias            string
	Role             string
	AvailabilityZone string
	State            string
}

// InstanceService creates, discovers, and observes cluster instances.
type InstanceService struct {
	api      EC2API
	timeouts *config.Timeouts
}

// NewInstanceService creates an instance service over the given EC2 client.
func NewInstanceService(api EC2API, t *config.Timeouts) *InstanceService {
	return &InstanceService{api: api, timeouts: t}
}

// SubnetFor returns the subnet assigned to the instance at globalIndex.
// Placement is strictly `subnets[globalIndex mod len(subnets)]` so that
// repeated batches against the same cluster keep the spread even.
func SubnetFor(subnetIDs []string, globalIndex int) string {
	return subnetIDs[globalIndex%len(subnetIDs)]
}

// CreateInstances creates opts.Count instances in index order. Every instance
// carries the cluster identity, role, and alias tags; those three tags are
// the only contract by which later commands rediscover it.
func (s *InstanceService) CreateInstances(ctx context.Context, opts InstanceCreateOpts) ([]CreatedInstance, error) {
	if opts.Count <= 0 {
		return nil, nil
	}
	if len(opts.SubnetIDs) == 0 {
		return nil, fmt.Errorf("no subnets to place instances in")
	}

	created := make([]CreatedInstance, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		globalIndex := opts.StartIndex + i
		alias := tags.Alias(opts.Role, globalIndex)
		subnetID := SubnetFor(opts.SubnetIDs, globalIndex)

		instanceTags := tags.NewBuilder(opts.ClusterID).
			WithRole(opts.Role).
			WithAlias(alias).
			Merge(opts.ExtraTags).
			Build()

		input := &ec2.RunInstancesInput{
			ImageId:      aws.String(opts.ImageID),
			InstanceType: types.InstanceType(opts.InstanceType),
			MinCount:     aws.Int32(1),
			MaxCount:     aws.Int32(1),
			NetworkInterfaces: []types.InstanceNetworkInterfaceSpecification{{
				DeviceIndex:              aws.Int32(0),
				SubnetId:                 aws.String(subnetID),
				Groups:                   []string{opts.SecurityGroupID},
				AssociatePublicIpAddress: aws.Bool(true),
				DeleteOnTermination:      aws.Bool(true),
			}},
			TagSpecifications: tagSpec(types.ResourceTypeInstance, instanceTags),
		}
		if opts.KeyName != "" {
			input.KeyName = aws.String(opts.KeyName)
		}
		if opts.IamProfileName != "" {
			input.IamInstanceProfile = &types.IamInstanceProfileSpecification{
				Name: aws.String(opts.IamProfileName),
			}
		}
		if bdm := blockDeviceMapping(opts.Storage); bdm != nil {
			input.BlockDeviceMappings = bdm
		}

		log.Printf("[Compute] Creating %s instance %s in %s", opts.Role, alias, subnetID)

		var out *ec2.RunInstancesOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			out, callErr = s.api.RunInstances(ctx, input)
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return created, fmt.Errorf("failed to create instance %s: %w", alias, err)
		}
		if len(out.Instances) == 0 {
			return created, fmt.Errorf("instance %s: provider returned no instance", alias)
		}

		inst := out.Instances[0]
		created = append(created, CreatedInstance{
			InstanceID:       aws.ToString(inst.InstanceId),
			PublicIP:         aws.ToString(inst.PublicIpAddress),
			PrivateIP:        aws.ToString(inst.PrivateIpAddress),
			Alias:            alias,
			AvailabilityZone: placementZone(inst.Placement),
		})
	}
	return created, nil
}

// blockDeviceMapping builds the EBS override for the data device. IOPS is
// attached only for volume types with provisioned IOPS (io1, io2, gp3);
// throughput only for gp3.
func blockDeviceMapping(st *StorageOpts) []types.BlockDeviceMapping {
	if st == nil {
		return nil
	}
	ebs := &types.EbsBlockDevice{
		VolumeSize:          aws.Int32(st.SizeGB),
		VolumeType:          types.VolumeType(st.VolumeType),
		DeleteOnTermination: aws.Bool(true),
	}
	if st.IOPS > 0 {
		switch st.VolumeType {
		case "io1", "io2", "gp3":
			ebs.Iops = aws.Int32(st.IOPS)
		}
	}
	if st.Throughput > 0 && st.VolumeType == "gp3" {
		ebs.Throughput = aws.Int32(st.Throughput)
	}
	return []types.BlockDeviceMapping{{
		DeviceName: aws.String("/dev/xvdb"),
		Ebs:        ebs,
	}}
}

// WaitForInstancesRunning polls until every instance is simultaneously in the
// running state and carries a public address. Exceeding the timeout is fatal:
// the cluster cannot proceed without operator intervention.
func (s *InstanceService) WaitForInstancesRunning(ctx context.Context, ids []string, timeout time.Duration) error {
	if len(ids) == 0 {
		return nil
	}

	deadline := time.Now().Add(timeout)
	for {
		var out *ec2.DescribeInstancesOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			out, callErr = s.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids})
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return fmt.Errorf("failed to describe instances while waiting: %w", err)
		}

		ready := 0
		for _, r := range out.Reservations {
			for _, inst := range r.Instances {
				if inst.State != nil && inst.State.Name == types.InstanceStateNameRunning &&
					aws.ToString(inst.PublicIpAddress) != "" {
					ready++
				}
			}
		}
		if ready == len(ids) {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for %d/%d instances to run with public addresses",
				timeout, len(ids)-ready, len(ids))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.timeouts.PollInterval):
		}
	}
}

// WaitForInstancesStatusOk polls the instance health checks until every
// instance reports ok. Running only means the instance launched; the OS may
// still be booting, and SSH-level operations fail intermittently until this
// check passes.
func (s *InstanceService) WaitForInstancesStatusOk(ctx context.Context, ids []string, timeout time.Duration) error {
	if len(ids) == 0 {
		return nil
	}

	deadline := time.Now().Add(timeout)
	for {
		var out *ec2.DescribeInstanceStatusOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			out, callErr = s.api.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
				InstanceIds:         ids,
				IncludeAllInstances: aws.Bool(true),
			})
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return fmt.Errorf("failed to check instance status: %w", err)
		}

		ok := 0
		for _, st := range out.InstanceStatuses {
			if st.InstanceStatus != nil && st.InstanceStatus.Status == types.SummaryStatusOk &&
				st.SystemStatus != nil && st.SystemStatus.Status == types.SummaryStatusOk {
				ok++
			}
		}
		if ok == len(ids) {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for %d/%d instances to pass status checks",
				timeout, len(ids)-ok, len(ids))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.timeouts.PollInterval):
		}
	}
}

// FindInstancesByClusterID discovers the running instances tagged with a
// cluster identity, grouped by role. Instances missing the role or alias tag
// are skipped with a warning: a partially-tagged fleet must not block
// reconciliation of the rest, but such instances are unrecoverable orphans.
func (s *InstanceService) FindInstancesByClusterID(ctx context.Context, clusterID string) (map[string][]DiscoveredInstance, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("tag:" + tags.KeyClusterID), Values: []string{clusterID}},
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	}

	result := make(map[string][]DiscoveredInstance)
	paginator := ec2.NewDescribeInstancesPaginator(s.api, input)
	for paginator.HasMorePages() {
		var page *ec2.DescribeInstancesOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			page, callErr = paginator.NextPage(ctx)
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return nil, fmt.Errorf("failed to discover instances for cluster %s: %w", clusterID, err)
		}

		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				id := aws.ToString(inst.InstanceId)
				role := tagValue(inst.Tags, tags.KeyServerType)
				alias := tagValue(inst.Tags, tags.KeyName)
				if role == "" || alias == "" {
					log.Printf("[Compute] Warning: instance %s belongs to cluster %s but is missing the role or alias tag; skipping",
						id, clusterID)
					continue
				}
				result[role] = append(result[role], DiscoveredInstance{
					InstanceID:       id,
					PublicIP:         aws.ToString(inst.PublicIpAddress),
					PrivateIP:        aws.ToString(inst.PrivateIpAddress),
					Alias:            alias,
					Role:             role,
					AvailabilityZone: placementZone(inst.Placement),
					State:            string(instanceState(inst)),
				})
			}
		}
	}
	return result, nil
}

// DescribeInstances refreshes address, state, and zone for a known ID set.
// Public addresses are assigned asynchronously after creation, so callers
// re-describe once the running wait has passed.
func (s *InstanceService) DescribeInstances(ctx context.Context, ids []string) (map[string]DiscoveredInstance, error) {
	if len(ids) == 0 {
		return map[string]DiscoveredInstance{}, nil
	}

	var out *ec2.DescribeInstancesOutput
	err := retry.Do(ctx, func() error {
		var callErr error
		out, callErr = s.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances: %w", err)
	}

	result := make(map[string]DiscoveredInstance, len(ids))
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			id := aws.ToString(inst.InstanceId)
			result[id] = DiscoveredInstance{
				InstanceID:       id,
				PublicIP:         aws.ToString(inst.PublicIpAddress),
				PrivateIP:        aws.ToString(inst.PrivateIpAddress),
				Alias:            tagValue(inst.Tags, tags.KeyName),
				Role:             tagValue(inst.Tags, tags.KeyServerType),
				AvailabilityZone: placementZone(inst.Placement),
				State:            string(instanceState(inst)),
			}
		}
	}
	return result, nil
}

// UpdateInstanceIPs fills in the addresses and zones of created instances
// from a fresh describe pass.
func (s *InstanceService) UpdateInstanceIPs(ctx context.Context, created []CreatedInstance) ([]CreatedInstance, error) {
	ids := make([]string, 0, len(created))
	for _, c := range created {
		ids = append(ids, c.InstanceID)
	}

	current, err := s.DescribeInstances(ctx, ids)
	if err != nil {
		return nil, err
	}

	updated := make([]CreatedInstance, len(created))
	for i, c := range created {
		updated[i] = c
		if cur, ok := current[c.InstanceID]; ok {
			updated[i].PublicIP = cur.PublicIP
			updated[i].PrivateIP = cur.PrivateIP
			updated[i].AvailabilityZone = cur.AvailabilityZone
		}
	}
	return updated, nil
}

func placementZone(p *types.Placement) string {
	if p == nil {
		return ""
	}
	return aws.ToString(p.AvailabilityZone)
}

func instanceState(inst types.Instance) types.InstanceStateName {
	if inst.State == nil {
		return ""
	}
	return inst.State.Name
}
