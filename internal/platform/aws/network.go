package aws

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/util/retry"
	"github.com/imamik/dblab/internal/util/tags"
)

// Vpc identifies one discovered cluster network.
type Vpc struct {
	ID   string
	Name string
}

// SecurityGroup carries the rule sets needed to break cross-group references
// before deletion.
type SecurityGroup struct {
	ID      string
	Name    string
	Ingress []types.IpPermission
	Egress  []types.IpPermission
}

// Network is the result of EnsureNetwork: everything instance creation needs.
type Network struct {
	VpcID           string
	SubnetIDs       []string
	SecurityGroupID string
}

// NetworkOpts parameterizes EnsureNetwork.
type NetworkOpts struct {
	Name              string
	ClusterID         string
	CIDR              string
	AvailabilityZones []string
	ExtraTags         map[string]string
}

// NetworkService provides CRUD and tag-based discovery over VPC resources.
type NetworkService struct {
	api      EC2API
	timeouts *config.Timeouts
}

// NewNetworkService creates a network service over the given EC2 client.
func NewNetworkService(api EC2API, t *config.Timeouts) *NetworkService {
	return &NetworkService{api: api, timeouts: t}
}

// FindVpcsByTag returns every VPC carrying the given tag, with its Name tag
// resolved. Zero results is not an error.
func (s *NetworkService) FindVpcsByTag(ctx context.Context, key, value string) ([]Vpc, error) {
	var out *ec2.DescribeVpcsOutput
	err := retry.Do(ctx, func() error {
		var callErr error
		out, callErr = s.api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
			Filters: []types.Filter{
				{Name: aws.String("tag:" + key), Values: []string{value}},
			},
		})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to find VPCs by tag %s=%s: %w", key, value, err)
	}

	vpcs := make([]Vpc, 0, len(out.Vpcs))
	for _, v := range out.Vpcs {
		vpcs = append(vpcs, Vpc{ID: aws.ToString(v.VpcId), Name: tagValue(v.Tags, tags.KeyName)})
	}
	return vpcs, nil
}

// FindVpcByName returns the VPC whose Name tag matches, or nil if none exists.
// More than one match is an error; names are expected to be unique.
func (s *NetworkService) FindVpcByName(ctx context.Context, name string) (*Vpc, error) {
	vpcs, err := s.FindVpcsByTag(ctx, tags.KeyName, name)
	if err != nil {
		return nil, err
	}
	switch len(vpcs) {
	case 0:
		return nil, nil
	case 1:
		return &vpcs[0], nil
	default:
		return nil, fmt.Errorf("found %d VPCs named %q, expected at most one", len(vpcs), name)
	}
}

// FindInstanceIDs returns the non-terminated instances living in a VPC.
func (s *NetworkService) FindInstanceIDs(ctx context.Context, vpcID string) ([]string, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("instance-state-name"), Values: []string{
				"pending", "running", "shutting-down", "stopping", "stopped",
			}},
		},
	}

	var ids []string
	paginator := ec2.NewDescribeInstancesPaginator(s.api, input)
	for paginator.HasMorePages() {
		var page *ec2.DescribeInstancesOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			page, callErr = paginator.NextPage(ctx)
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return nil, fmt.Errorf("failed to list instances in %s: %w", vpcID, err)
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				ids = append(ids, aws.ToString(inst.InstanceId))
			}
		}
	}
	return ids, nil
}

// FindSubnetIDs returns the subnets belonging to a VPC.
func (s *NetworkService) FindSubnetIDs(ctx context.Context, vpcID string) ([]string, error) {
	var out *ec2.DescribeSubnetsOutput
	err := retry.Do(ctx, func() error {
		var callErr error
		out, callErr = s.api.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
			Filters: vpcFilter(vpcID),
		})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subnets in %s: %w", vpcID, err)
	}

	ids := make([]string, 0, len(out.Subnets))
	for _, sn := range out.Subnets {
		ids = append(ids, aws.ToString(sn.SubnetId))
	}
	sort.Strings(ids)
	return ids, nil
}

// FindSecurityGroups returns the non-default security groups of a VPC,
// including their rule sets for later revocation.
func (s *NetworkService) FindSecurityGroups(ctx context.Context, vpcID string) ([]SecurityGroup, error) {
	var out *ec2.DescribeSecurityGroupsOutput
	err := retry.Do(ctx, func() error {
		var callErr error
		out, callErr = s.api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			Filters: vpcFilter(vpcID),
		})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list security groups in %s: %w", vpcID, err)
	}

	var groups []SecurityGroup
	for _, g := range out.SecurityGroups {
		// The default group is deleted implicitly with the VPC.
		if aws.ToString(g.GroupName) == "default" {
			continue
		}
		groups = append(groups, SecurityGroup{
			ID:      aws.ToString(g.GroupId),
			Name:    aws.ToString(g.GroupName),
			Ingress: g.IpPermissions,
			Egress:  g.IpPermissionsEgress,
		})
	}
	return groups, nil
}

// FindNatGatewayIDs returns the NAT gateways of a VPC that are not already
// deleted or deleting.
func (s *NetworkService) FindNatGatewayIDs(ctx context.Context, vpcID string) ([]string, error) {
	var out *ec2.DescribeNatGatewaysOutput
	err := retry.Do(ctx, func() error {
		var callErr error
		out, callErr = s.api.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
			Filter: vpcFilter(vpcID),
		})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list NAT gateways in %s: %w", vpcID, err)
	}

	var ids []string
	for _, gw := range out.NatGateways {
		switch gw.State {
		case types.NatGatewayStateDeleted, types.NatGatewayStateDeleting:
			continue
		}
		ids = append(ids, aws.ToString(gw.NatGatewayId))
	}
	return ids, nil
}

// FindInternetGatewayID returns the internet gateway attached to a VPC, or ""
// if there is none.
func (s *NetworkService) FindInternetGatewayID(ctx context.Context, vpcID string) (string, error) {
	var out *ec2.DescribeInternetGatewaysOutput
	err := retry.Do(ctx, func() error {
		var callErr error
		out, callErr = s.api.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
			Filters: []types.Filter{
				{Name: aws.String("attachment.vpc-id"), Values: []string{vpcID}},
			},
		})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return "", fmt.Errorf("failed to find internet gateway for %s: %w", vpcID, err)
	}
	if len(out.InternetGateways) == 0 {
		return "", nil
	}
	return aws.ToString(out.InternetGateways[0].InternetGatewayId), nil
}

// FindRouteTableIDs returns the non-main route tables of a VPC. The main
// table is deleted implicitly with the VPC and cannot be removed directly.
func (s *NetworkService) FindRouteTableIDs(ctx context.Context, vpcID string) ([]string, error) {
	var out *ec2.DescribeRouteTablesOutput
	err := retry.Do(ctx, func() error {
		var callErr error
		out, callErr = s.api.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
			Filters: vpcFilter(vpcID),
		})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list route tables in %s: %w", vpcID, err)
	}

	var ids []string
	for _, rt := range out.RouteTables {
		if isMainRouteTable(rt) {
			continue
		}
		ids = append(ids, aws.ToString(rt.RouteTableId))
	}
	return ids, nil
}

// TerminateInstances terminates the given instances and blocks until all of
// them reach the terminated state or the timeout elapses.
func (s *NetworkService) TerminateInstances(ctx context.Context, ids []string, timeout time.Duration) error {
	if len(ids) == 0 {
		return nil
	}

	err := retry.Do(ctx, func() error {
		_, callErr := s.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to terminate instances: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		var out *ec2.DescribeInstancesOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			out, callErr = s.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids})
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to check instance termination: %w", err)
		}

		remaining := 0
		if out != nil {
			for _, r := range out.Reservations {
				for _, inst := range r.Instances {
					if inst.State == nil || inst.State.Name != types.InstanceStateNameTerminated {
						remaining++
					}
				}
			}
		}
		if remaining == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for %d instances to terminate", timeout, remaining)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.timeouts.PollInterval):
		}
	}
}

// DeleteNatGateway deletes a NAT gateway and blocks until it is gone. NAT
// gateways release their network interfaces asynchronously; deleting the
// subnet underneath one fails until that completes.
func (s *NetworkService) DeleteNatGateway(ctx context.Context, id string, timeout time.Duration) error {
	err := retry.Do(ctx, func() error {
		_, callErr := s.api.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{NatGatewayId: aws.String(id)})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to delete NAT gateway %s: %w", id, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		var out *ec2.DescribeNatGatewaysOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			out, callErr = s.api.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{NatGatewayIds: []string{id}})
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to check NAT gateway %s: %w", id, err)
		}

		gone := true
		for _, gw := range out.NatGateways {
			if gw.State != types.NatGatewayStateDeleted {
				gone = false
			}
		}
		if gone {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for NAT gateway %s to delete", timeout, id)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.timeouts.PollInterval):
		}
	}
}

// RevokeAllRules removes every ingress and egress rule from a security group.
// Rules may reference other groups; a cross-group reference cycle can only be
// broken by revoking rules before any group is deleted.
func (s *NetworkService) RevokeAllRules(ctx context.Context, group SecurityGroup) error {
	if len(group.Ingress) > 0 {
		err := retry.Do(ctx, func() error {
			_, callErr := s.api.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
				GroupId:       aws.String(group.ID),
				IpPermissions: group.Ingress,
			})
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return fmt.Errorf("failed to revoke ingress rules of %s: %w", group.ID, err)
		}
	}
	if len(group.Egress) > 0 {
		err := retry.Do(ctx, func() error {
			_, callErr := s.api.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
				GroupId:       aws.String(group.ID),
				IpPermissions: group.Egress,
			})
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return fmt.Errorf("failed to revoke egress rules of %s: %w", group.ID, err)
		}
	}
	return nil
}

// DeleteSecurityGroup deletes one security group.
func (s *NetworkService) DeleteSecurityGroup(ctx context.Context, id string) error {
	err := retry.Do(ctx, func() error {
		_, callErr := s.api.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to delete security group %s: %w", id, err)
	}
	return nil
}

// DeleteRouteTable deletes one route table.
func (s *NetworkService) DeleteRouteTable(ctx context.Context, id string) error {
	err := retry.Do(ctx, func() error {
		_, callErr := s.api.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(id)})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to delete route table %s: %w", id, err)
	}
	return nil
}

// DeleteSubnet deletes one subnet.
func (s *NetworkService) DeleteSubnet(ctx context.Context, id string) error {
	err := retry.Do(ctx, func() error {
		_, callErr := s.api.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(id)})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to delete subnet %s: %w", id, err)
	}
	return nil
}

// DeleteInternetGateway detaches an internet gateway from its VPC and deletes
// it. An already-detached gateway is deleted anyway.
func (s *NetworkService) DeleteInternetGateway(ctx context.Context, id, vpcID string) error {
	err := retry.Do(ctx, func() error {
		_, callErr := s.api.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(id),
			VpcId:             aws.String(vpcID),
		})
		if callErr != nil && errorCode(callErr) == "Gateway.NotAttached" {
			return nil
		}
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to detach internet gateway %s: %w", id, err)
	}

	err = retry.Do(ctx, func() error {
		_, callErr := s.api.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
			InternetGatewayId: aws.String(id),
		})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to delete internet gateway %s: %w", id, err)
	}
	return nil
}

// DeleteVpc deletes the VPC itself. Every occupant must already be gone.
func (s *NetworkService) DeleteVpc(ctx context.Context, id string) error {
	err := retry.Do(ctx, func() error {
		_, callErr := s.api.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(id)})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to delete VPC %s: %w", id, err)
	}
	return nil
}

// EnsureNetwork creates the cluster network if it does not exist yet: a VPC
// tagged for rediscovery, one subnet per availability zone, an internet
// gateway with a default route, and a security group allowing SSH plus
// unrestricted intra-cluster traffic. Re-running against an existing network
// discovers and returns it without creating anything.
func (s *NetworkService) EnsureNetwork(ctx context.Context, opts NetworkOpts) (*Network, error) {
	existing, err := s.FindVpcByName(ctx, opts.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Printf("[Network] VPC %s already exists (%s)", opts.Name, existing.ID)
		return s.describeNetwork(ctx, existing.ID)
	}

	log.Printf("[Network] Creating VPC %s (%s)", opts.Name, opts.CIDR)
	baseTags := tags.NewBuilder(opts.ClusterID).WithAlias(opts.Name).Merge(opts.ExtraTags).Build()

	vpcOut, err := s.api.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(opts.CIDR),
		TagSpecifications: tagSpec(types.ResourceTypeVpc, baseTags),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := aws.ToString(vpcOut.Vpc.VpcId)

	// DNS hostnames are required for instances to get resolvable public names.
	for _, attr := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: aws.String(vpcID), EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: aws.String(vpcID), EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if _, err := s.api.ModifyVpcAttribute(ctx, attr); err != nil {
			return nil, fmt.Errorf("failed to set VPC attributes on %s: %w", vpcID, err)
		}
	}

	zones := opts.AvailabilityZones
	if len(zones) == 0 {
		zones, err = s.defaultZones(ctx)
		if err != nil {
			return nil, err
		}
	}

	subnetIDs := make([]string, 0, len(zones))
	for i, zone := range zones {
		cidr, err := subnetCIDR(opts.CIDR, i)
		if err != nil {
			return nil, err
		}
		subnetTags := tags.NewBuilder(opts.ClusterID).
			WithAlias(fmt.Sprintf("%s-%s", opts.Name, zone)).
			Merge(opts.ExtraTags).Build()
		out, err := s.api.CreateSubnet(ctx, &ec2.CreateSubnetInput{
			VpcId:             aws.String(vpcID),
			CidrBlock:         aws.String(cidr),
			AvailabilityZone:  aws.String(zone),
			TagSpecifications: tagSpec(types.ResourceTypeSubnet, subnetTags),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create subnet in %s: %w", zone, err)
		}
		subnetIDs = append(subnetIDs, aws.ToString(out.Subnet.SubnetId))
	}

	igwOut, err := s.api.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: tagSpec(types.ResourceTypeInternetGateway, baseTags),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := aws.ToString(igwOut.InternetGateway.InternetGatewayId)

	if _, err := s.api.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	}); err != nil {
		return nil, fmt.Errorf("failed to attach internet gateway: %w", err)
	}

	if err := s.addDefaultRoute(ctx, vpcID, igwID); err != nil {
		return nil, err
	}

	sgID, err := s.createClusterSecurityGroup(ctx, vpcID, opts)
	if err != nil {
		return nil, err
	}

	log.Printf("[Network] VPC %s ready: %d subnets, security group %s", vpcID, len(subnetIDs), sgID)
	return &Network{VpcID: vpcID, SubnetIDs: subnetIDs, SecurityGroupID: sgID}, nil
}

// describeNetwork rebuilds a Network from an existing VPC.
func (s *NetworkService) describeNetwork(ctx context.Context, vpcID string) (*Network, error) {
	subnets, err := s.FindSubnetIDs(ctx, vpcID)
	if err != nil {
		return nil, err
	}
	groups, err := s.FindSecurityGroups(ctx, vpcID)
	if err != nil {
		return nil, err
	}
	n := &Network{VpcID: vpcID, SubnetIDs: subnets}
	if len(groups) > 0 {
		n.SecurityGroupID = groups[0].ID
	}
	return n, nil
}

func (s *NetworkService) defaultZones(ctx context.Context) ([]string, error) {
	out, err := s.api.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []types.Filter{
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list availability zones: %w", err)
	}
	var zones []string
	for _, az := range out.AvailabilityZones {
		zones = append(zones, aws.ToString(az.ZoneName))
		if len(zones) == 3 {
			break
		}
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("no available zones in region")
	}
	return zones, nil
}

func (s *NetworkService) addDefaultRoute(ctx context.Context, vpcID, igwID string) error {
	out, err := s.api.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("association.main"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to find main route table of %s: %w", vpcID, err)
	}
	if len(out.RouteTables) == 0 {
		return fmt.Errorf("VPC %s has no main route table", vpcID)
	}

	_, err = s.api.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         out.RouteTables[0].RouteTableId,
		DestinationCidrBlock: aws.String("0.0.0.0/0"),
		GatewayId:            aws.String(igwID),
	})
	if err != nil {
		return fmt.Errorf("failed to create default route: %w", err)
	}
	return nil
}

func (s *NetworkService) createClusterSecurityGroup(ctx context.Context, vpcID string, opts NetworkOpts) (string, error) {
	sgTags := tags.NewBuilder(opts.ClusterID).
		WithAlias(opts.Name + "-sg").
		Merge(opts.ExtraTags).Build()
	out, err := s.api.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(opts.Name),
		Description:       aws.String("dblab cluster " + opts.Name),
		VpcId:             aws.String(vpcID),
		TagSpecifications: tagSpec(types.ResourceTypeSecurityGroup, sgTags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group: %w", err)
	}
	sgID := aws.ToString(out.GroupId)

	_, err = s.api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(sgID),
		IpPermissions: []types.IpPermission{
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(22),
				ToPort:     aws.Int32(22),
				IpRanges:   []types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
			},
			{
				// Unrestricted traffic between cluster members.
				IpProtocol:       aws.String("-1"),
				UserIdGroupPairs: []types.UserIdGroupPair{{GroupId: aws.String(sgID)}},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to authorize security group rules: %w", err)
	}
	return sgID, nil
}

// tagValue looks up one tag by key.
func tagValue(ec2tags []types.Tag, key string) string {
	for _, t := range ec2tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

// ec2Tags converts a tag map into SDK tags in deterministic key order.
func ec2Tags(m map[string]string) []types.Tag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Tag, 0, len(m))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return out
}

func tagSpec(rt types.ResourceType, m map[string]string) []types.TagSpecification {
	return []types.TagSpecification{{ResourceType: rt, Tags: ec2Tags(m)}}
}

func vpcFilter(vpcID string) []types.Filter {
	return []types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}}
}

func isMainRouteTable(rt types.RouteTable) bool {
	for _, assoc := range rt.Associations {
		if aws.ToBool(assoc.Main) {
			return true
		}
	}
	return false
}

// subnetCIDR carves the index-th /24 out of the VPC CIDR.
func subnetCIDR(vpcCIDR string, index int) (string, error) {
	_, ipnet, err := net.ParseCIDR(vpcCIDR)
	if err != nil {
		return "", fmt.Errorf("invalid CIDR %q: %w", vpcCIDR, err)
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 || ones > 24 {
		return "", fmt.Errorf("CIDR %q too small to carve /24 subnets", vpcCIDR)
	}
	if index >= 1<<(24-ones) {
		return "", fmt.Errorf("subnet index %d out of range for %q", index, vpcCIDR)
	}

	base := binary.BigEndian.Uint32(ipnet.IP.To4())
	sub := base + uint32(index)<<8
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, sub)
	return fmt.Sprintf("%s/24", ip), nil
}
