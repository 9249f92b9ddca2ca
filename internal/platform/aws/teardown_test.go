package aws

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callLog records provider calls in arrival order, safe for the parallel
// deletion steps.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) index(call string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Index(l.calls, call)
}

func (l *callLog) has(call string) bool {
	return l.index(call) >= 0
}

// populatedVpcMock wires a MockEC2 describing one fully populated VPC, with
// every deletion recorded in the log. failSG, when set, makes that security
// group's deletion fail.
func populatedVpcMock(log *callLog, sgIDs []string, failSG string) *MockEC2 {
	return &MockEC2{
		DescribeInstancesFunc: func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			state := types.InstanceStateNameRunning
			// ID-based describes are the post-terminate poll.
			if len(params.InstanceIds) > 0 {
				state = types.InstanceStateNameTerminated
			}
			return &ec2.DescribeInstancesOutput{Reservations: []types.Reservation{{
				Instances: []types.Instance{{
					InstanceId: aws.String("i-1"),
					State:      &types.InstanceState{Name: state},
				}},
			}}}, nil
		},
		TerminateInstancesFunc: func(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
			log.add("terminate i-1")
			return &ec2.TerminateInstancesOutput{}, nil
		},
		DescribeNatGatewaysFunc: func(ctx context.Context, params *ec2.DescribeNatGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
			state := types.NatGatewayStateAvailable
			if len(params.NatGatewayIds) > 0 {
				state = types.NatGatewayStateDeleted
			}
			return &ec2.DescribeNatGatewaysOutput{NatGateways: []types.NatGateway{
				{NatGatewayId: aws.String("nat-1"), State: state},
			}}, nil
		},
		DeleteNatGatewayFunc: func(ctx context.Context, params *ec2.DeleteNatGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error) {
			log.add("delete nat-1")
			return &ec2.DeleteNatGatewayOutput{}, nil
		},
		DescribeSecurityGroupsFunc: func(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
			groups := make([]types.SecurityGroup, 0, len(sgIDs))
			for _, id := range sgIDs {
				groups = append(groups, types.SecurityGroup{
					GroupId:   aws.String(id),
					GroupName: aws.String("cluster-" + id),
					IpPermissions: []types.IpPermission{
						{IpProtocol: aws.String("tcp"), FromPort: aws.Int32(22), ToPort: aws.Int32(22)},
					},
				})
			}
			return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: groups}, nil
		},
		RevokeSecurityGroupIngressFunc: func(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
			log.add("revoke " + aws.ToString(params.GroupId))
			return &ec2.RevokeSecurityGroupIngressOutput{}, nil
		},
		DeleteSecurityGroupFunc: func(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
			id := aws.ToString(params.GroupId)
			if id == failSG {
				return nil, apiError("DependencyViolation")
			}
			log.add("delete " + id)
			return &ec2.DeleteSecurityGroupOutput{}, nil
		},
		DescribeRouteTablesFunc: func(ctx context.Context, params *ec2.DescribeRouteTablesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
			return &ec2.DescribeRouteTablesOutput{RouteTables: []types.RouteTable{
				{RouteTableId: aws.String("rtb-1")},
			}}, nil
		},
		DeleteRouteTableFunc: func(ctx context.Context, params *ec2.DeleteRouteTableInput, optFns ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
			log.add("delete rtb-1")
			return &ec2.DeleteRouteTableOutput{}, nil
		},
		DescribeSubnetsFunc: func(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
			return &ec2.DescribeSubnetsOutput{Subnets: []types.Subnet{
				{SubnetId: aws.String("subnet-1")},
				{SubnetId: aws.String("subnet-2")},
			}}, nil
		},
		DeleteSubnetFunc: func(ctx context.Context, params *ec2.DeleteSubnetInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
			log.add("delete " + aws.ToString(params.SubnetId))
			return &ec2.DeleteSubnetOutput{}, nil
		},
		DescribeInternetGatewaysFunc: func(ctx context.Context, params *ec2.DescribeInternetGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
			return &ec2.DescribeInternetGatewaysOutput{InternetGateways: []types.InternetGateway{
				{InternetGatewayId: aws.String("igw-1")},
			}}, nil
		},
		DetachInternetGatewayFunc: func(ctx context.Context, params *ec2.DetachInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
			log.add("detach igw-1")
			return &ec2.DetachInternetGatewayOutput{}, nil
		},
		DeleteInternetGatewayFunc: func(ctx context.Context, params *ec2.DeleteInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
			log.add("delete igw-1")
			return &ec2.DeleteInternetGatewayOutput{}, nil
		},
		DeleteVpcFunc: func(ctx context.Context, params *ec2.DeleteVpcInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
			log.add("delete " + aws.ToString(params.VpcId))
			return &ec2.DeleteVpcOutput{}, nil
		},
	}
}

func newTestTeardown(mock *MockEC2) *Teardown {
	t := testTimeouts()
	return NewTeardown(NewNetworkService(mock, t), NewEMRService(&MockEMR{}, t), t)
}

func TestTeardownVpcOrder(t *testing.T) {
	log := &callLog{}
	td := newTestTeardown(populatedVpcMock(log, []string{"sg-1"}, ""))

	result, err := td.TeardownVpc(context.Background(), Vpc{ID: "vpc-1", Name: "demo"})
	require.NoError(t, err)
	require.True(t, result.Success(), "errors: %v", result.Errors)
	require.NoError(t, result.Err())

	// Dependency order: compute, NAT, rules before groups, route tables,
	// subnets, gateway, VPC last.
	sequence := []string{
		"terminate i-1",
		"delete nat-1",
		"revoke sg-1",
		"delete sg-1",
		"delete rtb-1",
		"delete subnet-1",
		"detach igw-1",
		"delete igw-1",
		"delete vpc-1",
	}
	prev := -1
	for _, call := range sequence {
		idx := log.index(call)
		require.GreaterOrEqual(t, idx, 0, "missing call %q in %v", call, log.calls)
		assert.Greater(t, idx, prev, "%q ran out of order: %v", call, log.calls)
		prev = idx
	}

	assert.Contains(t, result.Removed, "vpc-1")
	assert.Contains(t, result.Removed, "i-1")
}

func TestTeardownVpcPartialFailure(t *testing.T) {
	log := &callLog{}
	td := newTestTeardown(populatedVpcMock(log, []string{"sg-1", "sg-2", "sg-3"}, "sg-2"))

	result, err := td.TeardownVpc(context.Background(), Vpc{ID: "vpc-1", Name: "demo"})
	require.NoError(t, err)

	// The stuck group fails; its siblings are still deleted.
	assert.False(t, result.Success())
	require.Len(t, result.Errors, 1)
	assert.ErrorContains(t, result.Errors[0], "sg-2")
	assert.True(t, log.has("delete sg-1"))
	assert.True(t, log.has("delete sg-3"))

	// Every later step still runs, the VPC deletion included.
	assert.True(t, log.has("delete rtb-1"))
	assert.True(t, log.has("delete subnet-1"))
	assert.True(t, log.has("delete igw-1"))
	assert.True(t, log.has("delete vpc-1"))
	assert.ErrorContains(t, result.Err(), "1 errors")
}

func TestTeardownVpcDeleteFailureCollected(t *testing.T) {
	log := &callLog{}
	mock := populatedVpcMock(log, []string{"sg-1", "sg-2"}, "sg-2")
	mock.DeleteVpcFunc = func(ctx context.Context, params *ec2.DeleteVpcInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
		return nil, apiError("DependencyViolation")
	}
	td := newTestTeardown(mock)

	result, err := td.TeardownVpc(context.Background(), Vpc{ID: "vpc-1", Name: "demo"})
	require.NoError(t, err)

	// The stuck group and the consequent VPC failure are both recorded; the
	// next run picks them up.
	assert.False(t, result.Success())
	require.Len(t, result.Errors, 2)
	assert.ErrorContains(t, result.Errors[0], "sg-2")
	assert.NotContains(t, result.Removed, "vpc-1")
}

func TestTeardownVpcFatalOnInstanceFailure(t *testing.T) {
	log := &callLog{}
	mock := populatedVpcMock(log, []string{"sg-1"}, "")
	mock.TerminateInstancesFunc = func(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
		return nil, apiError("UnauthorizedOperation")
	}
	td := newTestTeardown(mock)

	result, err := td.TeardownVpc(context.Background(), Vpc{ID: "vpc-1", Name: "demo"})
	require.NoError(t, err)

	assert.False(t, result.Success())
	// Instances pin everything else; nothing further may be attempted.
	assert.False(t, log.has("delete nat-1"))
	assert.False(t, log.has("delete sg-1"))
	assert.False(t, log.has("delete vpc-1"))
}

func TestTeardownDryRun(t *testing.T) {
	log := &callLog{}
	td := newTestTeardown(populatedVpcMock(log, []string{"sg-1"}, ""))
	td.DryRun = true

	result, err := td.TeardownVpc(context.Background(), Vpc{ID: "vpc-1", Name: "demo"})
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Empty(t, log.calls, "dry run must not mutate anything")
}

func TestTeardownByNameMissingVpc(t *testing.T) {
	td := newTestTeardown(&MockEC2{})

	result, err := td.TeardownByName(context.Background(), "gone")
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Empty(t, result.Removed)
}

func TestTeardownAllTaggedKeepsNamed(t *testing.T) {
	log := &callLog{}
	mock := populatedVpcMock(log, []string{"sg-1"}, "")
	mock.DescribeVpcsFunc = func(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
		return &ec2.DescribeVpcsOutput{Vpcs: []types.Vpc{
			namedVpc("vpc-build", "dblab-build"),
			namedVpc("vpc-1", "demo"),
		}}, nil
	}
	td := newTestTeardown(mock)

	results, err := td.TeardownAllTagged(context.Background(), "dblab-build")
	require.NoError(t, err)
	require.Len(t, results, 1, "the kept VPC must not produce a result")
	assert.Equal(t, "vpc-1", results[0].VpcID)
	assert.True(t, log.has("delete vpc-1"))
	assert.False(t, log.has("delete vpc-build"))
}

func TestDiscoverIsEmpty(t *testing.T) {
	td := newTestTeardown(&MockEC2{})

	d, err := td.Discover(context.Background(), Vpc{ID: "vpc-hollow"})
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())

	full := &DiscoveredResources{InstanceIDs: []string{"i-1"}}
	assert.False(t, full.IsEmpty())
}

func TestTeardownResultErr(t *testing.T) {
	r := &TeardownResult{VpcID: "vpc-1"}
	assert.NoError(t, r.Err())

	r.Errors = append(r.Errors, errors.New("boom"))
	assert.ErrorContains(t, r.Err(), "vpc-1")
}
