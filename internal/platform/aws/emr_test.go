package aws

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emrCluster(id, subnet string, requested ...string) *emr.DescribeClusterOutput {
	return &emr.DescribeClusterOutput{Cluster: &emrtypes.Cluster{
		Id: aws.String(id),
		Ec2InstanceAttributes: &emrtypes.Ec2InstanceAttributes{
			Ec2SubnetId:           aws.String(subnet),
			RequestedEc2SubnetIds: requested,
		},
		Status: &emrtypes.ClusterStatus{State: emrtypes.ClusterStateRunning},
	}}
}

func TestFindClustersInSubnets(t *testing.T) {
	mock := &MockEMR{
		ListClustersFunc: func(ctx context.Context, params *emr.ListClustersInput, optFns ...func(*emr.Options)) (*emr.ListClustersOutput, error) {
			assert.ElementsMatch(t, activeClusterStates, params.ClusterStates)
			return &emr.ListClustersOutput{Clusters: []emrtypes.ClusterSummary{
				{Id: aws.String("j-INSIDE")},
				{Id: aws.String("j-REQUESTED")},
				{Id: aws.String("j-OUTSIDE")},
			}}, nil
		},
		DescribeClusterFunc: func(ctx context.Context, params *emr.DescribeClusterInput, optFns ...func(*emr.Options)) (*emr.DescribeClusterOutput, error) {
			switch aws.ToString(params.ClusterId) {
			case "j-INSIDE":
				return emrCluster("j-INSIDE", "subnet-a"), nil
			case "j-REQUESTED":
				// Only the requested list links this one to the VPC.
				return emrCluster("j-REQUESTED", "", "subnet-x", "subnet-b"), nil
			default:
				return emrCluster("j-OUTSIDE", "subnet-elsewhere"), nil
			}
		},
	}
	svc := NewEMRService(mock, testTimeouts())

	ids, err := svc.FindClustersInSubnets(context.Background(), []string{"subnet-a", "subnet-b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"j-INSIDE", "j-REQUESTED"}, ids)
}

func TestFindClustersInSubnetsPaginated(t *testing.T) {
	mock := &MockEMR{
		ListClustersFunc: func(ctx context.Context, params *emr.ListClustersInput, optFns ...func(*emr.Options)) (*emr.ListClustersOutput, error) {
			if aws.ToString(params.Marker) == "" {
				return &emr.ListClustersOutput{
					Clusters: []emrtypes.ClusterSummary{{Id: aws.String("j-PAGE1")}},
					Marker:   aws.String("page-2"),
				}, nil
			}
			return &emr.ListClustersOutput{
				Clusters: []emrtypes.ClusterSummary{{Id: aws.String("j-PAGE2")}},
			}, nil
		},
		DescribeClusterFunc: func(ctx context.Context, params *emr.DescribeClusterInput, optFns ...func(*emr.Options)) (*emr.DescribeClusterOutput, error) {
			return emrCluster(aws.ToString(params.ClusterId), "subnet-a"), nil
		},
	}
	svc := NewEMRService(mock, testTimeouts())

	ids, err := svc.FindClustersInSubnets(context.Background(), []string{"subnet-a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"j-PAGE1", "j-PAGE2"}, ids)
}

func TestFindClustersInSubnetsEmpty(t *testing.T) {
	var listed bool
	mock := &MockEMR{
		ListClustersFunc: func(ctx context.Context, params *emr.ListClustersInput, optFns ...func(*emr.Options)) (*emr.ListClustersOutput, error) {
			listed = true
			return &emr.ListClustersOutput{}, nil
		},
	}
	svc := NewEMRService(mock, testTimeouts())

	ids, err := svc.FindClustersInSubnets(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.False(t, listed, "no subnets means no API traffic")
}

func TestTerminateClusters(t *testing.T) {
	var terminated []string
	var polls atomic.Int32
	mock := &MockEMR{
		TerminateJobFlowsFunc: func(ctx context.Context, params *emr.TerminateJobFlowsInput, optFns ...func(*emr.Options)) (*emr.TerminateJobFlowsOutput, error) {
			terminated = params.JobFlowIds
			return &emr.TerminateJobFlowsOutput{}, nil
		},
		DescribeClusterFunc: func(ctx context.Context, params *emr.DescribeClusterInput, optFns ...func(*emr.Options)) (*emr.DescribeClusterOutput, error) {
			state := emrtypes.ClusterStateTerminating
			if polls.Add(1) > 2 {
				state = emrtypes.ClusterStateTerminated
			}
			return &emr.DescribeClusterOutput{Cluster: &emrtypes.Cluster{
				Id:     params.ClusterId,
				Status: &emrtypes.ClusterStatus{State: state},
			}}, nil
		},
	}
	svc := NewEMRService(mock, testTimeouts())

	err := svc.TerminateClusters(context.Background(), []string{"j-1"}, testTimeouts().EmrTerminate)
	require.NoError(t, err)
	assert.Equal(t, []string{"j-1"}, terminated)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestTerminateClustersNoop(t *testing.T) {
	var called bool
	mock := &MockEMR{
		TerminateJobFlowsFunc: func(ctx context.Context, params *emr.TerminateJobFlowsInput, optFns ...func(*emr.Options)) (*emr.TerminateJobFlowsOutput, error) {
			called = true
			return &emr.TerminateJobFlowsOutput{}, nil
		},
	}
	svc := NewEMRService(mock, testTimeouts())

	require.NoError(t, svc.TerminateClusters(context.Background(), nil, testTimeouts().EmrTerminate))
	assert.False(t, called)
}
