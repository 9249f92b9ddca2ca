package aws

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/util/retry"
)

// activeClusterStates are the EMR states worth discovering: anything not
// already terminated or on its way down.
var activeClusterStates = []emrtypes.ClusterState{
	emrtypes.ClusterStateStarting,
	emrtypes.ClusterStateBootstrapping,
	emrtypes.ClusterStateRunning,
	emrtypes.ClusterStateWaiting,
}

// EMRService finds and terminates managed big-data clusters. Terminating them
// is a teardown precondition: a lingering cluster keeps instances and network
// interfaces inside the VPC, blocking every later deletion step.
type EMRService struct {
	api      EMRAPI
	timeouts *config.Timeouts
}

// NewEMRService creates an EMR service over the given client.
func NewEMRService(api EMRAPI, t *config.Timeouts) *EMRService {
	return &EMRService{api: api, timeouts: t}
}

// FindClustersInSubnets returns the active EMR clusters launched into any of
// the given subnets. EMR resources carry no VPC field of their own; subnet
// membership is the scoping link.
func (s *EMRService) FindClustersInSubnets(ctx context.Context, subnetIDs []string) ([]string, error) {
	if len(subnetIDs) == 0 {
		return nil, nil
	}
	subnets := make(map[string]bool, len(subnetIDs))
	for _, id := range subnetIDs {
		subnets[id] = true
	}

	var summaries []emrtypes.ClusterSummary
	paginator := emr.NewListClustersPaginator(s.api, &emr.ListClustersInput{
		ClusterStates: activeClusterStates,
	})
	for paginator.HasMorePages() {
		var page *emr.ListClustersOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			page, callErr = paginator.NextPage(ctx)
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return nil, fmt.Errorf("failed to list EMR clusters: %w", err)
		}
		summaries = append(summaries, page.Clusters...)
	}

	var ids []string
	for _, summary := range summaries {
		id := aws.ToString(summary.Id)

		var described *emr.DescribeClusterOutput
		err := retry.Do(ctx, func() error {
			var callErr error
			described, callErr = s.api.DescribeCluster(ctx, &emr.DescribeClusterInput{
				ClusterId: aws.String(id),
			})
			return callErr
		}, retryOptions(s.timeouts)...)
		if err != nil {
			return nil, fmt.Errorf("failed to describe EMR cluster %s: %w", id, err)
		}

		attrs := described.Cluster.Ec2InstanceAttributes
		if attrs == nil {
			continue
		}
		if subnets[aws.ToString(attrs.Ec2SubnetId)] {
			ids = append(ids, id)
			continue
		}
		for _, requested := range attrs.RequestedEc2SubnetIds {
			if subnets[requested] {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

// TerminateClusters requests termination of the given clusters and blocks
// until every one reaches a terminal state or the timeout elapses.
func (s *EMRService) TerminateClusters(ctx context.Context, ids []string, timeout time.Duration) error {
	if len(ids) == 0 {
		return nil
	}

	log.Printf("[EMR] Terminating %d clusters: %v", len(ids), ids)
	err := retry.Do(ctx, func() error {
		_, callErr := s.api.TerminateJobFlows(ctx, &emr.TerminateJobFlowsInput{JobFlowIds: ids})
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return fmt.Errorf("failed to terminate EMR clusters: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := 0
		for _, id := range ids {
			var out *emr.DescribeClusterOutput
			err := retry.Do(ctx, func() error {
				var callErr error
				out, callErr = s.api.DescribeCluster(ctx, &emr.DescribeClusterInput{ClusterId: aws.String(id)})
				return callErr
			}, retryOptions(s.timeouts)...)
			if err != nil {
				return fmt.Errorf("failed to check EMR cluster %s: %w", id, err)
			}
			switch out.Cluster.Status.State {
			case emrtypes.ClusterStateTerminated, emrtypes.ClusterStateTerminatedWithErrors:
			default:
				remaining++
			}
		}
		if remaining == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for %d EMR clusters to terminate", timeout, remaining)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.timeouts.PollInterval):
		}
	}
}
