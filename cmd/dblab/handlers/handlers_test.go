package handlers

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
)

// phaseMock records that it ran and optionally fails.
type phaseMock struct {
	ran int
	err error
}

func (m *phaseMock) Name() string { return "mock" }

func (m *phaseMock) Provision(_ *provisioning.Context) error {
	m.ran++
	return m.err
}

func testClusterConfig() *config.ClusterConfig {
	return &config.ClusterConfig{
		Name:      "demo",
		Arch:      "x86_64",
		Cassandra: config.RoleConfig{Count: 1, InstanceType: "r5.xlarge"},
	}
}

// stubSessionFactories points the AWS factories at mock clients. The returned
// restore function must be deferred.
func stubSessionFactories() func() {
	origSession := newSession
	origEC2 := newEC2
	origEMR := newEMR

	newSession = func(_ context.Context, _ *config.Settings) (sdkaws.Config, error) {
		return sdkaws.Config{}, nil
	}
	newEC2 = func(_ sdkaws.Config) aws.EC2API { return &aws.MockEC2{} }
	newEMR = func(_ sdkaws.Config) aws.EMRAPI { return &aws.MockEMR{} }

	return func() {
		newSession = origSession
		newEC2 = origEC2
		newEMR = origEMR
	}
}
