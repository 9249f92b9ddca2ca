package aws

import (
	"time"

	"github.com/aws/smithy-go"

	"github.com/imamik/dblab/internal/config"
)

// testTimeouts returns timeouts short enough for polling loops to converge in
// unit-test time.
func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		InstanceRunning:   time.Second,
		InstanceStatusOk:  time.Second,
		InstanceTerminate: time.Second,
		NatGatewayDelete:  time.Second,
		EmrTerminate:      time.Second,
		PollInterval:      time.Millisecond,
		RetryMaxAttempts:  1,
		RetryBaseDelay:    time.Millisecond,
	}
}

// apiError fabricates a provider error with the given code.
func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}
