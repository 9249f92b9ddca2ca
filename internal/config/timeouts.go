package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Timeouts holds all configurable timeout values. Defaults reflect how slowly
// each resource class actually converges: instances settle within minutes, an
// EMR cluster can take hours to wind down. Every value can be overridden via
// DBLAB_TIMEOUT_* environment variables.
type Timeouts struct {
	InstanceRunning   time.Duration `envconfig:"INSTANCE_RUNNING" default:"10m"`
	InstanceStatusOk  time.Duration `envconfig:"INSTANCE_STATUS_OK" default:"10m"`
	InstanceTerminate time.Duration `envconfig:"INSTANCE_TERMINATE" default:"10m"`
	NatGatewayDelete  time.Duration `envconfig:"NAT_GATEWAY_DELETE" default:"10m"`
	EmrTerminate      time.Duration `envconfig:"EMR_TERMINATE" default:"4h"`

	// PollInterval is the fixed sleep between readiness/termination checks.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`

	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"5"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
}

// DefaultTimeouts returns the built-in defaults without consulting the
// environment.
func DefaultTimeouts() *Timeouts {
	return &Timeouts{
		InstanceRunning:   10 * time.Minute,
		InstanceStatusOk:  10 * time.Minute,
		InstanceTerminate: 10 * time.Minute,
		NatGatewayDelete:  10 * time.Minute,
		EmrTerminate:      4 * time.Hour,
		PollInterval:      10 * time.Second,
		RetryMaxAttempts:  5,
		RetryBaseDelay:    1 * time.Second,
	}
}

// LoadTimeouts loads timeout configuration from the environment. A malformed
// override should not take the tool down, so parse failures fall back to the
// defaults wholesale.
func LoadTimeouts() *Timeouts {
	var t Timeouts
	if err := envconfig.Process("dblab_timeout", &t); err != nil {
		return DefaultTimeouts()
	}
	return &t
}
