package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds process-wide tool configuration, read from DBLAB_* environment
// variables. Credential resolution beyond these overrides is left to the AWS
// SDK default chain.
type Settings struct {
	// Region is the AWS region all resources live in.
	Region string `envconfig:"REGION" default:"us-west-2"`

	// Profile selects a shared-config profile. Empty means the default chain.
	Profile string `envconfig:"PROFILE"`

	// AccessKey/SecretKey force static credentials when both are set.
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`

	// KeyName is the EC2 key pair attached to created instances.
	KeyName string `envconfig:"KEY_NAME"`

	// ImagePattern is the AMI name search pattern; %s is replaced with the
	// requested architecture.
	ImagePattern string `envconfig:"IMAGE_PATTERN" default:"dblab-%s-*"`

	// ImageID pins an exact AMI and skips the pattern search.
	ImageID string `envconfig:"IMAGE_ID"`

	// BuildVPCName is the Name tag of the shared image-build network. It is
	// skipped by the clean-all sweep unless explicitly included.
	BuildVPCName string `envconfig:"BUILD_VPC_NAME" default:"dblab-build"`
}

// LoadSettings reads settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("dblab", &s); err != nil {
		return nil, fmt.Errorf("failed to load settings from environment: %w", err)
	}
	return &s, nil
}
