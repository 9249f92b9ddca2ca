package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/imamik/dblab/internal/util/tags"
)

// StorageConfig describes the EBS volume attached to each instance of a role.
type StorageConfig struct {
	// VolumeType is the EBS class (gp2, gp3, io1, io2). Empty means the
	// image's root device defaults apply unchanged.
	VolumeType string `yaml:"volumeType"`
	SizeGB     int32  `yaml:"sizeGb"`
	// IOPS is honored only for volume types that support provisioned IOPS
	// (io1, io2, gp3).
	IOPS int32 `yaml:"iops"`
	// Throughput (MiB/s) is honored only for gp3.
	Throughput int32 `yaml:"throughput"`
}

// RoleConfig sizes one server role.
type RoleConfig struct {
	Count        int            `yaml:"count"`
	InstanceType string         `yaml:"instanceType"`
	Storage      *StorageConfig `yaml:"storage,omitempty"`
}

// ClusterConfig is the declarative request a cluster is provisioned from.
type ClusterConfig struct {
	Name string `yaml:"name"`

	// Arch selects the machine image architecture (x86_64 or arm64).
	Arch string `yaml:"arch"`

	// CIDR of the cluster VPC.
	CIDR string `yaml:"cidr"`

	// AvailabilityZones to spread subnets (and therefore instances) across.
	AvailabilityZones []string `yaml:"availabilityZones"`

	Cassandra RoleConfig `yaml:"cassandra"`
	Stress    RoleConfig `yaml:"stress"`
	Control   RoleConfig `yaml:"control"`

	// Version is the cluster-wide database version default; individual nodes
	// may override it in the persisted state.
	Version string `yaml:"version"`

	// Tags are free-form extra tags applied to every created resource.
	Tags map[string]string `yaml:"tags,omitempty"`
}

// LoadClusterConfig reads and validates a cluster definition from a YAML file.
func LoadClusterConfig(path string) (*ClusterConfig, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster config: %w", err)
	}

	var cfg ClusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cluster configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *ClusterConfig) applyDefaults() {
	if c.Arch == "" {
		c.Arch = "x86_64"
	}
	if c.CIDR == "" {
		c.CIDR = "10.0.0.0/16"
	}
	if c.Cassandra.InstanceType == "" {
		c.Cassandra.InstanceType = "r5.xlarge"
	}
	if c.Stress.InstanceType == "" {
		c.Stress.InstanceType = "c5.2xlarge"
	}
	if c.Control.InstanceType == "" {
		c.Control.InstanceType = "t3.large"
	}
	if c.Control.Count == 0 && (c.Cassandra.Count > 0 || c.Stress.Count > 0) {
		// One control node runs monitoring for the whole cluster.
		c.Control.Count = 1
	}
}

// Validate checks the configuration for obvious mistakes before any AWS call
// is attempted.
func (c *ClusterConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Arch != "x86_64" && c.Arch != "arm64" {
		return fmt.Errorf("arch must be x86_64 or arm64, got %q", c.Arch)
	}
	if c.Cassandra.Count < 0 || c.Stress.Count < 0 || c.Control.Count < 0 {
		return fmt.Errorf("role counts must not be negative")
	}
	if c.Cassandra.Count == 0 && c.Stress.Count == 0 {
		return fmt.Errorf("at least one cassandra or stress node is required")
	}
	for _, role := range []struct {
		name    string
		storage *StorageConfig
	}{
		{tags.RoleCassandra, c.Cassandra.Storage},
		{tags.RoleStress, c.Stress.Storage},
		{tags.RoleControl, c.Control.Storage},
	} {
		if err := role.storage.validate(); err != nil {
			return fmt.Errorf("%s storage: %w", role.name, err)
		}
	}
	return nil
}

func (s *StorageConfig) validate() error {
	if s == nil {
		return nil
	}
	switch s.VolumeType {
	case "gp2", "gp3", "io1", "io2":
	default:
		return fmt.Errorf("unsupported volume type %q", s.VolumeType)
	}
	if s.SizeGB <= 0 {
		return fmt.Errorf("size must be positive")
	}
	if s.IOPS > 0 && s.VolumeType == "gp2" {
		return fmt.Errorf("gp2 does not support provisioned IOPS")
	}
	if s.Throughput > 0 && s.VolumeType != "gp3" {
		return fmt.Errorf("only gp3 supports configurable throughput")
	}
	return nil
}

// RoleConfigs returns the per-role sizing keyed by role name.
func (c *ClusterConfig) RoleConfigs() map[string]RoleConfig {
	return map[string]RoleConfig{
		tags.RoleCassandra: c.Cassandra,
		tags.RoleStress:    c.Stress,
		tags.RoleControl:   c.Control,
	}
}
