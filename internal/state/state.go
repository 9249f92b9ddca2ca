// Package state persists a cluster's identity, configuration snapshot, host
// inventory, and infrastructure status as a JSON document in the working
// directory.
//
// The document is the only local record of a cluster; everything else is
// rediscoverable from resource tags. Unknown fields are tolerated on load so
// state files survive tool upgrades in both directions.
package state

import (
	"time"

	"github.com/google/uuid"
)

// Status describes whether the cluster's cloud footprint exists.
type Status string

const (
	// StatusUnknown means no provisioning pass has completed yet.
	StatusUnknown Status = "UNKNOWN"
	// StatusUp means the last provisioning pass completed.
	StatusUp Status = "UP"
	// StatusDown means the last teardown completed.
	StatusDown Status = "DOWN"
)

// Host is one provisioned machine as recorded in the inventory.
type Host struct {
	PublicIP         string `json:"publicIp"`
	PrivateIP        string `json:"privateIp"`
	Alias            string `json:"alias"`
	AvailabilityZone string `json:"availabilityZone"`
}

// StorageSnapshot records the storage sizing a cluster was created with.
type StorageSnapshot struct {
	VolumeType string `json:"volumeType"`
	SizeGB     int32  `json:"sizeGb"`
	IOPS       int32  `json:"iops,omitempty"`
	Throughput int32  `json:"throughput,omitempty"`
}

// InitConfig is the immutable snapshot of the parameters used to size the
// cluster, kept so additive operations don't have to re-prompt.
type InitConfig struct {
	Counts            map[string]int              `json:"counts"`
	InstanceTypes     map[string]string           `json:"instanceTypes"`
	Storage           map[string]*StorageSnapshot `json:"storage,omitempty"`
	AvailabilityZones []string                    `json:"availabilityZones,omitempty"`
	Tags              map[string]string           `json:"tags,omitempty"`
}

// ClusterState is the persisted document describing one cluster.
type ClusterState struct {
	Name           string    `json:"name"`
	ClusterID      string    `json:"clusterId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`

	// InfrastructureStatus is owned by the store's Mark methods; nothing
	// else may set it.
	InfrastructureStatus Status `json:"infrastructureStatus"`

	// Hosts maps server role to an ordered host list. It is rebuilt
	// wholesale on every provisioning pass, never merged field by field.
	Hosts map[string][]Host `json:"hosts"`

	InitConfig *InitConfig `json:"initConfig,omitempty"`

	// DefaultVersion is the cluster-wide database version; NodeVersions
	// overrides it per host alias.
	DefaultVersion string            `json:"defaultVersion,omitempty"`
	NodeVersions   map[string]string `json:"nodeVersions,omitempty"`
}

// New creates a fresh cluster state with a stable identity. The generated
// cluster id becomes the tagging key for every resource the cluster owns.
func New(name string) *ClusterState {
	now := time.Now().UTC()
	return &ClusterState{
		Name:                 name,
		ClusterID:            uuid.NewString(),
		CreatedAt:            now,
		LastAccessedAt:       now,
		InfrastructureStatus: StatusUnknown,
		Hosts:                make(map[string][]Host),
	}
}

// VersionFor returns the database version for a host alias, falling back to
// the cluster default.
func (s *ClusterState) VersionFor(alias string) string {
	if v, ok := s.NodeVersions[alias]; ok && v != "" {
		return v
	}
	return s.DefaultVersion
}

// SetNodeVersion records a per-node version override.
func (s *ClusterState) SetNodeVersion(alias, version string) {
	if s.NodeVersions == nil {
		s.NodeVersions = make(map[string]string)
	}
	s.NodeVersions[alias] = version
}

func (s *ClusterState) touch() {
	s.LastAccessedAt = time.Now().UTC()
}
