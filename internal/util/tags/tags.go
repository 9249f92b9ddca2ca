package tags

import "fmt"

// Standard tag keys applied to every AWS resource managed by dblab.
// The three instance tags (cluster id, server type, alias) are the only
// durable link by which later invocations rediscover a cluster's resources.
const (
	// KeyClusterID carries the stable cluster UUID.
	KeyClusterID = "ClusterId"

	// KeyServerType carries the role of an instance (cassandra, stress, control).
	KeyServerType = "ServerType"

	// KeyName carries the human alias, e.g. "cassandra-0". AWS consoles
	// display this tag as the resource name.
	KeyName = "Name"

	// KeyManagedBy marks resources created by this tool. Networks carrying
	// it are picked up by the clean-all sweep.
	KeyManagedBy = "ManagedBy"
)

// ManagedByDblab is the value stored under KeyManagedBy.
const ManagedByDblab = "dblab"

// Server roles within a cluster.
const (
	RoleCassandra = "cassandra"
	RoleStress    = "stress"
	RoleControl   = "control"
)

// Roles lists every known server role in provisioning order.
var Roles = []string{RoleCassandra, RoleStress, RoleControl}

// Alias returns the canonical host alias for a role and index.
func Alias(role string, index int) string {
	return fmt.Sprintf("%s-%d", role, index)
}

// Builder provides a fluent interface for building AWS resource tags.
type Builder struct {
	tags map[string]string
}

// NewBuilder creates a tag builder with the cluster identity pre-set.
func NewBuilder(clusterID string) *Builder {
	return &Builder{
		tags: map[string]string{
			KeyClusterID: clusterID,
			KeyManagedBy: ManagedByDblab,
		},
	}
}

// WithRole adds the server type tag.
func (b *Builder) WithRole(role string) *Builder {
	b.tags[KeyServerType] = role
	return b
}

// WithAlias adds the Name tag.
func (b *Builder) WithAlias(alias string) *Builder {
	b.tags[KeyName] = alias
	return b
}

// Merge adds all tags from the provided map.
func (b *Builder) Merge(extra map[string]string) *Builder {
	for k, v := range extra {
		b.tags[k] = v
	}
	return b
}

// Build returns a copy of the tag map.
func (b *Builder) Build() map[string]string {
	result := make(map[string]string, len(b.tags))
	for k, v := range b.tags {
		result[k] = v
	}
	return result
}
