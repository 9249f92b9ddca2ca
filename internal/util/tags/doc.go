// Package tags provides consistent tagging utilities for AWS resources.
//
// This package enforces the uniform tag schema across all infrastructure
// resources, enabling identification, grouping, and rediscovery of resources
// belonging to the same cluster across process restarts.
package tags
