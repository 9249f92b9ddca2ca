// Package aws wraps the AWS SDK clients used by dblab behind narrow
// interfaces.
//
// The package is organized by concern: network resource discovery and
// deletion, instance provisioning and readiness waits, machine image
// validation, EMR cluster termination, and the dependency-ordered teardown
// orchestrator that composes them. Every provider call goes through the retry
// policy with the shared error classifier.
package aws
