// Package compute reconciles a cluster's cloud footprint against its
// declarative configuration: the network, the machine image, and one instance
// per requested role slot. Reconciliation is additive; existing instances
// discovered by tag are kept and only the missing slots are created.
package compute
