// Package config holds tool settings, per-call timeout defaults, and the
// cluster definition file format.
//
// Settings and timeouts come from the environment (DBLAB_* variables) with
// sensible defaults; the cluster definition is a YAML file describing the
// desired instance counts, types, and storage per server role.
package config
