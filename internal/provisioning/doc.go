// Package provisioning provides shared types, interfaces, and orchestration
// for cluster lifecycle operations.
//
// # Subpackages
//
//   - compute/ — network, image resolution, instance reconciliation
//   - destroy/ — infrastructure teardown
//
// # Core Types
//
// Context carries configuration, the state store, platform services, and an
// observer. Phase defines a lifecycle step with Name() and Provision()
// methods; RunPhases executes them sequentially.
package provisioning
