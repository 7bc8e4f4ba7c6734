// Package bootstrap provides shared types and interfaces for cluster
// bootstrapping.
//
// The bootstrap domain is organized into focused subpackages:
//   - phases/ — Provision, ControlPlane, Workers, Verify phase implementations
//   - orchestrator/ — phase assembly, run lifecycle, teardown
//
// This root package contains the run state model, the collaborator
// interfaces (infrastructure provisioner, remote execution channel, script
// generator, state store), the join credential store, and the phase pipeline
// used across subpackages.
package bootstrap
