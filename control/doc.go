// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, configuration control, and debug introspection layer
// for hioload-ring.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads with typed accessors and reload listeners
//   - Prometheus-backed ring metrics
//   - State export and probe registration
package control
