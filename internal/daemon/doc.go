// Package daemon coordinates the long-running librarian process.
//
// It wires configuration, queue storage, the workflow manager and the watch
// folder into a single lifecycle with flock-based locking to prevent multiple
// instances. When the [metrics] section is enabled it also serves the HTTP
// status API and the Prometheus /metrics endpoint.
//
// Keep orchestration logic here: identification steps live in pipeline and
// ingestion in watch, while the daemon focuses on startup, shutdown and
// high level coordination.
package daemon
