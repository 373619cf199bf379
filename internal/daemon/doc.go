// Package daemon coordinates the long-running phototag process.
//
// It wires configuration, the queue store, the ingestion pipeline, and the
// workflow manager into a single lifecycle with flock-based locking to prevent
// two daemons from sharing a data directory. Alongside the worker pool it runs
// the reconciliation sweep that re-enqueues orphaned photos and serves the
// HTTP API used for uploads and catalog queries.
//
// Keep orchestration logic here: tagging and ingestion live in their own
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
