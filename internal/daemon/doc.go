// Package daemon coordinates the long-running Storyreel process.
//
// It wires the project store, the workflow manager, the job scheduler, and
// the script watcher into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon exposes the project/workflow/job
// operations the IPC layer serves and owns script ingestion, both manual
// (AddProject) and automatic (watch directory).
//
// Keep orchestration logic here: individual pipeline steps live in their own
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
