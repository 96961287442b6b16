// Package api defines the transport-friendly representations of pipeline
// state shared by the IPC server and the CLI.
//
// Conversion helpers map internal models (projects, workflows, jobs, handler
// health) onto stable camelCase JSON shapes so the daemon and its clients can
// evolve independently of the store schema.
package api
