// Package jobs schedules per-scene generation work with bounded concurrency.
//
// A Job is an immutable ordered list of work items plus a kind-specific
// payload. The Scheduler claims pending jobs, runs each one on its own
// goroutine, and processes items in fixed-size batches whose members run
// concurrently; the character-aware image kind instead runs items one at a
// time in scene order so later scenes can reference earlier results. Item
// failures are recorded per item and never abort the job.
//
// Cancellation is cooperative through an explicit token checked at batch and
// item boundaries: in-flight items finish, no new items start, and the job's
// progress snapshot freezes at the moment of cancellation. A retention sweep
// prunes terminal jobs on configured TTLs.
package jobs
