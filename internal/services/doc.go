// Package services defines shared utilities consumed by the pipeline
// orchestrator, the job scheduler, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project, workflow, job, and step identifiers
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the pipeline's taxonomy (validation, provider, integrity,
//     cancellation, persistence).
//   - A bounded retry helper for persistence operations with a longer backoff
//     for rate-limit-class errors.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across components.
package services
