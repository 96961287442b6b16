// Package textutil provides small text helpers shared across the pipeline.
//
// Fingerprint hashes a script's normalized content so duplicate submissions
// of the same text map to one project. Truncate bounds free text for table
// cells and notification bodies.
package textutil
