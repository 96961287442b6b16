// Package workflow drives a project's generation pipeline through an ordered
// list of steps.
//
// Each project type has a fixed step list. The Manager persists every status
// transition before acting on it, so a crashed daemon resumes exactly where
// the store says it was: completed steps are never re-run and execution picks
// up at the first non-completed step. Soft steps degrade to a skipped result
// on failure instead of halting the workflow; integrity failures always halt.
package workflow
