// Package timeline partitions a fixed narration duration across the scenes
// of a project.
//
// Two entry points share one output contract: an ordered, contiguous,
// gap-free partition of [0, totalDuration] with one interval per scene.
// AllocateByWordCount derives durations from scene word counts when no
// timestamps exist; Reconcile repairs externally supplied, possibly
// malformed timestamps against the known total duration.
//
// The package is pure: it never touches storage, and every call produces a
// fresh partition.
package timeline
