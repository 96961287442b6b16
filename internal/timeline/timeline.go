package timeline

import (
	"fmt"
	"math"
	"sort"
)

const (
	// MinSceneSeconds is the shortest duration a scene may be allocated.
	MinSceneSeconds = 3.0
	// MaxSceneSeconds is the longest duration a scene may be allocated.
	MaxSceneSeconds = 20.0

	// toleranceSeconds bounds the floating-point drift permitted at interval
	// boundaries before Validate rejects a partition.
	toleranceSeconds = 0.005
)

// Interval assigns one scene a time range within the total duration.
type Interval struct {
	SceneNumber  int
	StartSeconds float64
	EndSeconds   float64
}

// Duration returns the interval length in seconds.
func (i Interval) Duration() float64 {
	return i.EndSeconds - i.StartSeconds
}

// Validate checks the partition contract: intervals sorted by scene number,
// first start at 0, last end at totalSeconds, and every boundary shared with
// its neighbor, all within a few milliseconds.
func Validate(intervals []Interval, totalSeconds float64) error {
	if len(intervals) == 0 {
		return fmt.Errorf("timeline: empty partition")
	}
	if !sort.SliceIsSorted(intervals, func(a, b int) bool {
		return intervals[a].SceneNumber < intervals[b].SceneNumber
	}) {
		return fmt.Errorf("timeline: intervals not sorted by scene number")
	}
	if math.Abs(intervals[0].StartSeconds) > toleranceSeconds {
		return fmt.Errorf("timeline: first interval starts at %.4fs, want 0", intervals[0].StartSeconds)
	}
	last := intervals[len(intervals)-1]
	if math.Abs(last.EndSeconds-totalSeconds) > toleranceSeconds {
		return fmt.Errorf("timeline: last interval ends at %.4fs, want %.4fs", last.EndSeconds, totalSeconds)
	}
	for i := 0; i < len(intervals)-1; i++ {
		gap := intervals[i+1].StartSeconds - intervals[i].EndSeconds
		if math.Abs(gap) > toleranceSeconds {
			return fmt.Errorf("timeline: scenes %d and %d misaligned by %.4fs",
				intervals[i].SceneNumber, intervals[i+1].SceneNumber, gap)
		}
	}
	return nil
}

func validateTotal(totalSeconds float64) error {
	if math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) || totalSeconds <= 0 {
		return fmt.Errorf("timeline: total duration must be a positive number, got %v", totalSeconds)
	}
	return nil
}
