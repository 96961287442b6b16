package timeline

import (
	"fmt"
	"math"
	"sort"
)

// Claim is an externally produced timestamp assertion for one scene. Claims
// may overlap, leave gaps, cover only part of the scene set, or carry
// non-finite values; Reconcile repairs all of that.
type Claim struct {
	SceneNumber  int
	StartSeconds float64
	EndSeconds   float64
}

// maxCompressionShare caps how much of the total duration a reconcile pass
// may take away from claimed scenes to make room for missing ones.
const maxCompressionShare = 0.2

// Reconcile repairs external scene timestamps into a partition of
// [0, totalSeconds] covering every scene in sceneNumbers.
//
// Claims for unknown scenes, claims with non-finite values, and claims whose
// start is not before their end are discarded; the first claim per scene
// wins. Surviving claims are ordered by scene number, the first start is
// forced to 0, and every adjacent boundary mismatch is settled at the
// midpoint. Scenes without a surviving claim are appended evenly into the
// unused tail when one exists; otherwise the claimed scenes are compressed
// uniformly, never by more than maxCompressionShare of the total, to free a
// tail for them. A final pass lays the intervals out cumulatively in scene
// order and normalizes the sum to totalSeconds.
func Reconcile(sceneNumbers []int, claims []Claim, totalSeconds float64) ([]Interval, error) {
	if err := validateTotal(totalSeconds); err != nil {
		return nil, err
	}
	expected := uniqueSorted(sceneNumbers)
	if len(expected) == 0 {
		return nil, fmt.Errorf("timeline: no scenes to reconcile")
	}

	claimed := make(map[int]Claim, len(claims))
	known := make(map[int]bool, len(expected))
	for _, number := range expected {
		known[number] = true
	}
	for _, claim := range claims {
		if !known[claim.SceneNumber] {
			continue
		}
		if !isFinite(claim.StartSeconds) || !isFinite(claim.EndSeconds) {
			continue
		}
		start := math.Max(claim.StartSeconds, 0)
		end := math.Min(claim.EndSeconds, totalSeconds)
		if start >= end {
			continue
		}
		if _, dup := claimed[claim.SceneNumber]; dup {
			continue
		}
		claimed[claim.SceneNumber] = Claim{
			SceneNumber:  claim.SceneNumber,
			StartSeconds: start,
			EndSeconds:   end,
		}
	}

	if len(claimed) == 0 {
		return uniformSplit(expected, totalSeconds), nil
	}

	placed := make([]Interval, 0, len(claimed))
	var missing []int
	for _, number := range expected {
		claim, ok := claimed[number]
		if !ok {
			missing = append(missing, number)
			continue
		}
		placed = append(placed, Interval{
			SceneNumber:  number,
			StartSeconds: claim.StartSeconds,
			EndSeconds:   claim.EndSeconds,
		})
	}

	placed[0].StartSeconds = 0
	for i := 0; i < len(placed)-1; i++ {
		mid := (placed[i].EndSeconds + placed[i+1].StartSeconds) / 2
		placed[i].EndSeconds = mid
		placed[i+1].StartSeconds = mid
	}

	if len(missing) == 0 {
		placed[len(placed)-1].EndSeconds = totalSeconds
		return rebuild(placed, totalSeconds), nil
	}

	lastEnd := placed[len(placed)-1].EndSeconds
	tail := totalSeconds - lastEnd
	if tail <= toleranceSeconds {
		freed := math.Min(
			maxCompressionShare*totalSeconds,
			totalSeconds*float64(len(missing))/float64(len(expected)),
		)
		factor := (lastEnd - freed) / lastEnd
		for i := range placed {
			placed[i].StartSeconds *= factor
			placed[i].EndSeconds *= factor
		}
		lastEnd = placed[len(placed)-1].EndSeconds
	}

	share := (totalSeconds - lastEnd) / float64(len(missing))
	cursor := lastEnd
	for _, number := range missing {
		placed = append(placed, Interval{
			SceneNumber:  number,
			StartSeconds: cursor,
			EndSeconds:   cursor + share,
		})
		cursor += share
	}

	sort.Slice(placed, func(a, b int) bool {
		return placed[a].SceneNumber < placed[b].SceneNumber
	})
	return rebuild(placed, totalSeconds), nil
}

// rebuild lays intervals out back to back in their current order and scales
// durations so the partition ends exactly at totalSeconds. Inverted intervals
// left behind by midpoint repair of disordered claims collapse to a nominal
// second before scaling.
func rebuild(intervals []Interval, totalSeconds float64) []Interval {
	durations := make([]float64, len(intervals))
	var sum float64
	for i, interval := range intervals {
		duration := interval.Duration()
		if duration <= 0 {
			duration = 1
		}
		durations[i] = duration
		sum += duration
	}
	factor := totalSeconds / sum

	out := make([]Interval, len(intervals))
	cursor := 0.0
	for i, interval := range intervals {
		end := cursor + durations[i]*factor
		out[i] = Interval{
			SceneNumber:  interval.SceneNumber,
			StartSeconds: cursor,
			EndSeconds:   end,
		}
		cursor = end
	}
	out[len(out)-1].EndSeconds = totalSeconds
	return out
}

func uniformSplit(sceneNumbers []int, totalSeconds float64) []Interval {
	share := totalSeconds / float64(len(sceneNumbers))
	out := make([]Interval, len(sceneNumbers))
	cursor := 0.0
	for i, number := range sceneNumbers {
		out[i] = Interval{
			SceneNumber:  number,
			StartSeconds: cursor,
			EndSeconds:   cursor + share,
		}
		cursor += share
	}
	out[len(out)-1].EndSeconds = totalSeconds
	return out
}

func uniqueSorted(numbers []int) []int {
	seen := make(map[int]bool, len(numbers))
	out := make([]int, 0, len(numbers))
	for _, number := range numbers {
		if seen[number] {
			continue
		}
		seen[number] = true
		out = append(out, number)
	}
	sort.Ints(out)
	return out
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
