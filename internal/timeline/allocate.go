package timeline

import (
	"fmt"
	"math"
	"sort"
)

// SceneWeight carries the script word count that drives a scene's share of
// the narration when no external timestamps exist.
type SceneWeight struct {
	SceneNumber int
	WordCount   int
}

// AllocateByWordCount partitions totalSeconds across the given scenes in
// proportion to the square root of each scene's word count. Durations are
// clamped to [MinSceneSeconds, MaxSceneSeconds] and the clamp surplus is
// spread across the unclamped scenes in a single rescale pass.
//
// When every scene is pinned at a bound, or the pinned scenes alone exceed
// the total, the whole set is scaled proportionally instead and durations may
// land fractionally outside the clamp range. The pass never iterates; the
// partition of [0, totalSeconds] always holds.
func AllocateByWordCount(scenes []SceneWeight, totalSeconds float64) ([]Interval, error) {
	if err := validateTotal(totalSeconds); err != nil {
		return nil, err
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("timeline: no scenes to allocate")
	}

	ordered := make([]SceneWeight, len(scenes))
	copy(ordered, scenes)
	sort.Slice(ordered, func(a, b int) bool {
		return ordered[a].SceneNumber < ordered[b].SceneNumber
	})

	weights := make([]float64, len(ordered))
	var weightSum float64
	for i, scene := range ordered {
		words := scene.WordCount
		if words < 1 {
			words = 1
		}
		weights[i] = math.Sqrt(float64(words))
		weightSum += weights[i]
	}

	durations := make([]float64, len(ordered))
	pinned := make([]bool, len(ordered))
	var pinnedSum, freeSum float64
	for i, weight := range weights {
		duration := weight / weightSum * totalSeconds
		switch {
		case duration < MinSceneSeconds:
			duration = MinSceneSeconds
			pinned[i] = true
		case duration > MaxSceneSeconds:
			duration = MaxSceneSeconds
			pinned[i] = true
		}
		durations[i] = duration
		if pinned[i] {
			pinnedSum += duration
		} else {
			freeSum += duration
		}
	}

	remaining := totalSeconds - pinnedSum
	if freeSum > 0 && remaining > 0 {
		factor := remaining / freeSum
		for i := range durations {
			if !pinned[i] {
				durations[i] *= factor
			}
		}
	} else {
		var sum float64
		for _, duration := range durations {
			sum += duration
		}
		factor := totalSeconds / sum
		for i := range durations {
			durations[i] *= factor
		}
	}

	intervals := make([]Interval, len(ordered))
	cursor := 0.0
	for i, scene := range ordered {
		end := cursor + durations[i]
		intervals[i] = Interval{
			SceneNumber:  scene.SceneNumber,
			StartSeconds: cursor,
			EndSeconds:   end,
		}
		cursor = end
	}
	intervals[len(intervals)-1].EndSeconds = totalSeconds
	return intervals, nil
}
