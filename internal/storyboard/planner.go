// Package storyboard implements the generate_scenes step: break the script
// into narrated scenes and partition the audio timeline across them.
package storyboard

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/timeline"
	"storyreel/internal/workflow"
)

// SceneBreaker is the slice of the generation provider the planner uses.
type SceneBreaker interface {
	BreakdownScenes(ctx context.Context, script string) ([]provider.ScenePlan, error)
}

// Planner runs the generate_scenes step. Provider timestamp guesses are
// treated as claims and reconciled against the audio duration; without any
// claim the timeline falls back to word-count weighting.
type Planner struct {
	store   *store.Store
	cfg     *config.Config
	logger  *slog.Logger
	breaker SceneBreaker
}

// NewPlanner wires the generate_scenes step handler.
func NewPlanner(cfg *config.Config, st *store.Store, logger *slog.Logger, breaker SceneBreaker) *Planner {
	return &Planner{
		store:   st,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "storyboard"),
		breaker: breaker,
	}
}

// Execute breaks the project script into scenes and writes them, with their
// time intervals, to the store. Any previous scene set for the project is
// replaced wholesale.
func (p *Planner) Execute(ctx context.Context, run *workflow.Run) error {
	logger := logging.WithContext(ctx, p.logger)

	proj, err := p.store.GetProject(ctx, run.Workflow.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "storyboard", "load project", "Failed to load project", err)
	}
	if proj == nil {
		return services.Wrap(services.ErrNotFound, "storyboard", "load project", fmt.Sprintf("project %s not found", run.Workflow.ProjectID), nil)
	}
	script := strings.TrimSpace(proj.Script)
	if script == "" {
		return services.Wrap(services.ErrValidation, "storyboard", "validate inputs", "Project has no script to break down", nil)
	}
	if proj.AudioDurationSeconds <= 0 {
		return services.Wrap(services.ErrValidation, "storyboard", "validate inputs",
			"Project has no audio duration; the audio step must complete first", nil)
	}
	run.ReportProgress(ctx, 10)

	plans, err := p.breaker.BreakdownScenes(ctx, script)
	if err != nil {
		return services.Wrap(services.ErrProvider, "storyboard", "breakdown", "Scene breakdown failed", err)
	}
	scenes, claims, weights := collectPlans(proj.ID, plans)
	if len(scenes) == 0 {
		return services.Wrap(services.ErrProvider, "storyboard", "breakdown", "Provider returned no usable scenes", nil)
	}
	run.ReportProgress(ctx, 40)

	mode := "weighted"
	var intervals []timeline.Interval
	if len(claims) > 0 {
		mode = "reconciled"
		numbers := make([]int, len(scenes))
		for i, scene := range scenes {
			numbers[i] = scene.Number
		}
		intervals, err = timeline.Reconcile(numbers, claims, proj.AudioDurationSeconds)
	} else {
		intervals, err = timeline.AllocateByWordCount(weights, proj.AudioDurationSeconds)
	}
	if err != nil {
		return services.Wrap(services.ErrValidation, "storyboard", "allocate timeline", err.Error(), err)
	}
	byNumber := make(map[int]timeline.Interval, len(intervals))
	for _, interval := range intervals {
		byNumber[interval.SceneNumber] = interval
	}
	for i := range scenes {
		interval := byNumber[scenes[i].Number]
		scenes[i].StartSeconds = interval.StartSeconds
		scenes[i].EndSeconds = interval.EndSeconds
	}
	run.ReportProgress(ctx, 70)

	if err := p.store.ReplaceProjectScenes(ctx, proj.ID, scenes); err != nil {
		return services.Wrap(services.ErrPersistence, "storyboard", "save scenes", "Failed to store the scene breakdown", err)
	}

	logger.Info("storyboard planned",
		logging.Int("scene_count", len(scenes)),
		logging.String("timeline_mode", mode),
		logging.Float64("total_seconds", proj.AudioDurationSeconds),
	)
	return run.Step.SetResult(map[string]any{
		"scene_count":   len(scenes),
		"timeline_mode": mode,
	})
}

// HealthCheck verifies the planner's dependencies.
func (p *Planner) HealthCheck(ctx context.Context) workflow.Health {
	const name = "storyboard"
	if p.cfg == nil {
		return workflow.Unhealthy(name, "configuration unavailable")
	}
	if p.breaker == nil {
		return workflow.Unhealthy(name, "generation provider unavailable")
	}
	return workflow.Healthy(name)
}

// collectPlans normalizes provider scene plans: blank scenes are dropped,
// numbering is reassigned sequentially in plan order, and timestamp guesses
// become timeline claims under the reassigned numbers.
func collectPlans(projectID string, plans []provider.ScenePlan) ([]project.Scene, []timeline.Claim, []timeline.SceneWeight) {
	scenes := make([]project.Scene, 0, len(plans))
	claims := make([]timeline.Claim, 0, len(plans))
	weights := make([]timeline.SceneWeight, 0, len(plans))
	for _, plan := range plans {
		text := strings.TrimSpace(plan.Text)
		if text == "" {
			continue
		}
		number := len(scenes) + 1
		wordCount := project.CountWords(text)
		scenes = append(scenes, project.Scene{
			ProjectID: projectID,
			Number:    number,
			Text:      text,
			WordCount: wordCount,
		})
		weights = append(weights, timeline.SceneWeight{SceneNumber: number, WordCount: wordCount})
		if plan.StartSeconds != nil && plan.EndSeconds != nil {
			claims = append(claims, timeline.Claim{
				SceneNumber:  number,
				StartSeconds: *plan.StartSeconds,
				EndSeconds:   *plan.EndSeconds,
			})
		}
	}
	return scenes, claims, weights
}
