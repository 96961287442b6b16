// Package videogen implements the motion steps of the pipeline:
// generate_sora_prompts composes a video generation prompt per scene, and
// generate_videos delegates per-scene clip generation to the job scheduler.
package videogen

import (
	"context"
	"fmt"

	"log/slog"

	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// PromptSource is the slice of the generation provider the composer uses.
type PromptSource interface {
	ComposeVideoPrompt(ctx context.Context, req provider.PromptRequest) (string, error)
}

// PromptComposer runs the generate_sora_prompts step. The step is soft;
// individual scenes may fail without consequence, and only a run that
// composes nothing at all reports an error for the manager to degrade.
type PromptComposer struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	source PromptSource
}

// NewPromptComposer wires the generate_sora_prompts step handler.
func NewPromptComposer(cfg *config.Config, st *store.Store, logger *slog.Logger, source PromptSource) *PromptComposer {
	return &PromptComposer{
		store:  st,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "videogen"),
		source: source,
	}
}

// Execute composes and stores a video prompt for every scene lacking one.
func (c *PromptComposer) Execute(ctx context.Context, run *workflow.Run) error {
	logger := logging.WithContext(ctx, c.logger)

	proj, err := c.store.GetProject(ctx, run.Workflow.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "videogen", "load project", "Failed to load project", err)
	}
	if proj == nil {
		return services.Wrap(services.ErrNotFound, "videogen", "load project", fmt.Sprintf("project %s not found", run.Workflow.ProjectID), nil)
	}
	scenes, err := c.store.ListProjectScenes(ctx, proj.ID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "videogen", "load scenes", "Failed to load project scenes", err)
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrValidation, "videogen", "validate inputs",
			"Project has no scenes; the storyboard step must complete first", nil)
	}

	composed := 0
	skipped := 0
	failed := 0
	styleID := styleFor(proj, c.cfg)
	for i, scene := range scenes {
		run.ReportProgress(ctx, 100*i/len(scenes))
		if scene.VideoPrompt != "" {
			skipped++
			continue
		}
		prompt, err := c.source.ComposeVideoPrompt(ctx, provider.PromptRequest{
			Title:     proj.Title,
			SceneText: scene.Text,
			StyleID:   styleID,
		})
		if err != nil {
			failed++
			logger.Warn("video prompt composition failed",
				logging.Int(logging.FieldSceneNumber, scene.Number),
				logging.Error(err),
			)
			continue
		}
		if err := c.store.SetSceneVideoPrompt(ctx, scene.ID, prompt); err != nil {
			return services.Wrap(services.ErrPersistence, "videogen", "save scene", "Failed to record the video prompt", err)
		}
		composed++
	}

	if composed == 0 && failed > 0 {
		return services.Wrap(services.ErrProvider, "videogen", "compose prompts",
			fmt.Sprintf("Video prompt composition failed for all %d scenes", failed), nil)
	}
	logger.Info("video prompts composed",
		logging.Int("composed", composed),
		logging.Int("skipped", skipped),
		logging.Int("failed", failed),
	)
	return run.Step.SetResult(map[string]any{
		"composed": composed,
		"skipped":  skipped,
		"failed":   failed,
	})
}

// HealthCheck verifies the composer's dependencies.
func (c *PromptComposer) HealthCheck(ctx context.Context) workflow.Health {
	const name = "video-prompts"
	if c.cfg == nil {
		return workflow.Unhealthy(name, "configuration unavailable")
	}
	if c.source == nil {
		return workflow.Unhealthy(name, "generation provider unavailable")
	}
	return workflow.Healthy(name)
}
