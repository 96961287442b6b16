package videogen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"storyreel/internal/config"
	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// JobQueue is the slice of the job scheduler a delegating step uses.
type JobQueue interface {
	Enqueue(ctx context.Context, projectID string, payload jobs.Payload, items []jobs.Item) (*jobs.Job, error)
	GetJob(ctx context.Context, jobID string) (*jobs.Job, error)
}

// Animator runs the generate_videos step: one video-generation item per
// scene that still needs a clip, polled at the video cadence, which is
// slower than the image one. Scenes whose illustration never materialized
// are submitted anyway so their failure is recorded per item instead of
// being silently skipped.
type Animator struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	queue  JobQueue
}

// NewAnimator wires the generate_videos step handler.
func NewAnimator(cfg *config.Config, st *store.Store, logger *slog.Logger, queue JobQueue) *Animator {
	return &Animator{
		store:  st,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "videogen"),
		queue:  queue,
	}
}

// Execute drives scene animation through the job scheduler.
func (a *Animator) Execute(ctx context.Context, run *workflow.Run) error {
	logger := logging.WithContext(ctx, a.logger)

	proj, err := a.store.GetProject(ctx, run.Workflow.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "videogen", "load project", "Failed to load project", err)
	}
	if proj == nil {
		return services.Wrap(services.ErrNotFound, "videogen", "load project", fmt.Sprintf("project %s not found", run.Workflow.ProjectID), nil)
	}

	if jobID := run.Step.ResultField("job_id"); jobID != "" {
		_, err := a.queue.GetJob(ctx, jobID)
		switch {
		case err == nil:
			logger.Info("re-attached to animation job", logging.String(logging.FieldJobID, jobID))
			return a.await(ctx, run, jobID, 0)
		case !errors.Is(err, services.ErrNotFound):
			return err
		}
	}

	scenes, err := a.store.ListProjectScenes(ctx, proj.ID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "videogen", "load scenes", "Failed to load project scenes", err)
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrValidation, "videogen", "validate inputs",
			"Project has no scenes to animate; the storyboard step must complete first", nil)
	}

	items := make([]jobs.Item, 0, len(scenes))
	for _, scene := range scenes {
		if scene.VideoURL != "" {
			continue
		}
		items = append(items, jobs.Item{SceneID: scene.ID, SceneNumber: scene.Number})
	}
	skipped := len(scenes) - len(items)
	if len(items) == 0 {
		logger.Info("all scenes already animated", logging.Int("scene_count", len(scenes)))
		return run.Step.SetResult(map[string]any{
			"scenes_total":   len(scenes),
			"scenes_skipped": skipped,
		})
	}

	job, err := a.queue.Enqueue(ctx, proj.ID, jobs.VideoPayload{StyleID: styleFor(proj, a.cfg)}, items)
	if err != nil {
		return err
	}
	if err := run.Step.SetResult(map[string]any{"job_id": job.ID}); err != nil {
		return err
	}
	if err := run.Save(ctx); err != nil {
		return err
	}
	logger.Info("animation job enqueued",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("item_count", len(items)),
		logging.Int("scenes_skipped", skipped),
	)
	return a.await(ctx, run, job.ID, skipped)
}

func (a *Animator) await(ctx context.Context, run *workflow.Run, jobID string, skipped int) error {
	final, err := jobs.Await(ctx, a.queue, jobID, jobs.AwaitOptions{
		Interval:    time.Duration(a.cfg.Pipeline.VideoPollInterval) * time.Second,
		MaxAttempts: a.cfg.Pipeline.PollMaxAttempts,
		OnPoll: func(j *jobs.Job) {
			run.ReportProgress(ctx, j.Progress.Percent())
		},
	})
	if err != nil {
		return err
	}
	if final.Status == jobs.StatusFailed {
		marker := services.ErrProvider
		if final.Error == jobs.CancelledMessage {
			marker = services.ErrCancelled
		}
		message := final.Error
		if message == "" {
			message = fmt.Sprintf("%s job %s failed", final.Kind, final.ID)
		}
		return services.Wrap(marker, "videogen", "await job", message, nil)
	}
	return run.Step.SetResult(map[string]any{
		"job_id":         final.ID,
		"items_total":    final.Progress.Total,
		"items_failed":   len(final.FailedItems()),
		"scenes_skipped": skipped,
	})
}

// HealthCheck verifies the animator's dependencies.
func (a *Animator) HealthCheck(ctx context.Context) workflow.Health {
	const name = "animation"
	if a.cfg == nil {
		return workflow.Unhealthy(name, "configuration unavailable")
	}
	if a.queue == nil {
		return workflow.Unhealthy(name, "job scheduler unavailable")
	}
	return workflow.Healthy(name)
}

// styleFor resolves the style parameter, preferring the project's own.
func styleFor(proj *project.Project, cfg *config.Config) string {
	if strings.TrimSpace(proj.StyleID) != "" {
		return proj.StyleID
	}
	if cfg != nil {
		return cfg.Provider.StyleID
	}
	return ""
}
