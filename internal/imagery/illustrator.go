package imagery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"storyreel/internal/config"
	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// JobQueue is the slice of the job scheduler a delegating step uses.
type JobQueue interface {
	Enqueue(ctx context.Context, projectID string, payload jobs.Payload, items []jobs.Item) (*jobs.Job, error)
	GetJob(ctx context.Context, jobID string) (*jobs.Job, error)
}

// Illustrator runs the generate_images step. It enqueues one illustration
// item per scene that still needs an image, checkpoints the job id into the
// step result, and polls the job until it settles. A restarted daemon finds
// the job id in the step result and re-attaches instead of enqueueing twice.
type Illustrator struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	queue  JobQueue
}

// NewIllustrator wires the generate_images step handler.
func NewIllustrator(cfg *config.Config, st *store.Store, logger *slog.Logger, queue JobQueue) *Illustrator {
	return &Illustrator{
		store:  st,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "imagery"),
		queue:  queue,
	}
}

// Execute drives scene illustration through the job scheduler.
func (il *Illustrator) Execute(ctx context.Context, run *workflow.Run) error {
	logger := logging.WithContext(ctx, il.logger)

	proj, err := il.store.GetProject(ctx, run.Workflow.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "imagery", "load project", "Failed to load project", err)
	}
	if proj == nil {
		return services.Wrap(services.ErrNotFound, "imagery", "load project", fmt.Sprintf("project %s not found", run.Workflow.ProjectID), nil)
	}

	if jobID := run.Step.ResultField("job_id"); jobID != "" {
		reattached, err := il.reattach(ctx, jobID)
		if err != nil {
			return err
		}
		if reattached {
			logger.Info("re-attached to illustration job", logging.String(logging.FieldJobID, jobID))
			return il.await(ctx, run, jobID, 0)
		}
	}

	scenes, err := il.store.ListProjectScenes(ctx, proj.ID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "imagery", "load scenes", "Failed to load project scenes", err)
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrValidation, "imagery", "validate inputs",
			"Project has no scenes to illustrate; the storyboard step must complete first", nil)
	}

	items := make([]jobs.Item, 0, len(scenes))
	for _, scene := range scenes {
		if scene.ImageURL != "" {
			continue
		}
		items = append(items, jobs.Item{SceneID: scene.ID, SceneNumber: scene.Number})
	}
	skipped := len(scenes) - len(items)
	if len(items) == 0 {
		logger.Info("all scenes already illustrated", logging.Int("scene_count", len(scenes)))
		return run.Step.SetResult(map[string]any{
			"scenes_total":   len(scenes),
			"scenes_skipped": skipped,
		})
	}

	var payload jobs.Payload
	if len(proj.Characters) > 0 {
		payload = jobs.CharacterImagePayload{StyleID: styleFor(proj, il.cfg), Characters: proj.Characters}
	} else {
		payload = jobs.ImagePayload{StyleID: styleFor(proj, il.cfg)}
	}
	job, err := il.queue.Enqueue(ctx, proj.ID, payload, items)
	if err != nil {
		return err
	}

	// The job id must hit the store before polling starts, or a crash here
	// would strand the running job and enqueue a duplicate on resume.
	if err := run.Step.SetResult(map[string]any{"job_id": job.ID}); err != nil {
		return err
	}
	if err := run.Save(ctx); err != nil {
		return err
	}
	logger.Info("illustration job enqueued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("job_kind", string(job.Kind)),
		logging.Int("item_count", len(items)),
		logging.Int("scenes_skipped", skipped),
	)
	return il.await(ctx, run, job.ID, skipped)
}

// reattach reports whether the job id from a previous run still exists.
// Swept jobs read as gone and the step starts over.
func (il *Illustrator) reattach(ctx context.Context, jobID string) (bool, error) {
	_, err := il.queue.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (il *Illustrator) await(ctx context.Context, run *workflow.Run, jobID string, skipped int) error {
	final, err := jobs.Await(ctx, il.queue, jobID, jobs.AwaitOptions{
		Interval:    time.Duration(il.cfg.Pipeline.ImagePollInterval) * time.Second,
		MaxAttempts: il.cfg.Pipeline.PollMaxAttempts,
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
		return services.Wrap(marker, "imagery", "await job", failMessage(final), nil)
	}
	return run.Step.SetResult(map[string]any{
		"job_id":         final.ID,
		"items_total":    final.Progress.Total,
		"items_failed":   len(final.FailedItems()),
		"scenes_skipped": skipped,
	})
}

// HealthCheck verifies the illustrator's dependencies.
func (il *Illustrator) HealthCheck(ctx context.Context) workflow.Health {
	const name = "illustration"
	if il.cfg == nil {
		return workflow.Unhealthy(name, "configuration unavailable")
	}
	if il.queue == nil {
		return workflow.Unhealthy(name, "job scheduler unavailable")
	}
	return workflow.Healthy(name)
}

func failMessage(job *jobs.Job) string {
	if job.Error != "" {
		return job.Error
	}
	return fmt.Sprintf("%s job %s failed", job.Kind, job.ID)
}
