package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"storyreel/internal/events"
	"storyreel/internal/logging"
	"storyreel/internal/services"
)

func (s *Scheduler) process(ctx context.Context, job *Job, token *CancelToken) {
	defer s.wg.Done()
	defer s.release(job.ID)

	logger := s.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldProjectID, job.ProjectID),
		logging.String("kind", string(job.Kind)),
	)

	if token.Cancelled() {
		logger.Debug("job cancelled before processing began")
		return
	}

	runner, ok := s.runnerFor(job.Kind)
	if !ok {
		s.failJob(ctx, job, token, fmt.Sprintf("no runner registered for kind %s", job.Kind), logger)
		return
	}

	started := token.unlessCancelled(func() {
		now := time.Now().UTC()
		job.Status = StatusProcessing
		job.StartedAt = &now
		if err := s.persistJob(ctx, job); err != nil {
			logger.Error("failed to persist processing transition", logging.Error(err))
		}
	})
	if !started {
		logger.Debug("job cancelled before processing began")
		return
	}
	s.publishJob(events.TypeJobUpdated, job)
	logger.Info("job started",
		logging.Int("items", len(job.Items)),
		logging.Int("remaining", len(job.PendingItems())),
		logging.String(logging.FieldEventType, "job_start"),
	)

	if job.Kind.Sequential() {
		s.runSequential(ctx, job, token, runner, logger)
	} else {
		s.runBatched(ctx, job, token, runner, logger)
	}

	if ctx.Err() != nil && !token.Cancelled() {
		// Shutdown mid-job: leave the row in processing so the next start
		// rewinds it to pending and finished items are skipped.
		logger.Debug("job interrupted by shutdown",
			logging.Int("completed", job.Progress.Completed),
			logging.Int("total", job.Progress.Total),
		)
		return
	}
	if token.Cancelled() {
		logger.Info("job cancelled",
			logging.Int("completed", job.Progress.Completed),
			logging.Int("total", job.Progress.Total),
			logging.String(logging.FieldEventType, "job_cancelled"),
		)
		return
	}

	s.completeJob(ctx, job, token, logger)
}

// runBatched processes pending items in fixed-size batches whose members run
// concurrently, pausing between batches. The token is checked before each
// batch and again before each item starts.
func (s *Scheduler) runBatched(ctx context.Context, job *Job, token *CancelToken, runner Runner, logger *slog.Logger) {
	pending := job.PendingItems()
	batchSize := s.opts.BatchSize
	sampler := logging.NewProgressSampler(10)

	for start := 0; start < len(pending); start += batchSize {
		if ctx.Err() != nil || token.Cancelled() {
			return
		}
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}

		g, groupCtx := errgroup.WithContext(ctx)
		for _, item := range pending[start:end] {
			item := item
			g.Go(func() error {
				s.runItem(groupCtx, job, item, token, runner, sampler, logger)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(pending) && ctx.Err() == nil && !token.Cancelled() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.BatchDelay):
			}
		}
	}
}

// runSequential processes pending items one at a time in scene order so each
// item can build on the results of the ones before it.
func (s *Scheduler) runSequential(ctx context.Context, job *Job, token *CancelToken, runner Runner, logger *slog.Logger) {
	sampler := logging.NewProgressSampler(10)
	for _, item := range job.PendingItems() {
		if ctx.Err() != nil || token.Cancelled() {
			return
		}
		s.runItem(ctx, job, item, token, runner, sampler, logger)
	}
}

func (s *Scheduler) runItem(ctx context.Context, job *Job, item Item, token *CancelToken, runner Runner, sampler *logging.ProgressSampler, logger *slog.Logger) {
	if ctx.Err() != nil || token.Cancelled() {
		return
	}
	itemCtx := services.WithJobID(services.WithProjectID(ctx, job.ProjectID), job.ID)
	result, err := runner.RunItem(itemCtx, job, item)
	s.recordOutcome(ctx, job, item.ID, result, err, token, sampler, logger)
}

// recordOutcome writes one item's result into the job under the token's
// lock. Item failures count as processed; outcomes landing after
// cancellation are discarded so the frozen progress snapshot never moves.
func (s *Scheduler) recordOutcome(ctx context.Context, job *Job, itemID string, result []byte, itemErr error, token *CancelToken, sampler *logging.ProgressSampler, logger *slog.Logger) {
	var (
		recorded Item
		found    bool
		progress Progress
	)
	ran := token.unlessCancelled(func() {
		for i := range job.Items {
			if job.Items[i].ID != itemID || job.Items[i].Done {
				continue
			}
			job.Items[i].Done = true
			if itemErr != nil {
				job.Items[i].Error = services.Details(itemErr).Message
			} else {
				job.Items[i].Result = result
			}
			job.Progress.Completed++
			recorded = job.Items[i]
			progress = job.Progress
			found = true
			break
		}
		if !found {
			return
		}
		if err := s.persistJob(ctx, job); err != nil {
			logger.Error("failed to persist item outcome", logging.Error(err))
		}
	})
	if !ran {
		logger.Debug("item finished after cancellation, outcome discarded",
			logging.String("item_id", itemID),
		)
		return
	}
	if !found {
		return
	}

	s.publishItem(job, recorded)
	if itemErr != nil {
		logger.Warn("job item failed",
			logging.Error(itemErr),
			logging.String("item_id", recorded.ID),
			logging.Int(logging.FieldSceneNumber, recorded.SceneNumber),
			logging.Int("completed", progress.Completed),
			logging.Int("total", progress.Total),
		)
		return
	}
	if sampler.ShouldLog(float64(progress.Percent()), string(job.Kind)) {
		logger.Info("job progress",
			logging.Int("completed", progress.Completed),
			logging.Int("total", progress.Total),
			logging.String(logging.FieldEventType, "job_progress"),
		)
	}
}

func (s *Scheduler) completeJob(ctx context.Context, job *Job, token *CancelToken, logger *slog.Logger) {
	done := token.unlessCancelled(func() {
		now := time.Now().UTC()
		job.Status = StatusCompleted
		job.CompletedAt = &now
		if err := s.persistJob(ctx, job); err != nil {
			logger.Error("failed to persist job completion", logging.Error(err))
		}
	})
	if !done {
		logger.Info("job cancelled at completion boundary",
			logging.String(logging.FieldEventType, "job_cancelled"),
		)
		return
	}
	s.publishJob(events.TypeJobCompleted, job)
	failed := len(job.FailedItems())
	logger.Info("job completed",
		logging.Int("completed", job.Progress.Completed),
		logging.Int("total", job.Progress.Total),
		logging.Int("failed_items", failed),
		logging.String(logging.FieldEventType, "job_complete"),
	)
}

// failJob marks the whole job failed for scheduler-level reasons such as a
// missing runner. Per-item provider errors never route through here.
func (s *Scheduler) failJob(ctx context.Context, job *Job, token *CancelToken, message string, logger *slog.Logger) {
	done := token.unlessCancelled(func() {
		now := time.Now().UTC()
		job.Status = StatusFailed
		job.Error = message
		job.CompletedAt = &now
		if err := s.persistJob(ctx, job); err != nil {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	})
	if !done {
		return
	}
	s.publishJob(events.TypeJobFailed, job)
	logger.Error("job failed",
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "job_failure"),
		logging.Alert("job_failure"),
	)
	s.setLastError(fmt.Errorf("job %s failed: %s", job.ID, message))
}
