package jobs

import (
	"context"
	"time"

	"storyreel/internal/events"
	"storyreel/internal/logging"
	"storyreel/internal/services"
)

// Cancel requests cooperative cancellation of a job. Terminal jobs are left
// alone and reported as not cancelled. Pending jobs are failed directly;
// claimed jobs have their token set so no new items start while in-flight
// items finish unrecorded. Returns true when this call transitioned the job.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) (bool, error) {
	if token := s.tokenFor(jobID); token != nil {
		return s.cancelClaimed(ctx, jobID, token)
	}

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Terminal() {
		return false, nil
	}
	if err := s.markCancelled(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scheduler) cancelClaimed(ctx context.Context, jobID string, token *CancelToken) (bool, error) {
	var (
		cancelled bool
		cancelErr error
	)
	tripped := token.trip(func() {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			cancelErr = err
			return
		}
		if job.Terminal() {
			// Finished in the window between lookup and lock; the flag is
			// moot because the processing goroutine is already done with it.
			return
		}
		cancelErr = s.markCancelled(ctx, job)
		cancelled = cancelErr == nil
	})
	if !tripped {
		return false, nil
	}
	return cancelled, cancelErr
}

func (s *Scheduler) markCancelled(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	job.Status = StatusFailed
	job.Error = CancelledMessage
	job.CompletedAt = &now
	if err := s.persistJob(ctx, job); err != nil {
		return err
	}
	s.publishJob(events.TypeJobCancelled, job)
	s.logger.Info("job cancellation recorded",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldProjectID, job.ProjectID),
		logging.Int("completed", job.Progress.Completed),
		logging.Int("total", job.Progress.Total),
		logging.String(logging.FieldEventType, "job_cancel"),
	)
	return nil
}

// CancelProjectJobs cancels every non-terminal job owned by a project and
// returns how many were transitioned.
func (s *Scheduler) CancelProjectJobs(ctx context.Context, projectID string) (int, error) {
	jobs, err := s.repo.ListJobsByProject(ctx, projectID)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "jobs", "cancel-project", "list project jobs", err)
	}
	cancelled := 0
	for _, job := range jobs {
		if job.Terminal() {
			continue
		}
		ok, err := s.Cancel(ctx, job.ID)
		if err != nil {
			return cancelled, err
		}
		if ok {
			cancelled++
		}
	}
	return cancelled, nil
}
