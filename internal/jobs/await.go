package jobs

import (
	"context"
	"fmt"
	"time"

	"storyreel/internal/services"
)

// JobSource is the read surface Await needs. *Scheduler satisfies it.
type JobSource interface {
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

// AwaitOptions bounds a terminal-state poll loop.
type AwaitOptions struct {
	// Interval between polls. Defaults to 10 seconds.
	Interval time.Duration
	// MaxAttempts caps the number of polls. Defaults to 720.
	MaxAttempts int
	// OnPoll observes every fetched snapshot, terminal or not. Used by
	// workflow steps to translate job progress into step progress.
	OnPoll func(*Job)
}

// Await polls the job until it reaches a terminal status and returns the
// final snapshot. The first poll happens immediately so already-terminal
// jobs return without sleeping, which is what lets a restarted workflow step
// re-attach to a job that finished while the daemon was down.
func Await(ctx context.Context, source JobSource, jobID string, opts AwaitOptions) (*Job, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 720
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		job, err := source.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if opts.OnPoll != nil {
			opts.OnPoll(job)
		}
		if job.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, services.Wrap(services.ErrTransient, "jobs", "await",
		fmt.Sprintf("job %s did not reach a terminal state within %d polls", jobID, attempts), nil)
}
