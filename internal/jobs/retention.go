package jobs

import (
	"context"
	"time"

	"storyreel/internal/logging"
)

func (s *Scheduler) retentionLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Warn("retention sweep failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check job database access"),
				)
			}
		}
	}
}

// Sweep prunes terminal jobs past their retention TTLs and returns how many
// rows were removed. Failed jobs are kept longer than completed ones so
// their diagnostics stay inspectable.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	completed, err := s.repo.DeleteTerminalJobsBefore(ctx, StatusCompleted, now.Add(-s.opts.CompletedTTL))
	if err != nil {
		return 0, err
	}
	failed, err := s.repo.DeleteTerminalJobsBefore(ctx, StatusFailed, now.Add(-s.opts.FailedTTL))
	if err != nil {
		return completed, err
	}

	removed := completed + failed
	if removed > 0 {
		s.logger.Info("retention sweep removed terminal jobs",
			logging.Int("completed_removed", completed),
			logging.Int("failed_removed", failed),
			logging.String(logging.FieldEventType, "retention_sweep"),
		)
	}
	return removed, nil
}
