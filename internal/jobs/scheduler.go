package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storyreel/internal/events"
	"storyreel/internal/logging"
	"storyreel/internal/services"
)

// Runner executes one work item of a job kind. Implementations must treat
// the job as read-only: identity and payload fields are safe to read
// concurrently, items are handed over by value.
type Runner interface {
	RunItem(ctx context.Context, job *Job, item Item) (json.RawMessage, error)
}

// Repository is the persistence surface the scheduler needs. *store.Store
// satisfies it.
type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	UpdateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobsByStatus(ctx context.Context, statuses ...Status) ([]*Job, error)
	ListJobsByProject(ctx context.Context, projectID string) ([]*Job, error)
	ResetStaleProcessingJobs(ctx context.Context) (int, error)
	DeleteTerminalJobsBefore(ctx context.Context, status Status, cutoff time.Time) (int, error)
}

// Options tunes scheduler behavior. Zero values fall back to the documented
// defaults.
type Options struct {
	// BatchSize caps how many items of a batched job run concurrently.
	BatchSize int
	// BatchDelay is the pause between consecutive batches.
	BatchDelay time.Duration
	// DispatchInterval is how often the scheduler rescans for pending jobs
	// in addition to enqueue-time kicks.
	DispatchInterval time.Duration
	// SweepInterval is how often terminal jobs are pruned.
	SweepInterval time.Duration
	// CompletedTTL and FailedTTL bound how long terminal jobs are retained.
	CompletedTTL time.Duration
	FailedTTL    time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 3
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = time.Second
	}
	if o.DispatchInterval <= 0 {
		o.DispatchInterval = 2 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Minute
	}
	if o.CompletedTTL <= 0 {
		o.CompletedTTL = 24 * time.Hour
	}
	if o.FailedTTL <= 0 {
		o.FailedTTL = 7 * 24 * time.Hour
	}
	return o
}

// Scheduler claims pending jobs and processes them with bounded concurrency.
// One goroutine runs per claimed job; batched kinds fan items out in
// fixed-size batches inside that goroutine.
type Scheduler struct {
	opts   Options
	repo   Repository
	bus    events.Bus
	logger *slog.Logger

	mu      sync.Mutex
	runners map[Kind]Runner
	tokens  map[string]*CancelToken
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	kick    chan struct{}
	lastErr error
}

// NewScheduler constructs a scheduler. Runners are registered separately
// through Register.
func NewScheduler(repo Repository, bus events.Bus, logger *slog.Logger, opts Options) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		opts:    opts.withDefaults(),
		repo:    repo,
		bus:     bus,
		logger:  logging.NewComponentLogger(logger, "job-scheduler"),
		runners: make(map[Kind]Runner),
		tokens:  make(map[string]*CancelToken),
		kick:    make(chan struct{}, 1),
	}
}

// Register binds a runner to a job kind. Enqueue rejects kinds with no
// registered runner.
func (s *Scheduler) Register(kind Kind, runner Runner) {
	s.mu.Lock()
	s.runners[kind] = runner
	s.mu.Unlock()
}

func (s *Scheduler) runnerFor(kind Kind) (Runner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runner, ok := s.runners[kind]
	return runner, ok
}

// Start begins dispatch and retention processing. Jobs left in processing by
// a crashed run are rewound to pending so they are claimed again; their
// finished items carry outcomes and are skipped on the rerun.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("job scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	reset, err := s.repo.ResetStaleProcessingJobs(ctx)
	if err != nil {
		s.logger.Warn("failed to reset stale processing jobs",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
	} else if reset > 0 {
		s.logger.Info("rewound stale processing jobs",
			logging.Int("count", reset),
			logging.String(logging.FieldEventType, "jobs_rewound"),
		)
	}

	s.wg.Add(2)
	go s.dispatchLoop(runCtx)
	go s.retentionLoop(runCtx)
	return nil
}

// Stop terminates dispatch and waits for claimed jobs to observe the
// shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Enqueue validates and persists a new pending job, then kicks the
// dispatcher. Items must be non-empty and the payload kind must have a
// registered runner.
func (s *Scheduler) Enqueue(ctx context.Context, projectID string, payload Payload, items []Item) (*Job, error) {
	if payload == nil {
		return nil, services.Wrap(services.ErrValidation, "jobs", "enqueue", "job payload is required", nil)
	}
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrValidation, "jobs", "enqueue", "job requires at least one item", nil)
	}
	kind := payload.Kind()
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, services.Wrap(services.ErrValidation, "jobs", "enqueue", err.Error(), nil)
	}
	if _, ok := s.runnerFor(kind); !ok {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "enqueue",
			fmt.Sprintf("no runner registered for kind %s", kind), nil)
	}

	job := NewJob(projectID, payload, items)
	if err := services.WithRetry(ctx, services.PersistencePolicy(), func(retryCtx context.Context) error {
		return s.repo.CreateJob(retryCtx, job)
	}); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "jobs", "enqueue", "persist new job", err)
	}

	s.logger.Info("job enqueued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldProjectID, job.ProjectID),
		logging.String("kind", string(job.Kind)),
		logging.Int("items", len(job.Items)),
		logging.String(logging.FieldEventType, "job_enqueued"),
	)
	s.publishJob(events.TypeJobAdded, job)
	s.kickDispatch()
	return job.Clone(), nil
}

// GetJob reads the durable state of a job. Item outcomes are persisted as
// they land, so polling this is enough to track progress.
func (s *Scheduler) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	return job, nil
}

// ListJobs reads jobs from the store, optionally filtered by status.
func (s *Scheduler) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	return s.repo.ListJobsByStatus(ctx, statuses...)
}

// ListProjectJobs reads every job owned by a project.
func (s *Scheduler) ListProjectJobs(ctx context.Context, projectID string) ([]*Job, error) {
	return s.repo.ListJobsByProject(ctx, projectID)
}

// LastError exposes the most recent scheduler-level failure for diagnostics.
func (s *Scheduler) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return ""
	}
	return s.lastErr.Error()
}

func (s *Scheduler) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Scheduler) kickDispatch() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.DispatchInterval)
	defer ticker.Stop()
	for {
		s.dispatchPending(ctx)
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) dispatchPending(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	pending, err := s.repo.ListJobsByStatus(ctx, StatusPending)
	if err != nil {
		s.setLastError(err)
		s.logger.Error("failed to list pending jobs",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
		return
	}
	for _, job := range pending {
		if token, claimed := s.claim(job.ID); claimed {
			s.wg.Add(1)
			go s.process(ctx, job, token)
		}
	}
}

// claim registers a cancellation token for the job before its goroutine
// starts, so Cancel always finds a token for claimed jobs.
func (s *Scheduler) claim(jobID string) (*CancelToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, false
	}
	if _, busy := s.tokens[jobID]; busy {
		return nil, false
	}
	token := &CancelToken{}
	s.tokens[jobID] = token
	return token, true
}

func (s *Scheduler) release(jobID string) {
	s.mu.Lock()
	delete(s.tokens, jobID)
	s.mu.Unlock()
}

func (s *Scheduler) tokenFor(jobID string) *CancelToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[jobID]
}

func (s *Scheduler) publishJob(t events.Type, job *Job) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type: t,
		Time: time.Now().UTC(),
		Data: events.JobEvent{
			JobID:     job.ID,
			ProjectID: job.ProjectID,
			Kind:      string(job.Kind),
			Status:    string(job.Status),
			Completed: job.Progress.Completed,
			Total:     job.Progress.Total,
			Error:     job.Error,
		},
	})
}

func (s *Scheduler) publishItem(job *Job, item Item) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type: events.TypeJobProgress,
		Time: time.Now().UTC(),
		Data: events.JobProgressEvent{
			JobID:       job.ID,
			ProjectID:   job.ProjectID,
			ItemID:      item.ID,
			SceneNumber: item.SceneNumber,
			Result:      item.Result,
			Error:       item.Error,
		},
	})
}

func (s *Scheduler) persistJob(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	if err := services.WithRetry(ctx, services.PersistencePolicy(), func(retryCtx context.Context) error {
		return s.repo.UpdateJob(retryCtx, job)
	}); err != nil {
		return services.Wrap(services.ErrPersistence, "jobs", "persist", "persist job state", err)
	}
	return nil
}
