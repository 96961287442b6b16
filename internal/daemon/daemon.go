package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"storyreel/internal/config"
	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/notifications"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	manager   *workflow.Manager
	scheduler *jobs.Scheduler
	notifier  notifications.Service
	watcher   *scriptWatcher
	logPath   string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Pipeline     workflow.StatusSummary
	Stats        store.Stats
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. A nil notifier
// falls back to the config-driven notification service.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, mgr *workflow.Manager, sched *jobs.Scheduler, notifier notifications.Service, logPath string) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || mgr == nil || sched == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, and job scheduler")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		manager:   mgr,
		scheduler: sched,
		notifier:  notifier,
		logPath:   logPath,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.watcher = newScriptWatcher(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the scheduler, the workflow
// manager, and the script watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another storyreel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.scheduler.Start(d.ctx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start job scheduler: %w", err)
	}
	if err := d.manager.Start(d.ctx); err != nil {
		d.scheduler.Stop()
		d.releaseStart()
		return fmt.Errorf("start workflow manager: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			d.logger.Warn("script watcher failed to start",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_start_failed"),
				logging.String(logging.FieldErrorHint, "check paths.watch_dir exists and is readable"),
			)
		}
	}

	d.running.Store(true)
	d.logger.Info("storyreel daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.manager.Stop()
	d.scheduler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("storyreel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status. The pipeline summary surfaces
// the scheduler's last error when the manager itself has none.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.manager.Status(ctx)
	if summary.LastError == "" {
		summary.LastError = d.scheduler.LastError()
	}
	st := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Pipeline:     summary,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		st.Stats = stats
	} else {
		d.logger.Warn("failed to collect store stats", logging.Error(err))
	}
	return st
}
