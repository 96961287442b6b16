package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/services"
)

const (
	importedDirName = "imported"
	rejectedDirName = "rejected"
)

type projectIngestor interface {
	AddProject(ctx context.Context, req AddProjectRequest) (*AddResult, error)
}

// scriptWatcher polls a drop directory for script files and imports them as
// projects. Files are only ingested once their size is stable across two
// polls, so partially copied scripts are left alone.
type scriptWatcher struct {
	dir          string
	logger       *slog.Logger
	ingestor     projectIngestor
	pollInterval time.Duration

	mu       sync.Mutex
	running  bool
	lastSize map[string]int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newScriptWatcher(cfg *config.Config, ingestor projectIngestor, logger *slog.Logger) *scriptWatcher {
	if cfg == nil || ingestor == nil {
		return nil
	}
	dir := strings.TrimSpace(cfg.Paths.WatchDir)
	if dir == "" {
		return nil
	}

	poll := time.Duration(cfg.Pipeline.WatchPollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}

	watcherLogger := logger
	if watcherLogger != nil {
		watcherLogger = logging.NewComponentLogger(watcherLogger, "script-watcher")
	}

	return &scriptWatcher{
		dir:          dir,
		logger:       watcherLogger,
		ingestor:     ingestor,
		pollInterval: poll,
		lastSize:     make(map[string]int64),
	}
}

func (w *scriptWatcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("script watcher unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("script watcher already running")
	}

	for _, dir := range []string{w.dir, filepath.Join(w.dir, importedDirName), filepath.Join(w.dir, rejectedDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.ctx = runCtx
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop()
	w.logger.Info("watching for scripts",
		logging.String("dir", w.dir),
		logging.Duration("poll_interval", w.pollInterval),
		logging.String(logging.FieldEventType, "watch_started"),
	)
	return nil
}

func (w *scriptWatcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *scriptWatcher) loop() {
	defer w.wg.Done()

	w.poll()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *scriptWatcher) poll() {
	ctx := w.ctx
	if ctx == nil {
		return
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("watch directory scan failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "watch_scan_failed"),
			logging.String(logging.FieldErrorHint, "check paths.watch_dir permissions"),
		)
		return
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := scriptFileExtensions[ext]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		seen[path] = struct{}{}

		w.mu.Lock()
		previous, tracked := w.lastSize[path]
		w.lastSize[path] = info.Size()
		w.mu.Unlock()

		// A file still growing between polls is a copy in progress.
		if !tracked || previous != info.Size() {
			continue
		}
		w.ingest(ctx, path)
		w.mu.Lock()
		delete(w.lastSize, path)
		w.mu.Unlock()
	}

	// Forget files that disappeared before they stabilized.
	w.mu.Lock()
	for path := range w.lastSize {
		if _, ok := seen[path]; !ok {
			delete(w.lastSize, path)
		}
	}
	w.mu.Unlock()
}

func (w *scriptWatcher) ingest(ctx context.Context, path string) {
	logger := w.logger.With(logging.String("script", path))

	result, err := w.ingestor.AddProject(ctx, AddProjectRequest{ScriptPath: path})
	if err != nil {
		if !errors.Is(err, services.ErrValidation) {
			// Transient failures stay in place for the next poll.
			logger.Warn("script import failed; will retry",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_import_failed"),
			)
			return
		}
		logger.Warn("script rejected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "watch_script_rejected"),
		)
		w.archive(path, rejectedDirName, logger)
		return
	}

	if result.Reused {
		logger.Info("script already imported; archiving",
			logging.String(logging.FieldProjectID, result.Project.ID),
			logging.String(logging.FieldEventType, "watch_script_duplicate"),
		)
	} else {
		logger.Info("script imported",
			logging.String(logging.FieldProjectID, result.Project.ID),
			logging.String(logging.FieldWorkflowID, result.Workflow.ID),
			logging.String("title", result.Project.Title),
			logging.String(logging.FieldEventType, "watch_script_imported"),
		)
	}
	w.archive(path, importedDirName, logger)
}

// archive moves a handled script out of the scan set so it is not imported
// again. Name collisions get a timestamp suffix.
func (w *scriptWatcher) archive(path, subdir string, logger *slog.Logger) {
	base := filepath.Base(path)
	dest := filepath.Join(w.dir, subdir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		dest = filepath.Join(w.dir, subdir, stem+"-"+time.Now().UTC().Format("20060102T150405")+ext)
	}
	if err := os.Rename(path, dest); err != nil {
		logger.Warn("failed to archive script",
			logging.Error(err),
			logging.String("dest", dest),
			logging.String(logging.FieldEventType, "watch_archive_failed"),
			logging.String(logging.FieldErrorHint, "remove or move the file manually to stop re-imports"),
		)
	}
}
