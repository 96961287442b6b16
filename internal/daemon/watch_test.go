package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/services"
	"storyreel/internal/workflow"
)

type stubIngestor struct {
	mu       sync.Mutex
	requests []AddProjectRequest
	err      error
}

func (s *stubIngestor) AddProject(_ context.Context, req AddProjectRequest) (*AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &AddResult{
		Project:  &project.Project{ID: "p-1", Title: "Stub"},
		Workflow: &workflow.Workflow{ID: "wf-1", ProjectID: "p-1"},
	}, nil
}

func (s *stubIngestor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// newTestWatcher builds a watcher whose poll cycles the test drives by hand.
func newTestWatcher(t *testing.T, ingestor *stubIngestor) *scriptWatcher {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(t.TempDir(), "drop")

	w := newScriptWatcher(&cfg, ingestor, logging.NewNop())
	if w == nil {
		t.Fatal("expected watcher to be created")
	}
	for _, dir := range []string{w.dir, filepath.Join(w.dir, importedDirName), filepath.Join(w.dir, rejectedDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	w.ctx = context.Background()
	return w
}

func writeWatchFile(t *testing.T, w *scriptWatcher, name, content string) string {
	t.Helper()
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestScriptWatcherImportsStableFile(t *testing.T) {
	ingestor := &stubIngestor{}
	w := newTestWatcher(t, ingestor)
	path := writeWatchFile(t, w, "pilot.txt", "A short film about tide pools.")

	w.poll()
	if got := ingestor.count(); got != 0 {
		t.Fatalf("first sighting should not import, got %d requests", got)
	}

	w.poll()
	if got := ingestor.count(); got != 1 {
		t.Fatalf("expected 1 import after stable size, got %d", got)
	}
	if ingestor.requests[0].ScriptPath != path {
		t.Fatalf("imported %q, want %q", ingestor.requests[0].ScriptPath, path)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected source file to be archived, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.dir, importedDirName, "pilot.txt")); err != nil {
		t.Fatalf("expected archived copy: %v", err)
	}
}

func TestScriptWatcherWaitsForGrowingFile(t *testing.T) {
	ingestor := &stubIngestor{}
	w := newTestWatcher(t, ingestor)
	path := writeWatchFile(t, w, "draft.md", "# Opening\n")

	w.poll()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("append open: %v", err)
	}
	if _, err := f.WriteString("The rest of the script arrives late.\n"); err != nil {
		t.Fatalf("append write: %v", err)
	}
	f.Close()

	w.poll()
	if got := ingestor.count(); got != 0 {
		t.Fatalf("growing file must not import, got %d requests", got)
	}

	w.poll()
	if got := ingestor.count(); got != 1 {
		t.Fatalf("expected import once size settled, got %d", got)
	}
}

func TestScriptWatcherArchivesRejectedScript(t *testing.T) {
	ingestor := &stubIngestor{err: services.Wrap(services.ErrValidation, "daemon", "add project", "script file is empty", nil)}
	w := newTestWatcher(t, ingestor)
	writeWatchFile(t, w, "blank.txt", "   ")

	w.poll()
	w.poll()

	if _, err := os.Stat(filepath.Join(w.dir, rejectedDirName, "blank.txt")); err != nil {
		t.Fatalf("expected rejected copy: %v", err)
	}
}

func TestScriptWatcherRetriesTransientFailure(t *testing.T) {
	ingestor := &stubIngestor{err: services.Wrap(services.ErrPersistence, "daemon", "add project", "db locked", nil)}
	w := newTestWatcher(t, ingestor)
	path := writeWatchFile(t, w, "retry.txt", "A script the store cannot take yet.")

	w.poll()
	w.poll()
	if got := ingestor.count(); got != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("transient failure must leave the file in place: %v", err)
	}

	ingestor.mu.Lock()
	ingestor.err = nil
	ingestor.mu.Unlock()

	w.poll()
	w.poll()
	if got := ingestor.count(); got != 2 {
		t.Fatalf("expected retry to import, got %d requests", got)
	}
	if _, err := os.Stat(filepath.Join(w.dir, importedDirName, "retry.txt")); err != nil {
		t.Fatalf("expected archived copy after retry: %v", err)
	}
}

func TestScriptWatcherIgnoresNonScripts(t *testing.T) {
	ingestor := &stubIngestor{}
	w := newTestWatcher(t, ingestor)
	writeWatchFile(t, w, "notes.pdf", "binary-ish")
	writeWatchFile(t, w, ".hidden.txt", "dotfile")

	w.poll()
	w.poll()
	if got := ingestor.count(); got != 0 {
		t.Fatalf("expected non-scripts to be skipped, got %d requests", got)
	}
}

func TestNewScriptWatcherDisabledWithoutDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WatchDir = ""
	if w := newScriptWatcher(&cfg, &stubIngestor{}, logging.NewNop()); w != nil {
		t.Fatal("expected nil watcher when watch_dir unset")
	}
}
