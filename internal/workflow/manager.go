package workflow

import (
	"context"
	"log/slog"
	"sync"

	"storyreel/internal/events"
	"storyreel/internal/logging"
	"storyreel/internal/project"
)

// Repository is the persistence surface the manager needs. *store.Store
// satisfies it.
type Repository interface {
	CreateWorkflow(ctx context.Context, wf *Workflow) error
	UpdateWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflowsByStatus(ctx context.Context, statuses ...Status) ([]*Workflow, error)
	SetProjectStatus(ctx context.Context, projectID string, status project.Status) error
}

// Manager owns workflow execution: it creates workflows, schedules their
// asynchronous execution, resumes interrupted ones at daemon start, and keeps
// an in-memory cache of the latest state for cheap reads.
type Manager struct {
	repo   Repository
	bus    events.Bus
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]StepHandler
	running  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight map[string]struct{}
	cache    map[string]*Workflow
	lastErr  error
}

// NewManager constructs a workflow manager. Step handlers are registered
// separately through ConfigureSteps.
func NewManager(repo Repository, bus events.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		repo:     repo,
		bus:      bus,
		logger:   logging.NewComponentLogger(logger, "workflow-manager"),
		handlers: make(map[string]StepHandler),
		inflight: make(map[string]struct{}),
		cache:    make(map[string]*Workflow),
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) cacheWorkflow(wf *Workflow) {
	m.mu.Lock()
	m.cache[wf.ID] = wf.Clone()
	m.mu.Unlock()
}

func (m *Manager) cachedWorkflow(id string) *Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if wf, ok := m.cache[id]; ok {
		return wf.Clone()
	}
	return nil
}

func (m *Manager) handlerFor(stepID string) (StepHandler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handler, ok := m.handlers[stepID]
	return handler, ok
}
