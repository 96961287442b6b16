package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/services"
)

// Start begins background execution and resumes every workflow the store
// reports as unfinished. Processing steps interrupted by a crash are rewound
// to pending before execution picks up at the cursor.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow manager already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	resumable, err := m.repo.ListWorkflowsByStatus(ctx, StatusPending, StatusProcessing)
	if err != nil {
		m.setLastError(err)
		return fmt.Errorf("list resumable workflows: %w", err)
	}
	for _, wf := range resumable {
		wf.NormalizeForResume()
		if err := m.persistWorkflow(ctx, wf); err != nil {
			m.logger.Error("failed to persist resume normalization",
				logging.Error(err),
				logging.String(logging.FieldWorkflowID, wf.ID),
			)
			continue
		}
		m.schedule(wf.ID)
	}
	if len(resumable) > 0 {
		m.logger.Info("resumed unfinished workflows",
			logging.Int("count", len(resumable)),
			logging.String(logging.FieldEventType, "workflow_resume"),
		)
	}
	return nil
}

// Stop cancels background execution and waits for in-flight workflows to
// observe the cancellation.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.runCtx = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// CreateWorkflow persists a new workflow for the project with the create
// step already completed, marks the project processing, and schedules
// asynchronous execution. If the manager has not been started the workflow
// stays pending and is picked up by the next Start.
func (m *Manager) CreateWorkflow(ctx context.Context, projectID string, projectType project.Type) (*Workflow, error) {
	steps, err := StepsFor(projectType)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "create", err.Error(), err)
	}
	wf := NewWorkflow(projectID, string(projectType), steps)

	if err := services.WithRetry(ctx, services.PersistencePolicy(), func(retryCtx context.Context) error {
		return m.repo.CreateWorkflow(retryCtx, wf)
	}); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "workflow", "create", "persist new workflow", err)
	}
	m.cacheWorkflow(wf)

	if err := m.repo.SetProjectStatus(ctx, projectID, project.StatusProcessing); err != nil {
		m.logger.Warn("failed to mark project processing",
			logging.Error(err),
			logging.String(logging.FieldProjectID, projectID),
		)
	}

	m.logger.Info("workflow created",
		logging.String(logging.FieldWorkflowID, wf.ID),
		logging.String(logging.FieldProjectID, projectID),
		logging.String("project_type", string(projectType)),
		logging.Int("steps", len(wf.Steps)),
		logging.String(logging.FieldEventType, "workflow_created"),
	)
	m.publishWorkflow(TypeForStatus(wf.Status), wf)
	m.schedule(wf.ID)
	return wf.Clone(), nil
}

// schedule launches Execute on the manager's run context unless the
// workflow is already being executed by this process.
func (m *Manager) schedule(workflowID string) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	if _, busy := m.inflight[workflowID]; busy {
		m.mu.Unlock()
		return
	}
	runCtx := m.runCtx
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		if err := m.Execute(runCtx, workflowID); err != nil && !errors.Is(err, context.Canceled) {
			m.setLastError(err)
		}
	}()
}

// Execute runs a workflow until it reaches a terminal state. It is
// idempotent: terminal workflows return immediately, a workflow already
// being executed by this process returns immediately, and execution always
// resumes from the first non-completed step.
func (m *Manager) Execute(ctx context.Context, workflowID string) error {
	m.mu.Lock()
	if _, busy := m.inflight[workflowID]; busy {
		m.mu.Unlock()
		return nil
	}
	m.inflight[workflowID] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.inflight, workflowID)
		m.mu.Unlock()
	}()

	wf, err := m.loadWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.Terminal() {
		return nil
	}
	return m.runWorkflow(ctx, wf)
}

func (m *Manager) loadWorkflow(ctx context.Context, workflowID string) (*Workflow, error) {
	if wf := m.cachedWorkflow(workflowID); wf != nil {
		return wf, nil
	}
	wf, err := m.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "load",
			fmt.Sprintf("workflow %s not found", workflowID), nil)
	}
	m.cacheWorkflow(wf)
	return wf.Clone(), nil
}

func (m *Manager) persistWorkflow(ctx context.Context, wf *Workflow) error {
	wf.UpdatedAt = time.Now().UTC()
	if err := services.WithRetry(ctx, services.PersistencePolicy(), func(retryCtx context.Context) error {
		return m.repo.UpdateWorkflow(retryCtx, wf)
	}); err != nil {
		return services.Wrap(services.ErrPersistence, "workflow", "persist", "persist workflow state", err)
	}
	m.cacheWorkflow(wf)
	return nil
}
