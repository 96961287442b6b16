package workflow

import (
	"context"
	"time"

	"storyreel/internal/events"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	LastError  string
	StepHealth map[string]Health
}

// Status returns the latest workflow information including per-handler
// health probes.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	handlers := make(map[string]StepHandler, len(m.handlers))
	for id, handler := range m.handlers {
		handlers[id] = handler
	}
	m.mu.RUnlock()

	health := make(map[string]Health, len(handlers))
	for id, handler := range handlers {
		health[id] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, StepHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}

// GetWorkflow returns the freshest known state of a workflow, preferring the
// in-memory cache over a store read.
func (m *Manager) GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error) {
	return m.loadWorkflow(ctx, workflowID)
}

// ListWorkflows reads workflows straight from the store, optionally filtered
// by status.
func (m *Manager) ListWorkflows(ctx context.Context, statuses ...Status) ([]*Workflow, error) {
	return m.repo.ListWorkflowsByStatus(ctx, statuses...)
}

// TypeForStatus maps a workflow status onto the event type announcing it.
func TypeForStatus(s Status) events.Type {
	switch s {
	case StatusCompleted:
		return events.TypeWorkflowCompleted
	case StatusFailed:
		return events.TypeWorkflowFailed
	default:
		return events.TypeWorkflowUpdated
	}
}

func (m *Manager) publishWorkflow(t events.Type, wf *Workflow) {
	if m.bus == nil {
		return
	}
	evt := events.WorkflowEvent{
		WorkflowID: wf.ID,
		ProjectID:  wf.ProjectID,
		Status:     string(wf.Status),
		Error:      wf.LastError,
	}
	if step := wf.CurrentStep(); step != nil {
		evt.StepID = step.ID
		evt.Progress = step.Progress
	}
	m.bus.Publish(events.Event{Type: t, Time: time.Now().UTC(), Data: evt})
}
