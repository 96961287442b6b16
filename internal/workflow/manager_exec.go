package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storyreel/internal/events"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/services"
)

func (m *Manager) runWorkflow(ctx context.Context, wf *Workflow) error {
	logger := m.logger.With(
		logging.String(logging.FieldWorkflowID, wf.ID),
		logging.String(logging.FieldProjectID, wf.ProjectID),
	)

	for !wf.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := wf.CurrentStep()
		if step == nil {
			return m.completeWorkflow(ctx, wf, logger)
		}
		if step.Status == StepCompleted {
			if wf.CurrentStepIndex+1 >= len(wf.Steps) {
				return m.completeWorkflow(ctx, wf, logger)
			}
			wf.CurrentStepIndex++
			if err := m.persistWorkflow(ctx, wf); err != nil {
				m.setLastError(err)
				return err
			}
			continue
		}
		if err := m.executeStep(ctx, wf, logger); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) executeStep(ctx context.Context, wf *Workflow, logger *slog.Logger) error {
	step := wf.CurrentStep()
	stepCtx := services.WithStep(services.WithWorkflowID(services.WithProjectID(ctx, wf.ProjectID), wf.ID), step.ID)
	stepLogger := logger.With(logging.String(logging.FieldStep, step.ID))

	wf.Status = StatusProcessing
	step.Status = StepProcessing
	step.Progress = 0
	step.Error = ""
	if err := m.persistWorkflow(stepCtx, wf); err != nil {
		m.setLastError(err)
		return err
	}
	m.publishWorkflow(events.TypeWorkflowUpdated, wf)

	stepStart := time.Now()
	stepLogger.Info("step started",
		logging.String(logging.FieldEventType, "step_start"),
		logging.String("step_name", step.DisplayName),
	)

	var execErr error
	handler, resolveErr := m.resolveHandler(step.ID)
	if resolveErr != nil {
		execErr = resolveErr
	} else {
		execErr = handler.Execute(stepCtx, m.newRun(wf, step, stepLogger))
	}

	if execErr != nil {
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			stepLogger.Debug("step interrupted by shutdown")
			return execErr
		}
		if IsSoft(step.ID) && !errors.Is(execErr, services.ErrIntegrity) {
			m.degradeStep(stepCtx, wf, step, execErr, stepLogger)
			return nil
		}
		m.failWorkflow(stepCtx, wf, step, execErr, stepLogger)
		return execErr
	}

	step.Status = StepCompleted
	step.Progress = 100
	step.Error = ""
	if err := m.persistWorkflow(stepCtx, wf); err != nil {
		m.setLastError(err)
		return err
	}
	m.publishWorkflow(events.TypeWorkflowUpdated, wf)
	stepLogger.Info("step completed",
		logging.String(logging.FieldEventType, "step_complete"),
		logging.Duration("step_duration", time.Since(stepStart)),
	)
	return nil
}

func (m *Manager) newRun(wf *Workflow, step *Step, stepLogger *slog.Logger) *Run {
	sampler := logging.NewProgressSampler(10)
	return &Run{
		Workflow: wf,
		Step:     step,
		save: func(saveCtx context.Context) error {
			return m.persistWorkflow(saveCtx, wf)
		},
		progress: func(progCtx context.Context, percent int) {
			if err := m.persistWorkflow(progCtx, wf); err != nil {
				stepLogger.Warn("failed to persist step progress", logging.Error(err))
				return
			}
			m.publishWorkflow(events.TypeWorkflowUpdated, wf)
			if sampler.ShouldLog(float64(percent), step.ID) {
				stepLogger.Info("step progress",
					logging.Int("percent", percent),
					logging.String(logging.FieldEventType, "step_progress"),
				)
			}
		},
	}
}

func (m *Manager) resolveHandler(stepID string) (StepHandler, error) {
	switch stepID {
	case StepCreate:
		return noopHandler{name: StepCreate}, nil
	case StepComplete:
		return completionHandler{repo: m.repo}, nil
	}
	if handler, ok := m.handlerFor(stepID); ok {
		return handler, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "workflow", stepID,
		fmt.Sprintf("no handler registered for step %s", stepID), nil)
}

// degradeStep converts a soft-step failure into a skipped-but-successful
// result so the workflow keeps moving.
func (m *Manager) degradeStep(ctx context.Context, wf *Workflow, step *Step, cause error, stepLogger *slog.Logger) {
	reason := failureMessage(step.ID, cause)
	step.Status = StepCompleted
	step.Progress = 100
	step.Error = ""
	if err := step.SetResult(map[string]any{"skipped": true, "reason": reason}); err != nil {
		stepLogger.Warn("failed to encode skip result", logging.Error(err))
	}
	if err := m.persistWorkflow(ctx, wf); err != nil {
		m.setLastError(err)
	}
	m.publishWorkflow(events.TypeWorkflowUpdated, wf)
	stepLogger.Warn("step skipped after failure",
		logging.Error(cause),
		logging.String(logging.FieldEventType, "step_skipped"),
		logging.String("reason", reason),
	)
}

// failWorkflow halts the workflow at the failing step. The cursor is left in
// place so a later retry resumes exactly here.
func (m *Manager) failWorkflow(ctx context.Context, wf *Workflow, step *Step, cause error, stepLogger *slog.Logger) {
	details := services.Details(cause)
	message := failureMessage(step.ID, cause)

	step.Status = StepFailed
	step.Error = message
	wf.Status = StatusFailed
	wf.LastError = fmt.Sprintf("%s: %s", step.ID, message)
	if err := m.persistWorkflow(ctx, wf); err != nil {
		stepLogger.Error("failed to persist workflow failure", logging.Error(err))
	}
	if err := m.repo.SetProjectStatus(ctx, wf.ProjectID, project.StatusFailed); err != nil {
		stepLogger.Warn("failed to mark project failed", logging.Error(err))
	}
	m.publishWorkflow(events.TypeWorkflowFailed, wf)
	stepLogger.Error("step failed",
		logging.Error(cause),
		logging.String(logging.FieldEventType, "step_failure"),
		logging.String("error_kind", details.Kind),
		logging.String("error_message", message),
		logging.Alert("workflow_failure"),
	)
	m.setLastError(cause)
}

func (m *Manager) completeWorkflow(ctx context.Context, wf *Workflow, logger *slog.Logger) error {
	wf.Status = StatusCompleted
	now := time.Now().UTC()
	wf.CompletedAt = &now
	wf.LastError = ""
	if err := m.persistWorkflow(ctx, wf); err != nil {
		m.setLastError(err)
		return err
	}
	m.publishWorkflow(events.TypeWorkflowCompleted, wf)
	logger.Info("workflow completed",
		logging.String(logging.FieldEventType, "workflow_complete"),
		logging.Duration("workflow_duration", time.Since(wf.CreatedAt)),
	)
	return nil
}

func failureMessage(stepID string, cause error) string {
	if cause == nil {
		return fmt.Sprintf("%s failed without error detail", stepID)
	}
	details := services.Details(cause)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(cause.Error())
	}
	if message == "" {
		message = fmt.Sprintf("%s failed", stepID)
	}
	return message
}

type noopHandler struct{ name string }

func (h noopHandler) Execute(context.Context, *Run) error { return nil }

func (h noopHandler) HealthCheck(context.Context) Health { return Healthy(h.name) }

type completionHandler struct{ repo Repository }

func (h completionHandler) Execute(ctx context.Context, run *Run) error {
	if err := h.repo.SetProjectStatus(ctx, run.Workflow.ProjectID, project.StatusCompleted); err != nil {
		return services.Wrap(services.ErrPersistence, "workflow", StepComplete, "mark project completed", err)
	}
	return run.Step.SetResult(map[string]any{"project_status": string(project.StatusCompleted)})
}

func (h completionHandler) HealthCheck(context.Context) Health { return Healthy(StepComplete) }
