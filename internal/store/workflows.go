package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storyreel/internal/workflow"
)

const workflowColumns = "id, project_id, project_type, status, current_step_index, steps_json, last_error, created_at, updated_at, completed_at"

// CreateWorkflow inserts a new workflow row.
func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	stepsJSON, err := workflow.EncodeSteps(wf.Steps)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO workflows (
            id, project_id, project_type, status, current_step_index, steps_json,
            last_error, created_at, updated_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID,
		wf.ProjectID,
		wf.ProjectType,
		string(wf.Status),
		wf.CurrentStepIndex,
		stepsJSON,
		nullableString(wf.LastError),
		formatTime(wf.CreatedAt),
		formatTime(wf.UpdatedAt),
		nullableTime(wf.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// UpdateWorkflow rewrites a workflow's mutable columns, including the full
// step list document.
func (s *Store) UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	stepsJSON, err := workflow.EncodeSteps(wf.Steps)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE workflows SET
            status = ?, current_step_index = ?, steps_json = ?, last_error = ?,
            updated_at = ?, completed_at = ?
        WHERE id = ?`,
		string(wf.Status),
		wf.CurrentStepIndex,
		stepsJSON,
		nullableString(wf.LastError),
		formatTime(time.Now().UTC()),
		nullableTime(wf.CompletedAt),
		wf.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update workflow rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("workflow %s not found", wf.ID)
	}
	return nil
}

// GetWorkflow fetches a workflow by identifier. Missing workflows return
// (nil, nil).
func (s *Store) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflowsByStatus returns workflows in creation order, filtered to the
// given statuses. No statuses means every workflow.
func (s *Store) ListWorkflowsByStatus(ctx context.Context, statuses ...workflow.Status) ([]*workflow.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// ListWorkflowsByProject returns a project's workflows in creation order.
func (s *Store) ListWorkflowsByProject(ctx context.Context, projectID string) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func scanWorkflow(scanner interface{ Scan(dest ...any) error }) (*workflow.Workflow, error) {
	var (
		id           string
		projectID    string
		projectType  string
		statusStr    string
		currentIndex int
		stepsJSON    string
		lastError    sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&projectType,
		&statusStr,
		&currentIndex,
		&stepsJSON,
		&lastError,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	steps, err := workflow.DecodeSteps(stepsJSON)
	if err != nil {
		return nil, err
	}

	wf := &workflow.Workflow{
		ID:               id,
		ProjectID:        projectID,
		ProjectType:      projectType,
		Status:           workflow.Status(statusStr),
		CurrentStepIndex: currentIndex,
		Steps:            steps,
		LastError:        lastError.String,
		CompletedAt:      parseTimePtr(completedRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		wf.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		wf.UpdatedAt = updated
	}
	return wf, nil
}
