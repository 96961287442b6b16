package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storyreel/internal/jobs"
)

const jobColumns = "id, project_id, kind, status, payload_json, items_json, progress_completed, progress_total, error_message, created_at, updated_at, started_at, completed_at"

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job *jobs.Job) error {
	payloadJSON, err := jobs.EncodePayload(job.Payload)
	if err != nil {
		return err
	}
	itemsJSON, err := jobs.EncodeItems(job.Items)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, project_id, kind, status, payload_json, items_json,
            progress_completed, progress_total, error_message,
            created_at, updated_at, started_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.ProjectID,
		string(job.Kind),
		string(job.Status),
		nullableString(payloadJSON),
		itemsJSON,
		job.Progress.Completed,
		job.Progress.Total,
		nullableString(job.Error),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob rewrites a job's mutable columns, including the item outcome
// document.
func (s *Store) UpdateJob(ctx context.Context, job *jobs.Job) error {
	itemsJSON, err := jobs.EncodeItems(job.Items)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            status = ?, items_json = ?, progress_completed = ?, progress_total = ?,
            error_message = ?, updated_at = ?, started_at = ?, completed_at = ?
        WHERE id = ?`,
		string(job.Status),
		itemsJSON,
		job.Progress.Completed,
		job.Progress.Total,
		nullableString(job.Error),
		formatTime(time.Now().UTC()),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s not found", job.ID)
	}
	return nil
}

// GetJob fetches a job by identifier. Missing jobs return (nil, nil).
func (s *Store) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobsByStatus returns jobs in creation order, filtered to the given
// statuses. No statuses means every job.
func (s *Store) ListJobsByStatus(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
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
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListJobsByProject returns a project's jobs in creation order.
func (s *Store) ListJobsByProject(ctx context.Context, projectID string) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ResetStaleProcessingJobs rewinds jobs stuck in processing back to pending.
// Called once at scheduler start so jobs orphaned by a crash are claimed
// again; their finished items carry outcomes and are skipped on the rerun.
func (s *Store) ResetStaleProcessingJobs(ctx context.Context) (int, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?`,
		string(jobs.StatusPending),
		formatTime(time.Now().UTC()),
		string(jobs.StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale processing jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale rows affected: %w", err)
	}
	return int(affected), nil
}

// DeleteTerminalJobsBefore removes jobs with the given terminal status whose
// completion timestamp is older than the cutoff, returning how many rows
// were deleted.
func (s *Store) DeleteTerminalJobsBefore(ctx context.Context, status jobs.Status, cutoff time.Time) (int, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE status = ? AND completed_at IS NOT NULL AND datetime(completed_at) < datetime(?)`,
		string(status),
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("delete terminal jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete terminal rows affected: %w", err)
	}
	return int(affected), nil
}

func collectJobs(rows *sql.Rows) ([]*jobs.Job, error) {
	var result []*jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*jobs.Job, error) {
	var (
		id           string
		projectID    string
		kindStr      string
		statusStr    string
		payloadJSON  sql.NullString
		itemsJSON    string
		completed    int
		total        int
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&kindStr,
		&statusStr,
		&payloadJSON,
		&itemsJSON,
		&completed,
		&total,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	kind, err := jobs.ParseKind(kindStr)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	payload, err := jobs.DecodePayload(kind, payloadJSON.String)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	items, err := jobs.DecodeItems(itemsJSON)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}

	job := &jobs.Job{
		ID:          id,
		ProjectID:   projectID,
		Kind:        kind,
		Payload:     payload,
		Items:       items,
		Status:      jobs.Status(statusStr),
		Progress:    jobs.Progress{Completed: completed, Total: total},
		Error:       errorMessage.String,
		StartedAt:   parseTimePtr(startedRaw),
		CompletedAt: parseTimePtr(completedRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
