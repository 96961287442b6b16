package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/project"
)

const projectColumns = "id, title, type, status, script, script_fingerprint, voice_id, style_id, audio_url, audio_duration_seconds, audio_byte_size, audio_checksum, thumbnail_url, characters_json, created_at, updated_at"

// CreateProject inserts a new project. A missing ID is assigned here so
// callers can preassign one when they need it before the insert.
func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = project.StatusDraft
	}

	charactersJSON, err := encodeCharacters(p.Characters)
	if err != nil {
		return err
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO projects (
            id, title, type, status, script, script_fingerprint, voice_id, style_id,
            audio_url, audio_duration_seconds, audio_byte_size, audio_checksum,
            thumbnail_url, characters_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Title,
		string(p.Type),
		string(p.Status),
		p.Script,
		nullableString(p.ScriptFingerprint),
		nullableString(p.VoiceID),
		nullableString(p.StyleID),
		nullableString(p.AudioURL),
		p.AudioDurationSeconds,
		p.AudioByteSize,
		nullableString(p.AudioChecksum),
		nullableString(p.ThumbnailURL),
		nullableString(charactersJSON),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject fetches a project by identifier. Missing projects return
// (nil, nil).
func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// FindProjectByFingerprint returns the earliest project whose script
// fingerprint matches, or (nil, nil) when none does. Used to catch duplicate
// submissions of the same script.
func (s *Store) FindProjectByFingerprint(ctx context.Context, fingerprint string) (*project.Project, error) {
	if fingerprint == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE script_fingerprint = ? ORDER BY created_at LIMIT 1`,
		fingerprint,
	)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find project by fingerprint: %w", err)
	}
	return p, nil
}

// ListProjects returns every project, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]*project.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject rewrites every mutable project column.
func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	p.UpdatedAt = time.Now().UTC()
	charactersJSON, err := encodeCharacters(p.Characters)
	if err != nil {
		return err
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET
            title = ?, type = ?, status = ?, script = ?, script_fingerprint = ?,
            voice_id = ?, style_id = ?, audio_url = ?, audio_duration_seconds = ?,
            audio_byte_size = ?, audio_checksum = ?, thumbnail_url = ?,
            characters_json = ?, updated_at = ?
        WHERE id = ?`,
		p.Title,
		string(p.Type),
		string(p.Status),
		p.Script,
		nullableString(p.ScriptFingerprint),
		nullableString(p.VoiceID),
		nullableString(p.StyleID),
		nullableString(p.AudioURL),
		p.AudioDurationSeconds,
		p.AudioByteSize,
		nullableString(p.AudioChecksum),
		nullableString(p.ThumbnailURL),
		nullableString(charactersJSON),
		formatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project %s not found", p.ID)
	}
	return nil
}

// SetProjectStatus updates only the project status column.
func (s *Store) SetProjectStatus(ctx context.Context, id string, status project.Status) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	return nil
}

func scanProject(scanner interface{ Scan(dest ...any) error }) (*project.Project, error) {
	var (
		id             string
		title          string
		typeStr        string
		statusStr      string
		script         string
		fingerprint    sql.NullString
		voiceID        sql.NullString
		styleID        sql.NullString
		audioURL       sql.NullString
		audioDuration  sql.NullFloat64
		audioByteSize  sql.NullInt64
		audioChecksum  sql.NullString
		thumbnailURL   sql.NullString
		charactersJSON sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&typeStr,
		&statusStr,
		&script,
		&fingerprint,
		&voiceID,
		&styleID,
		&audioURL,
		&audioDuration,
		&audioByteSize,
		&audioChecksum,
		&thumbnailURL,
		&charactersJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	p := &project.Project{
		ID:                   id,
		Title:                title,
		Type:                 project.Type(typeStr),
		Status:               project.Status(statusStr),
		Script:               script,
		ScriptFingerprint:    fingerprint.String,
		VoiceID:              voiceID.String,
		StyleID:              styleID.String,
		AudioURL:             audioURL.String,
		AudioDurationSeconds: audioDuration.Float64,
		AudioByteSize:        audioByteSize.Int64,
		AudioChecksum:        audioChecksum.String,
		ThumbnailURL:         thumbnailURL.String,
	}
	if charactersJSON.Valid && charactersJSON.String != "" {
		if err := json.Unmarshal([]byte(charactersJSON.String), &p.Characters); err != nil {
			return nil, fmt.Errorf("decode project characters: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		p.UpdatedAt = updated
	}
	return p, nil
}

func encodeCharacters(characters []project.Character) (string, error) {
	if len(characters) == 0 {
		return "", nil
	}
	data, err := json.Marshal(characters)
	if err != nil {
		return "", fmt.Errorf("encode project characters: %w", err)
	}
	return string(data), nil
}
