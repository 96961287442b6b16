package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/project"
)

const sceneColumns = "id, project_id, number, text, word_count, start_seconds, end_seconds, image_url, image_checksum, video_url, video_checksum, video_prompt, created_at, updated_at"

// ReplaceProjectScenes swaps a project's scene rows for the given set in one
// transaction. The scene breakdown step rebuilds scenes wholesale, so there
// is no per-row merge.
func (s *Store) ReplaceProjectScenes(ctx context.Context, projectID string, scenes []project.Scene) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := formatTime(now)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin scenes tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE project_id = ?`, projectID); err != nil {
			return fmt.Errorf("clear project scenes: %w", err)
		}
		for i := range scenes {
			scene := &scenes[i]
			if scene.ID == "" {
				scene.ID = uuid.NewString()
			}
			scene.ProjectID = projectID
			scene.CreatedAt = now
			scene.UpdatedAt = now
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO scenes (
                    id, project_id, number, text, word_count, start_seconds, end_seconds,
                    image_url, image_checksum, video_url, video_checksum, video_prompt,
                    created_at, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				scene.ID,
				projectID,
				scene.Number,
				scene.Text,
				scene.WordCount,
				scene.StartSeconds,
				scene.EndSeconds,
				nullableString(scene.ImageURL),
				nullableString(scene.ImageChecksum),
				nullableString(scene.VideoURL),
				nullableString(scene.VideoChecksum),
				nullableString(scene.VideoPrompt),
				timestamp,
				timestamp,
			); err != nil {
				return fmt.Errorf("insert scene %d: %w", scene.Number, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit scenes: %w", err)
		}
		return nil
	})
}

// ListProjectScenes returns a project's scenes in scene-number order.
func (s *Store) ListProjectScenes(ctx context.Context, projectID string) ([]project.Scene, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE project_id = ? ORDER BY number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project scenes: %w", err)
	}
	defer rows.Close()

	var scenes []project.Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, *scene)
	}
	return scenes, rows.Err()
}

// GetScene fetches a scene by identifier. Missing scenes return (nil, nil).
func (s *Store) GetScene(ctx context.Context, id string) (*project.Scene, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE id = ?`, id)
	scene, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return scene, nil
}

// SetSceneImage records a generated image on a scene.
func (s *Store) SetSceneImage(ctx context.Context, sceneID, url, checksum string) error {
	return s.setSceneColumns(ctx, sceneID, "image_url = ?, image_checksum = ?", url, checksum)
}

// SetSceneVideo records a generated video on a scene.
func (s *Store) SetSceneVideo(ctx context.Context, sceneID, url, checksum string) error {
	return s.setSceneColumns(ctx, sceneID, "video_url = ?, video_checksum = ?", url, checksum)
}

// SetSceneVideoPrompt records a composed video prompt on a scene.
func (s *Store) SetSceneVideoPrompt(ctx context.Context, sceneID, prompt string) error {
	return s.setSceneColumns(ctx, sceneID, "video_prompt = ?", prompt)
}

func (s *Store) setSceneColumns(ctx context.Context, sceneID, assignments string, args ...any) error {
	args = append(args, formatTime(time.Now().UTC()), sceneID)
	res, err := s.execWithRetry(ctx,
		`UPDATE scenes SET `+assignments+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update scene: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scene rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("scene %s not found", sceneID)
	}
	return nil
}

func scanScene(scanner interface{ Scan(dest ...any) error }) (*project.Scene, error) {
	var (
		id            string
		projectID     string
		number        int
		text          string
		wordCount     int
		startSeconds  float64
		endSeconds    float64
		imageURL      sql.NullString
		imageChecksum sql.NullString
		videoURL      sql.NullString
		videoChecksum sql.NullString
		videoPrompt   sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&number,
		&text,
		&wordCount,
		&startSeconds,
		&endSeconds,
		&imageURL,
		&imageChecksum,
		&videoURL,
		&videoChecksum,
		&videoPrompt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	scene := &project.Scene{
		ID:            id,
		ProjectID:     projectID,
		Number:        number,
		Text:          text,
		WordCount:     wordCount,
		StartSeconds:  startSeconds,
		EndSeconds:    endSeconds,
		ImageURL:      imageURL.String,
		ImageChecksum: imageChecksum.String,
		VideoURL:      videoURL.String,
		VideoChecksum: videoChecksum.String,
		VideoPrompt:   videoPrompt.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		scene.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		scene.UpdatedAt = updated
	}
	return scene, nil
}
