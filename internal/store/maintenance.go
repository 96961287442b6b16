package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"storyreel/internal/jobs"
	"storyreel/internal/workflow"
)

// Stats aggregates row counts for diagnostic output.
type Stats struct {
	Projects  int
	Workflows map[workflow.Status]int
	Jobs      map[jobs.Status]int
}

// Stats returns per-status counts across the pipeline tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Workflows: make(map[workflow.Status]int),
		Jobs:      make(map[jobs.Status]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects`).Scan(&stats.Projects); err != nil {
		return stats, fmt.Errorf("project stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM workflows GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("workflow stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Workflows[workflow.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	jobRows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("job stats: %w", err)
	}
	defer jobRows.Close()
	for jobRows.Next() {
		var status string
		var count int
		if err := jobRows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Jobs[jobs.Status(status)] = count
	}
	return stats, jobRows.Err()
}

// DatabaseHealth reports diagnostic information about the database file and
// its schema.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesPresent    []string
	TablesMissing    []string
	Error            string
}

var expectedTables = []string{"projects", "scenes", "workflows", "jobs"}

// CheckHealth returns diagnostic information about the pipeline database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	for _, table := range expectedTables {
		var name string
		row := s.db.QueryRowContext(connCtx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err := row.Scan(&name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				health.TablesMissing = append(health.TablesMissing, table)
				continue
			}
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
		health.TablesPresent = append(health.TablesPresent, name)
	}
	return health, nil
}
