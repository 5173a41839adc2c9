package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetProgress records percent for one process key of a project. Only the
// (project, process) row is written; no other project field is touched. When the
// project does not exist nothing is written and false is returned, which stage
// code must tolerate during teardown races.
func (s *Store) SetProgress(ctx context.Context, projectID, processID string, percent int) (bool, error) {
	if processID == "" {
		return false, errors.New("set progress: process id required")
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO progress (project_id, process_id, percent, updated_at)
		SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM projects WHERE id = ?)
		ON CONFLICT (project_id, process_id) DO UPDATE SET percent = excluded.percent, updated_at = excluded.updated_at`,
		projectID, processID, clampPercent(percent), s.timestamp(), projectID,
	)
	if err != nil {
		return false, fmt.Errorf("set progress: %w", err)
	}
	return affected(res)
}

// GetProgress returns the percent recorded for a process key, if any.
func (s *Store) GetProgress(ctx context.Context, projectID, processID string) (int, bool, error) {
	ctx = ensureContext(ctx)
	var percent int
	err := s.db.QueryRowContext(ctx,
		"SELECT percent FROM progress WHERE project_id = ? AND process_id = ?", projectID, processID,
	).Scan(&percent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get progress: %w", err)
	}
	return percent, true, nil
}

// ProgressMap returns every recorded process key for a project.
func (s *Store) ProgressMap(ctx context.Context, projectID string) (map[string]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT process_id, percent FROM progress WHERE project_id = ?", projectID)
	if err != nil {
		return nil, fmt.Errorf("progress map: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			key     string
			percent int
		)
		if err := rows.Scan(&key, &percent); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out[key] = percent
	}
	return out, rows.Err()
}

// DeleteProgress drops the listed process keys of a project.
func (s *Store) DeleteProgress(ctx context.Context, projectID string, processIDs ...string) error {
	for _, key := range processIDs {
		if _, err := s.execWithRetry(ctx,
			"DELETE FROM progress WHERE project_id = ? AND process_id = ?", projectID, key,
		); err != nil {
			return fmt.Errorf("delete progress: %w", err)
		}
	}
	return nil
}
