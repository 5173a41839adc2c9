package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewProject carries the caller-supplied fields of a project.
type NewProject struct {
	Name    string
	Sources Sources
	Color   string
}

// CreateProject inserts a project in the initializing state.
func (s *Store) CreateProject(ctx context.Context, in NewProject) (*Project, error) {
	if strings.TrimSpace(in.Sources.VideoURL) == "" || strings.TrimSpace(in.Sources.AudioURL) == "" {
		return nil, errors.New("create project: video and audio sources are required")
	}
	now := s.timestamp()
	id := uuid.NewString()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO projects (id, name, status, current_stage, video_url, audio_url, video_start, video_end,
			audio_start, audio_end, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, strings.TrimSpace(in.Name), StatusInitializing, StageInitialize,
		strings.TrimSpace(in.Sources.VideoURL), strings.TrimSpace(in.Sources.AudioURL),
		nullableFloat(in.Sources.VideoStart), nullableFloat(in.Sources.VideoEnd),
		nullableFloat(in.Sources.AudioStart), nullableFloat(in.Sources.AudioEnd),
		in.Color, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a project by identifier, including its progress map.
// It returns nil without error when the project does not exist.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project.Progress, err = s.ProgressMap(ctx, id); err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns every project, newest first. Progress maps are not loaded.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// DeleteProject removes the project along with its progress entries and segments.
func (s *Store) DeleteProject(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	return affected(res)
}

// BeginStage moves the project into the stage's in-progress status and records
// processID as both the stage's process and the project's active process.
func (s *Store) BeginStage(ctx context.Context, id string, stage Stage, processID string) (bool, error) {
	if !stage.Valid() {
		return false, fmt.Errorf("begin stage: unknown stage %q", stage)
	}
	res, err := s.execWithRetry(ctx,
		fmt.Sprintf(`UPDATE projects SET status = ?, current_stage = ?, active_process_id = ?, %s = ?,
			error_message = NULL, updated_at = ? WHERE id = ?`, stageProcessColumn(stage)),
		stage.Running(), stage, processID, processID, s.timestamp(), id,
	)
	if err != nil {
		return false, fmt.Errorf("begin stage %s: %w", stage, err)
	}
	return affected(res)
}

// UpdateProject applies patch unconditionally.
func (s *Store) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (bool, error) {
	return s.updateProject(ctx, id, "", patch)
}

// FinishStage applies patch only while processID is still the project's active
// process, so a superseded run cannot overwrite the state of its replacement.
func (s *Store) FinishStage(ctx context.Context, id, processID string, patch ProjectPatch) (bool, error) {
	if processID == "" {
		return false, errors.New("finish stage: process id required")
	}
	return s.updateProject(ctx, id, processID, patch)
}

func (s *Store) updateProject(ctx context.Context, id, guardProcessID string, patch ProjectPatch) (bool, error) {
	sets, args, err := patch.assignments()
	if err != nil {
		return false, err
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.timestamp())

	query := "UPDATE projects SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if guardProcessID != "" {
		query += " AND active_process_id = ?"
		args = append(args, guardProcessID)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update project: %w", err)
	}
	return affected(res)
}

func (p ProjectPatch) assignments() ([]string, []any, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.ErrorMessage != nil {
		add("error_message", nullableString(*p.ErrorMessage))
	}
	if p.VideoDuration != nil {
		add("video_duration", *p.VideoDuration)
	}
	if p.AudioDuration != nil {
		add("audio_duration", *p.AudioDuration)
	}
	if p.MergedDuration != nil {
		add("merged_duration", *p.MergedDuration)
	}
	if p.SegmentCount != nil {
		add("segment_count", *p.SegmentCount)
	}
	if p.CompletedStage != "" {
		if !p.CompletedStage.Valid() {
			return nil, nil, fmt.Errorf("update project: unknown stage %q", p.CompletedStage)
		}
		add(stageCompletedColumn(p.CompletedStage), formatTime(p.CompletedAt))
	}
	return sets, args, nil
}

// stageProcessColumn and stageCompletedColumn only ever see validated stage
// names, which keeps the interpolated column names closed.
func stageProcessColumn(stage Stage) string {
	return string(stage) + "_process_id"
}

func stageCompletedColumn(stage Stage) string {
	return string(stage) + "_at"
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
