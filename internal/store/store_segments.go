package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrStageSuperseded reports that a newer run replaced the caller's process.
var ErrStageSuperseded = errors.New("stage run superseded")

// CompleteSplit swaps in a freshly computed segment list and finalizes the split
// stage in one transaction. It fails with ErrStageSuperseded when processID is no
// longer the project's active process.
func (s *Store) CompleteSplit(ctx context.Context, projectID, processID string, segments []Segment, patch ProjectPatch) error {
	sets, args, err := patch.assignments()
	if err != nil {
		return err
	}
	now := s.timestamp()
	sets = append(sets, "segment_count = ?", "updated_at = ?")
	args = append(args, len(segments), now, projectID, processID)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE projects SET "+strings.Join(sets, ", ")+" WHERE id = ? AND active_process_id = ?", args...)
		if err != nil {
			return fmt.Errorf("finalize split: %w", err)
		}
		if ok, err := affected(res); err != nil {
			return err
		} else if !ok {
			return ErrStageSuperseded
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("clear segments: %w", err)
		}
		for _, seg := range segments {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO segments (project_id, segment_id, filename, start_seconds, duration_seconds, status, progress, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
				projectID, seg.ID, seg.Filename, seg.Start, seg.Duration, SegmentPending, now,
			); err != nil {
				return fmt.Errorf("insert segment %d: %w", seg.ID, err)
			}
		}
		return nil
	})
}

// ListSegments returns the project's segments ordered by identifier.
func (s *Store) ListSegments(ctx context.Context, projectID string) ([]*Segment, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+segmentColumns+" FROM segments WHERE project_id = ? ORDER BY segment_id", projectID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// GetSegment fetches a single segment. It returns nil without error when absent.
func (s *Store) GetSegment(ctx context.Context, projectID string, segmentID int) (*Segment, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+segmentColumns+" FROM segments WHERE project_id = ? AND segment_id = ?", projectID, segmentID)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// BeginSegment marks a segment in-progress under processID, resetting progress
// and clearing the outcome of any earlier run.
func (s *Store) BeginSegment(ctx context.Context, projectID string, segmentID int, processID string) (bool, error) {
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`UPDATE segments SET status = ?, progress = 0, process_id = ?, error_message = NULL, output_file = NULL,
			subtitle_text = NULL, started_at = ?, completed_at = NULL, failed_at = NULL, updated_at = ?
		WHERE project_id = ? AND segment_id = ?`,
		SegmentInProgress, processID, now, now, projectID, segmentID,
	)
	if err != nil {
		return false, fmt.Errorf("begin segment: %w", err)
	}
	return affected(res)
}

// UpdateSegment writes patch to one segment row while processID is still the
// segment's active caption run. Other segments are never touched.
func (s *Store) UpdateSegment(ctx context.Context, projectID string, segmentID int, processID string, patch SegmentPatch) (bool, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Progress != nil {
		add("progress", clampPercent(*patch.Progress))
	}
	if patch.SubtitleText != nil {
		add("subtitle_text", nullableString(*patch.SubtitleText))
	}
	if patch.OutputFile != nil {
		add("output_file", nullableString(*patch.OutputFile))
	}
	if patch.ErrorMessage != nil {
		add("error_message", nullableString(*patch.ErrorMessage))
	}
	if patch.CompletedAt != nil {
		add("completed_at", formatTime(*patch.CompletedAt))
	}
	if patch.FailedAt != nil {
		add("failed_at", formatTime(*patch.FailedAt))
	}
	add("updated_at", s.timestamp())
	args = append(args, projectID, segmentID, processID)

	res, err := s.execWithRetry(ctx,
		"UPDATE segments SET "+strings.Join(sets, ", ")+" WHERE project_id = ? AND segment_id = ? AND process_id = ?",
		args...)
	if err != nil {
		return false, fmt.Errorf("update segment: %w", err)
	}
	return affected(res)
}

// CountSegmentsInProgress reports how many segments of a project are captioning.
func (s *Store) CountSegmentsInProgress(ctx context.Context, projectID string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM segments WHERE project_id = ? AND status = ?", projectID, SegmentInProgress,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return count, nil
}

// DeleteSegments removes every segment of a project and resets its segment count.
func (s *Store) DeleteSegments(ctx context.Context, projectID string) error {
	now := s.timestamp()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("delete segments: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE projects SET segment_count = 0, updated_at = ? WHERE id = ?", now, projectID,
		); err != nil {
			return fmt.Errorf("reset segment count: %w", err)
		}
		return nil
	})
}
