package store

import (
	"context"
	"fmt"
)

// ReconcileInterrupted moves every project left in an in-progress status, and
// every segment left in-progress, into its error state. It is meant for daemon
// startup, when no worker from a previous process can still be alive.
func (s *Store) ReconcileInterrupted(ctx context.Context) (projects int, segments int, err error) {
	now := s.timestamp()
	for _, stage := range Stages {
		res, execErr := s.execWithRetry(ctx,
			"UPDATE projects SET status = ?, error_message = ?, updated_at = ? WHERE status = ?",
			stage.Failed(), InterruptedReason, now, stage.Running(),
		)
		if execErr != nil {
			return projects, segments, fmt.Errorf("reconcile %s: %w", stage, execErr)
		}
		n, _ := res.RowsAffected()
		projects += int(n)
	}
	res, execErr := s.execWithRetry(ctx,
		"UPDATE segments SET status = ?, error_message = ?, failed_at = ?, updated_at = ? WHERE status = ?",
		SegmentFailed, InterruptedReason, now, now, SegmentInProgress,
	)
	if execErr != nil {
		return projects, segments, fmt.Errorf("reconcile segments: %w", execErr)
	}
	n, _ := res.RowsAffected()
	segments = int(n)
	return projects, segments, nil
}
