package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"reelcast/internal/fileutil"
	"reelcast/internal/logging"
	"reelcast/internal/store"
)

// writeSnapshot exports the project and segment records to JSON beside the
// project's artifacts. Failures are logged only.
func (c *Controller) writeSnapshot(ctx context.Context, logger *slog.Logger, projectID string) {
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil || project == nil {
		return
	}
	segments, err := c.store.ListSegments(ctx, projectID)
	if err != nil {
		c.snapshotFailed(logger, err)
		return
	}
	if segments == nil {
		segments = []*store.Segment{}
	}
	if err := writeJSON(c.layout.ProjectSnapshot(projectID), project); err != nil {
		c.snapshotFailed(logger, err)
		return
	}
	if err := writeJSON(c.layout.SegmentsSnapshot(projectID), segments); err != nil {
		c.snapshotFailed(logger, err)
	}
}

func (c *Controller) snapshotFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "project snapshot not written", "snapshot_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check free space and permissions under the root directory"),
		logging.String(logging.FieldImpact, "on-disk JSON view is stale; the database remains authoritative"),
	)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
