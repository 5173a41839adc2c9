package progress

import (
	"context"
	"log/slog"

	"reelcast/internal/logging"
)

// Sink persists a progress value. It reports false when the owning project no
// longer exists.
type Sink interface {
	SetProgress(ctx context.Context, projectID, processID string, percent int) (bool, error)
}

// Recorder writes progress to the durable store and, when configured, to a
// mirror. Failures are logged and never returned: a lost progress update must
// not fail the work that produced it.
type Recorder struct {
	sink   Sink
	mirror Mirror
	logger *slog.Logger
}

// NewRecorder builds a Recorder. mirror may be nil.
func NewRecorder(sink Sink, mirror Mirror, logger *slog.Logger) *Recorder {
	return &Recorder{
		sink:   sink,
		mirror: mirror,
		logger: logging.NewComponentLogger(logger, "progress"),
	}
}

// Set records percent under processID. It returns false when the store write
// did not land.
func (r *Recorder) Set(ctx context.Context, projectID, processID string, percent int) bool {
	if r == nil || r.sink == nil {
		return false
	}
	percent = min(max(percent, 0), 100)
	ok, err := r.sink.SetProgress(ctx, projectID, processID, percent)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "progress write failed", "progress_write_failed",
			logging.String(logging.FieldProcessID, processID),
			logging.Int("percent", percent),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database health"),
			logging.String(logging.FieldImpact, "displayed progress may lag until the next update"),
		)
		return false
	}
	if !ok {
		r.logger.Debug("progress dropped for missing project",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldProcessID, processID),
		)
		return false
	}
	if r.mirror != nil {
		if err := r.mirror.Record(ctx, projectID, processID, percent); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "progress mirror failed", "progress_mirror_failed",
				logging.String(logging.FieldProcessID, processID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check redis connectivity"),
				logging.String(logging.FieldImpact, "external dashboards show stale progress"),
			)
		}
	}
	return true
}

// Reporter returns a callback that records values mapped through phase under
// processID. A zero Phase records values unchanged.
func (r *Recorder) Reporter(ctx context.Context, projectID, processID string, phase Phase) func(int) {
	if phase == (Phase{}) {
		phase = Phase{Start: 0, End: 100}
	}
	return func(percent int) {
		r.Set(ctx, projectID, processID, phase.Map(float64(percent)))
	}
}

// Forget clears mirrored progress for a deleted project.
func (r *Recorder) Forget(ctx context.Context, projectID string) {
	if r == nil || r.mirror == nil {
		return
	}
	if err := r.mirror.Forget(ctx, projectID); err != nil {
		r.logger.Debug("progress mirror cleanup failed", logging.String(logging.FieldProjectID, projectID), logging.Error(err))
	}
}
