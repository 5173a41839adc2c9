package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strings"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// teardownWait bounds how long delete operations wait for canceled work.
const teardownWait = 30 * time.Second

// CreateRequest carries the caller-supplied fields of a new project.
type CreateRequest struct {
	Name    string        `json:"name"`
	Sources store.Sources `json:"sources"`
}

// Create validates the sources, stores the project, and launches its
// initialization, which lays out the artifact directories.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (*store.Project, error) {
	if err := validateSources(req.Sources); err != nil {
		return nil, err
	}
	project, err := c.store.CreateProject(ctx, store.NewProject{
		Name:    req.Name,
		Sources: req.Sources,
		Color:   c.nextColor(ctx),
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "create", "insert", "", err)
	}
	if _, err := c.startStage(ctx, project, stageSpec{stage: store.StageInitialize, run: c.initialize}); err != nil {
		return nil, err
	}
	return c.requireProject(ctx, project.ID, "create")
}

func (c *Controller) initialize(_ context.Context, project *store.Project, _ string) (store.ProjectPatch, error) {
	for _, dir := range c.layout.Directories(project.ID) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return store.ProjectPatch{}, services.Wrap(services.ErrConfiguration, "initialize", "mkdir", dir, err)
		}
	}
	return store.ProjectPatch{}, nil
}

func validateSources(src store.Sources) error {
	sources := []struct{ label, raw string }{{"video", src.VideoURL}, {"audio", src.AudioURL}}
	for _, s := range sources {
		label, raw := s.label, strings.TrimSpace(s.raw)
		if raw == "" {
			return services.Wrap(services.ErrValidation, "create", "sources", label+" source is required", nil)
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" {
			return services.Wrap(services.ErrValidation, "create", "sources", fmt.Sprintf("%s source %q is not a URL", label, raw), nil)
		}
	}
	ranges := []struct {
		label      string
		start, end *float64
	}{
		{"video", src.VideoStart, src.VideoEnd},
		{"audio", src.AudioStart, src.AudioEnd},
	}
	for _, r := range ranges {
		for _, v := range []*float64{r.start, r.end} {
			if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0) {
				return services.Wrap(services.ErrValidation, "create", "trim", r.label+" trim offsets must be non-negative", nil)
			}
		}
		if r.start != nil && r.end != nil && *r.end <= *r.start {
			return services.Wrap(services.ErrValidation, "create", "trim", r.label+" end must be after start", nil)
		}
	}
	return nil
}

func (c *Controller) nextColor(ctx context.Context) string {
	palette := c.cfg.Captions.Palette
	if len(palette) == 0 {
		return ""
	}
	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		return palette[0]
	}
	return palette[len(projects)%len(palette)]
}

// Cancel stops every running task of a project. Each task records its own
// canceled state. It returns how many tasks were signaled.
func (c *Controller) Cancel(ctx context.Context, projectID string) (int, error) {
	if _, err := c.requireProject(ctx, projectID, "cancel"); err != nil {
		return 0, err
	}
	done := c.tasks.cancelPrefix(projectPrefix(projectID))
	logging.WithContext(services.WithProjectID(ctx, projectID), c.logger).Info("project work canceled",
		logging.Int("tasks", len(done)),
		logging.String(logging.FieldEventType, "project_canceled"),
	)
	return len(done), nil
}

// Delete cancels a project's work and removes its records and artifacts.
func (c *Controller) Delete(ctx context.Context, projectID string) error {
	if _, err := c.requireProject(ctx, projectID, "delete"); err != nil {
		return err
	}
	c.awaitCanceled(ctx, c.tasks.cancelPrefix(projectPrefix(projectID)))

	if _, err := c.store.DeleteProject(ctx, projectID); err != nil {
		return services.Wrap(services.ErrTransient, "delete", "project", "", err)
	}
	c.recorder.Forget(ctx, projectID)
	logger := logging.WithContext(services.WithProjectID(ctx, projectID), c.logger)
	if err := os.RemoveAll(c.layout.ProjectDir(projectID)); err != nil {
		logging.WarnWithContext(logger, "project artifacts not removed", "project_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the project directory manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"),
		)
	}
	logger.Info("project deleted", logging.String(logging.FieldEventType, "project_deleted"))
	return nil
}

// DeleteSegments cancels caption runs and removes the segment list together
// with segment, caption, and output artifacts.
func (c *Controller) DeleteSegments(ctx context.Context, projectID string) error {
	if _, err := c.requireProject(ctx, projectID, "delete segments"); err != nil {
		return err
	}
	c.awaitCanceled(ctx, c.tasks.cancelPrefix(segmentPrefix(projectID)))

	previous, err := c.store.ListSegments(ctx, projectID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "delete segments", "list", "", err)
	}
	if err := c.store.DeleteSegments(ctx, projectID); err != nil {
		return services.Wrap(services.ErrTransient, "delete segments", "delete", "", err)
	}
	logger := logging.WithContext(services.WithProjectID(ctx, projectID), c.logger)
	c.dropSegmentProgress(ctx, logger, projectID, previous)
	c.resetDirs(logger, c.layout.SegmentsDir(projectID), c.layout.CaptionsRoot(projectID), c.layout.OutputDir(projectID))
	c.writeSnapshot(ctx, logger, projectID)
	return nil
}

func (c *Controller) awaitCanceled(ctx context.Context, done []<-chan struct{}) {
	waitCtx, cancel := context.WithTimeout(ctx, teardownWait)
	defer cancel()
	if err := waitAll(waitCtx, done); err != nil {
		c.logger.Warn("canceled work still running",
			logging.Error(err),
			logging.String(logging.FieldEventType, "teardown_wait_expired"),
			logging.String(logging.FieldImpact, "a late task may log write failures"),
		)
	}
}

func (c *Controller) dropSegmentProgress(ctx context.Context, logger *slog.Logger, projectID string, segments []*store.Segment) {
	keys := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.ProcessID != "" {
			keys = append(keys, seg.ProcessID)
		}
	}
	if err := c.store.DeleteProgress(ctx, projectID, keys...); err != nil {
		logger.Debug("segment progress cleanup failed", logging.Error(err))
	}
}

// resetDirs empties each directory, recreating it. Failures are logged only.
func (c *Controller) resetDirs(logger *slog.Logger, dirs ...string) {
	for _, dir := range dirs {
		err := os.RemoveAll(dir)
		if err == nil {
			err = os.MkdirAll(dir, 0o755)
		}
		if err != nil {
			logger.Warn("artifact cleanup failed",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "artifact_cleanup_failed"),
				logging.String(logging.FieldImpact, "stale artifacts remain on disk"),
			)
		}
	}
}
