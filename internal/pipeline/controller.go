package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"reelcast/internal/caption"
	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/media"
	"reelcast/internal/progress"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// Media is the toolchain work the project stages need.
type Media interface {
	Download(ctx context.Context, req media.DownloadRequest, onProgress func(int)) error
	Duration(ctx context.Context, path string, onProgress func(int)) (float64, error)
	Merge(ctx context.Context, video, audio, dest string, duration float64, onProgress func(int)) error
	Cut(ctx context.Context, src, dest string, start, duration float64, onProgress func(int)) error
	Validate(ctx context.Context, path string) error
}

// Captioner runs the per-segment caption sub-pipeline.
type Captioner interface {
	Run(ctx context.Context, req caption.Request, report func(int)) (caption.Result, error)
}

// Options wires a Controller's collaborators.
type Options struct {
	Media     Media
	Captioner Captioner
	// Recorder defaults to a store-only recorder.
	Recorder *progress.Recorder
	Logger   *slog.Logger
}

// Controller drives projects through their stages.
type Controller struct {
	cfg       *config.Config
	store     *store.Store
	media     Media
	captioner Captioner
	recorder  *progress.Recorder
	layout    Layout
	tasks     *taskRegistry
	slots     *semaphore.Weighted
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Controller.
func New(cfg *config.Config, st *store.Store, opts Options) (*Controller, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("pipeline requires config and store")
	}
	if opts.Media == nil || opts.Captioner == nil {
		return nil, errors.New("pipeline requires media toolchain and captioner")
	}
	logger := logging.NewComponentLogger(opts.Logger, "pipeline")
	recorder := opts.Recorder
	if recorder == nil {
		recorder = progress.NewRecorder(st, nil, opts.Logger)
	}
	return &Controller{
		cfg:       cfg,
		store:     st,
		media:     opts.Media,
		captioner: opts.Captioner,
		recorder:  recorder,
		layout:    Layout{Root: cfg.ProjectsDir()},
		tasks:     newTaskRegistry(),
		slots:     semaphore.NewWeighted(int64(max(cfg.Pipeline.CaptionConcurrency, 1))),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Layout exposes the artifact layout.
func (c *Controller) Layout() Layout {
	return c.layout
}

// Wait blocks until every running task has finished or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	return c.tasks.wait(ctx)
}

// Shutdown stops accepting work, cancels running tasks, and waits for them to
// record their final state.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.tasks.shutdown(ctx)
}

// ProjectView is a project plus the visible progress of its current stage.
type ProjectView struct {
	*store.Project
	StageProgress progress.Report `json:"stageProgress"`
}

// Status returns a project with its aggregated stage progress.
func (c *Controller) Status(ctx context.Context, projectID string) (ProjectView, error) {
	project, err := c.requireProject(ctx, projectID, "status")
	if err != nil {
		return ProjectView{}, err
	}
	return ProjectView{
		Project:       project,
		StageProgress: progress.StageProgress(project.Progress, project.ActiveProcessID, progress.TagVideo, progress.TagAudio),
	}, nil
}

// List returns every project, newest first.
func (c *Controller) List(ctx context.Context) ([]*store.Project, error) {
	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "list", "projects", "", err)
	}
	if projects == nil {
		projects = []*store.Project{}
	}
	return projects, nil
}

// Segments returns a project's segments in order.
func (c *Controller) Segments(ctx context.Context, projectID string) ([]*store.Segment, error) {
	if _, err := c.requireProject(ctx, projectID, "segments"); err != nil {
		return nil, err
	}
	segments, err := c.store.ListSegments(ctx, projectID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "segments", "list", "", err)
	}
	if segments == nil {
		segments = []*store.Segment{}
	}
	return segments, nil
}

func (c *Controller) requireProject(ctx context.Context, projectID, op string) (*store.Project, error) {
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, op, "lookup", "", err)
	}
	if project == nil {
		return nil, services.Wrap(services.ErrNotFound, op, "lookup", fmt.Sprintf("project %s not found", projectID), nil)
	}
	return project, nil
}

// stageSpec describes one project stage run.
type stageSpec struct {
	stage store.Stage
	run   func(ctx context.Context, project *store.Project, processID string) (store.ProjectPatch, error)
	// commit persists the success patch; FinishStage when nil.
	commit func(ctx context.Context, projectID, processID string, patch store.ProjectPatch) (bool, error)
	// noTimeout exempts the run from the stage timeout.
	noTimeout bool
}

// startStage records the stage as running under a fresh process id and
// launches it, canceling the project's previous stage task.
func (c *Controller) startStage(ctx context.Context, project *store.Project, spec stageSpec) (string, error) {
	processID := uuid.NewString()
	ok, err := c.store.BeginStage(ctx, project.ID, spec.stage, processID)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, string(spec.stage), "begin", "", err)
	}
	if !ok {
		return "", services.Wrap(services.ErrNotFound, string(spec.stage), "begin", fmt.Sprintf("project %s not found", project.ID), nil)
	}
	c.recorder.Set(ctx, project.ID, processID, 0)

	_, err = c.tasks.launch(stageKey(project.ID), processID, func(taskCtx context.Context) {
		c.runStage(taskCtx, project, processID, spec)
	})
	if err != nil {
		c.failStage(context.WithoutCancel(ctx), c.logger, project.ID, spec.stage, processID, err)
		return "", services.Wrap(services.ErrTransient, string(spec.stage), "launch", "", err)
	}
	logging.WithContext(services.WithProjectID(ctx, project.ID), c.logger).Info("stage accepted",
		logging.String(logging.FieldStage, string(spec.stage)),
		logging.String(logging.FieldProcessID, processID),
		logging.String(logging.FieldEventType, "stage_accepted"),
	)
	return processID, nil
}

func (c *Controller) runStage(ctx context.Context, project *store.Project, processID string, spec stageSpec) {
	ctx = services.WithStage(services.WithProjectID(ctx, project.ID), string(spec.stage))
	if !spec.noTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.StageTimeout())
		defer cancel()
	}
	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldProcessID, processID))
	started := c.now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	patch, err := spec.run(ctx, project, processID)
	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		c.failStage(persistCtx, logger, project.ID, spec.stage, processID, err)
		return
	}

	c.recorder.Set(persistCtx, project.ID, processID, 100)
	patch.Status = store.Ptr(spec.stage.Done())
	patch.ErrorMessage = store.Ptr("")
	patch.CompletedStage = spec.stage
	patch.CompletedAt = c.now().UTC()
	commit := spec.commit
	if commit == nil {
		commit = c.store.FinishStage
	}
	ok, err := commit(persistCtx, project.ID, processID, patch)
	if err != nil {
		logger.Error("failed to persist stage result",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stage_persist_failed"),
		)
		return
	}
	if !ok {
		logger.Info("stage superseded; result discarded", logging.String(logging.FieldEventType, "stage_superseded"))
		return
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(spec.stage.Done())),
		logging.Duration("stage_duration", c.now().Sub(started)),
	)
	c.writeSnapshot(persistCtx, logger, project.ID)
}

func (c *Controller) failStage(ctx context.Context, logger *slog.Logger, projectID string, stage store.Stage, processID string, stageErr error) {
	message := failureText(string(stage), stageErr)
	ok, err := c.store.FinishStage(ctx, projectID, processID, store.ProjectPatch{
		Status:       store.Ptr(stage.Failed()),
		ErrorMessage: store.Ptr(message),
	})
	if err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
		return
	}
	if !ok {
		logger.Info("superseded stage ended", logging.String("reason", message))
		return
	}
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(stage.Failed())),
		logging.String("error_kind", services.FailureKind(stageErr)),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	c.writeSnapshot(ctx, logger, projectID)
}

// stillActive fails when the run was canceled or another run replaced it.
func (c *Controller) stillActive(ctx context.Context, projectID, processID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	project, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil || project.ActiveProcessID != processID {
		return store.ErrStageSuperseded
	}
	return nil
}

// failureText renders err for a status record. Timeouts and cancellations get
// fixed wording so clients can match on them.
func failureText(subject string, err error) string {
	switch {
	case errors.Is(err, services.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return subject + " timed out"
	case errors.Is(err, services.ErrCanceled), errors.Is(err, context.Canceled):
		return subject + " canceled"
	case err == nil:
		return subject + " failed"
	}
	return services.FailureMessage(err)
}
