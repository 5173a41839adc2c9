package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/google/uuid"

	"reelcast/internal/caption"
	"reelcast/internal/fileutil"
	"reelcast/internal/logging"
	"reelcast/internal/progress"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// StartCaption captions one segment. The project's status is left alone;
// only the segment row records the outcome.
func (c *Controller) StartCaption(ctx context.Context, projectID string, segmentID int) (string, error) {
	project, segments, err := c.requireSegments(ctx, projectID, "caption")
	if err != nil {
		return "", err
	}
	seg, err := c.captionTarget(projectID, segments, segmentID)
	if err != nil {
		return "", err
	}
	processID, _, err := c.launchSegment(ctx, project, seg)
	return processID, err
}

// BatchStart reports an accepted batch.
type BatchStart struct {
	ProcessID string `json:"processId"`
	Segments  []int  `json:"segments"`
}

// StartCaptionBatch captions the listed segments, or every segment not yet
// completed when ids is empty, through the shared worker pool. The project is
// captioning until every run ends and captioned afterwards, whatever the
// individual segment outcomes.
func (c *Controller) StartCaptionBatch(ctx context.Context, projectID string, ids []int) (BatchStart, error) {
	project, segments, err := c.requireSegments(ctx, projectID, "caption batch")
	if err != nil {
		return BatchStart{}, err
	}
	var targets []int
	if len(ids) == 0 {
		for _, seg := range segments {
			if seg.Status != store.SegmentCompleted {
				targets = append(targets, seg.ID)
			}
		}
		if len(targets) == 0 {
			return BatchStart{}, services.Wrap(services.ErrPrecondition, "caption batch", "select",
				"every segment is already captioned", nil)
		}
	} else {
		targets = slices.Clone(ids)
		slices.Sort(targets)
		targets = slices.Compact(targets)
	}
	for _, id := range targets {
		if _, err := c.captionTarget(projectID, segments, id); err != nil {
			return BatchStart{}, err
		}
	}

	processID, err := c.startStage(ctx, project, stageSpec{
		stage:     store.StageCaption,
		run:       c.captionBatch(targets),
		noTimeout: true,
	})
	if err != nil {
		return BatchStart{}, err
	}
	return BatchStart{ProcessID: processID, Segments: targets}, nil
}

func (c *Controller) requireSegments(ctx context.Context, projectID, op string) (*store.Project, []*store.Segment, error) {
	project, err := c.requireProject(ctx, projectID, op)
	if err != nil {
		return nil, nil, err
	}
	if project.Status == store.StageSplit.Running() {
		return nil, nil, services.Wrap(services.ErrPrecondition, op, "segments", "split in progress", nil)
	}
	segments, err := c.store.ListSegments(ctx, projectID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, op, "segments", "", err)
	}
	if len(segments) == 0 {
		return nil, nil, services.Wrap(services.ErrPrecondition, op, "segments", "no segments; run split first", nil)
	}
	return project, segments, nil
}

func (c *Controller) captionTarget(projectID string, segments []*store.Segment, segmentID int) (*store.Segment, error) {
	idx := slices.IndexFunc(segments, func(s *store.Segment) bool { return s.ID == segmentID })
	if idx < 0 {
		return nil, services.Wrap(services.ErrNotFound, "caption", "segment", fmt.Sprintf("segment %d not found", segmentID), nil)
	}
	if !fileutil.NonEmptyFile(c.layout.SegmentFile(projectID, segmentID)) {
		return nil, services.Wrap(services.ErrPrecondition, "caption", "segment",
			fmt.Sprintf("segment %d media missing; run split again", segmentID), nil)
	}
	return segments[idx], nil
}

func (c *Controller) captionBatch(targets []int) func(context.Context, *store.Project, string) (store.ProjectPatch, error) {
	return func(ctx context.Context, project *store.Project, processID string) (store.ProjectPatch, error) {
		type launched struct {
			key, id string
			done    <-chan struct{}
		}
		runs := make([]launched, 0, len(targets))
		for _, id := range targets {
			seg, err := c.store.GetSegment(ctx, project.ID, id)
			if err != nil {
				return store.ProjectPatch{}, services.Wrap(services.ErrTransient, "caption batch", "segment", "", err)
			}
			if seg == nil {
				continue
			}
			segProcess, done, err := c.launchSegment(ctx, project, seg)
			if err != nil {
				return store.ProjectPatch{}, err
			}
			runs = append(runs, launched{key: segmentTaskKey(project.ID, id), id: segProcess, done: done})
		}

		for i, run := range runs {
			select {
			case <-run.done:
				c.recorder.Set(ctx, project.ID, processID, (i+1)*100/len(runs))
			case <-ctx.Done():
				for _, r := range runs {
					c.tasks.cancelIf(r.key, r.id)
				}
				return store.ProjectPatch{}, ctx.Err()
			}
		}
		return store.ProjectPatch{}, nil
	}
}

// launchSegment marks seg in-progress under a fresh process id and starts its
// caption run, superseding any earlier run of the same segment.
func (c *Controller) launchSegment(ctx context.Context, project *store.Project, seg *store.Segment) (string, <-chan struct{}, error) {
	processID := uuid.NewString()
	ok, err := c.store.BeginSegment(ctx, project.ID, seg.ID, processID)
	if err != nil {
		return "", nil, services.Wrap(services.ErrTransient, "caption", "begin", "", err)
	}
	if !ok {
		return "", nil, services.Wrap(services.ErrNotFound, "caption", "begin", fmt.Sprintf("segment %d not found", seg.ID), nil)
	}
	c.recorder.Set(ctx, project.ID, processID, 0)

	target := *seg
	done, err := c.tasks.launch(segmentTaskKey(project.ID, seg.ID), processID, func(taskCtx context.Context) {
		c.runSegment(taskCtx, project, target, processID)
	})
	if err != nil {
		c.failSegment(context.WithoutCancel(ctx), c.logger, project.ID, seg.ID, processID, err)
		return "", nil, services.Wrap(services.ErrTransient, "caption", "launch", "", err)
	}
	return processID, done, nil
}

func (c *Controller) runSegment(ctx context.Context, project *store.Project, seg store.Segment, processID string) {
	ctx = services.WithSegmentID(services.WithStage(services.WithProjectID(ctx, project.ID), string(store.StageCaption)), seg.ID)
	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldProcessID, processID))
	persistCtx := context.WithoutCancel(ctx)

	if err := c.slots.Acquire(ctx, 1); err != nil {
		c.failSegment(persistCtx, logger, project.ID, seg.ID, processID, err)
		return
	}
	defer c.slots.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.CaptionTimeout())
	defer cancel()
	started := c.now()
	logger.Info("segment captioning started", logging.String(logging.FieldEventType, "caption_start"))

	throttle := progress.NewThrottle(c.cfg.ProgressInterval(), func(pct int) {
		if _, err := c.store.UpdateSegment(persistCtx, project.ID, seg.ID, processID, store.SegmentPatch{Progress: &pct}); err != nil {
			logger.Debug("segment progress write failed", logging.Error(err))
		}
		c.recorder.Set(persistCtx, project.ID, processID, pct)
	})
	workDir := Staging(c.layout.CaptionDir(project.ID, seg.ID), processID)
	result, err := c.captioner.Run(runCtx, caption.Request{
		ProjectName: project.Name,
		SegmentID:   seg.ID,
		Source:      c.layout.SegmentFile(project.ID, seg.ID),
		Duration:    seg.Duration,
		WorkDir:     workDir,
		Color:       project.Color,
	}, throttle.Update)
	throttle.Flush()
	if err == nil {
		err = c.publishSegment(runCtx, project.ID, seg.ID, processID, result, workDir)
	}
	if err != nil {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("caption staging cleanup failed",
				logging.Error(rmErr),
				logging.String(logging.FieldEventType, "caption_cleanup_failed"),
				logging.String(logging.FieldImpact, "intermediate files left on disk"),
			)
		}
		c.failSegment(persistCtx, logger, project.ID, seg.ID, processID, err)
		return
	}

	completed := c.now().UTC()
	ok, err := c.store.UpdateSegment(persistCtx, project.ID, seg.ID, processID, store.SegmentPatch{
		Status:       store.Ptr(store.SegmentCompleted),
		Progress:     store.Ptr(100),
		SubtitleText: store.Ptr(result.SubtitleText),
		OutputFile:   store.Ptr(SegmentFilename(seg.ID)),
		ErrorMessage: store.Ptr(""),
		CompletedAt:  &completed,
	})
	if err != nil {
		logger.Error("failed to persist caption result", logging.Error(err))
		return
	}
	if !ok {
		logger.Info("caption run superseded; result discarded", logging.String(logging.FieldEventType, "caption_superseded"))
		return
	}
	c.recorder.Set(persistCtx, project.ID, processID, 100)
	logger.Info("segment captioning completed",
		logging.String(logging.FieldEventType, "caption_complete"),
		logging.Int("caption_lines", result.Lines),
		logging.Bool("has_subtitle", result.SubtitleText != ""),
		logging.Duration("caption_duration", c.now().Sub(started)),
	)
	c.writeSnapshot(persistCtx, logger, project.ID)
}

// publishSegment moves the captioned output and the kept intermediates into
// place while processID is still the segment's active run.
func (c *Controller) publishSegment(ctx context.Context, projectID string, segmentID int, processID string, result caption.Result, workDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := c.store.GetSegment(ctx, projectID, segmentID)
	if err != nil {
		return err
	}
	if current == nil || current.ProcessID != processID {
		return store.ErrStageSuperseded
	}
	if err := fileutil.MoveFile(result.Output, c.layout.OutputFile(projectID, segmentID)); err != nil {
		return services.Wrap(services.ErrTransient, "caption", "publish", "output", err)
	}
	if err := fileutil.SwapDir(workDir, c.layout.CaptionDir(projectID, segmentID)); err != nil {
		return services.Wrap(services.ErrTransient, "caption", "publish", "intermediates", err)
	}
	return nil
}

func (c *Controller) failSegment(ctx context.Context, logger *slog.Logger, projectID string, segmentID int, processID string, runErr error) {
	message := failureText(fmt.Sprintf("segment %d captioning", segmentID), runErr)
	failed := c.now().UTC()
	ok, err := c.store.UpdateSegment(ctx, projectID, segmentID, processID, store.SegmentPatch{
		Status:       store.Ptr(store.SegmentFailed),
		ErrorMessage: store.Ptr(message),
		FailedAt:     &failed,
	})
	if err != nil {
		logger.Error("failed to persist caption failure", logging.Error(err))
		return
	}
	if !ok {
		logger.Info("superseded caption run ended", logging.String("reason", message))
		return
	}
	logger.Error("segment captioning failed",
		logging.String(logging.FieldEventType, "caption_failure"),
		logging.String("error_kind", services.FailureKind(runErr)),
		logging.String("error_message", message),
		logging.Error(runErr),
	)
	c.writeSnapshot(ctx, logger, projectID)
}
