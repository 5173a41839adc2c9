package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"

	"reelcast/internal/fileutil"
	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// splitEpsilon absorbs float noise so an exact multiple of the segment length
// does not produce an empty trailing segment.
const splitEpsilon = 1e-6

// SegmentPlan lays out ceil(total/length) segments. Segment i starts at
// (i-1)*length and lasts min(length, total-start).
func SegmentPlan(total, length float64) []store.Segment {
	if total <= 0 || length <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil
	}
	count := int(math.Ceil(total/length - splitEpsilon))
	count = max(count, 1)
	plan := make([]store.Segment, 0, count)
	for i := 1; i <= count; i++ {
		start := float64(i-1) * length
		plan = append(plan, store.Segment{
			ID:       i,
			Filename: SegmentFilename(i),
			Start:    start,
			Duration: math.Min(length, total-start),
		})
	}
	return plan
}

// StartSplit cuts the merged file into fixed-length segments. Running it
// again replaces the segment list and cancels captioning of old segments.
func (c *Controller) StartSplit(ctx context.Context, projectID string) (string, error) {
	project, err := c.requireProject(ctx, projectID, "split")
	if err != nil {
		return "", err
	}
	if !fileutil.NonEmptyFile(c.layout.MergedFile(projectID)) {
		return "", services.Wrap(services.ErrPrecondition, "split", "merged",
			"merged media is required; run merge first", nil)
	}
	c.tasks.cancelPrefix(segmentPrefix(projectID))

	var (
		plan     []store.Segment
		previous []*store.Segment
	)
	run := func(ctx context.Context, project *store.Project, processID string) (store.ProjectPatch, error) {
		var patch store.ProjectPatch
		var err error
		plan, patch, err = c.split(ctx, project, processID)
		if err != nil {
			return patch, err
		}
		if previous, err = c.store.ListSegments(ctx, project.ID); err != nil {
			return patch, services.Wrap(services.ErrTransient, "split", "list", "", err)
		}
		return patch, c.publish(ctx, project.ID, processID, Staging(c.layout.SegmentsDir(project.ID), processID), c.layout.SegmentsDir(project.ID))
	}
	commit := func(ctx context.Context, projectID, processID string, patch store.ProjectPatch) (bool, error) {
		err := c.store.CompleteSplit(ctx, projectID, processID, plan, patch)
		if errors.Is(err, store.ErrStageSuperseded) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		c.tasks.cancelPrefix(segmentPrefix(projectID))
		logger := logging.WithContext(ctx, c.logger)
		c.dropSegmentProgress(ctx, logger, projectID, previous)
		c.resetDirs(logger, c.layout.CaptionsRoot(projectID), c.layout.OutputDir(projectID))
		return true, nil
	}
	return c.startStage(ctx, project, stageSpec{stage: store.StageSplit, run: run, commit: commit})
}

func (c *Controller) split(ctx context.Context, project *store.Project, processID string) ([]store.Segment, store.ProjectPatch, error) {
	merged := c.layout.MergedFile(project.ID)
	total, err := c.media.Duration(ctx, merged, nil)
	if err != nil {
		return nil, store.ProjectPatch{}, err
	}
	plan := SegmentPlan(total, c.cfg.SegmentLength().Seconds())
	if len(plan) == 0 {
		return nil, store.ProjectPatch{}, services.Wrap(services.ErrExternalTool, "split", "plan", "merged media has no duration", nil)
	}

	staging := Staging(c.layout.SegmentsDir(project.ID), processID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, store.ProjectPatch{}, services.Wrap(services.ErrTransient, "split", "staging", "", err)
	}
	for i, seg := range plan {
		dest := filepath.Join(staging, seg.Filename)
		if err := c.media.Cut(ctx, merged, dest, seg.Start, seg.Duration, nil); err != nil {
			return nil, store.ProjectPatch{}, err
		}
		if c.cfg.Pipeline.ValidateArtifacts {
			if err := c.media.Validate(ctx, dest); err != nil {
				return nil, store.ProjectPatch{}, err
			}
		}
		c.recorder.Set(ctx, project.ID, processID, (i+1)*100/len(plan))
	}
	return plan, store.ProjectPatch{MergedDuration: &total}, nil
}
