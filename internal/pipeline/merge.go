package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"reelcast/internal/fileutil"
	"reelcast/internal/progress"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

var (
	mergeProbePhase = progress.Phase{Start: 0, End: 10}
	mergeMainPhase  = progress.Phase{Start: 10, End: 100}
)

// StartMerge combines the downloaded tracks into one file cut to the audio
// duration.
func (c *Controller) StartMerge(ctx context.Context, projectID string) (string, error) {
	project, err := c.requireProject(ctx, projectID, "merge")
	if err != nil {
		return "", err
	}
	if !fileutil.NonEmptyFile(c.layout.VideoFile(projectID)) || !fileutil.NonEmptyFile(c.layout.AudioFile(projectID)) {
		return "", services.Wrap(services.ErrPrecondition, "merge", "sources",
			"downloaded video and audio are required; run download first", nil)
	}
	return c.startStage(ctx, project, stageSpec{stage: store.StageMerge, run: c.merge})
}

func (c *Controller) merge(ctx context.Context, project *store.Project, processID string) (store.ProjectPatch, error) {
	video := c.layout.VideoFile(project.ID)
	audio := c.layout.AudioFile(project.ID)

	audioDuration, err := c.media.Duration(ctx, audio, c.recorder.Reporter(ctx, project.ID, processID, mergeProbePhase))
	if err != nil {
		return store.ProjectPatch{}, err
	}

	staging := Staging(c.layout.MergedDir(project.ID), processID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return store.ProjectPatch{}, services.Wrap(services.ErrTransient, "merge", "staging", "", err)
	}
	dest := filepath.Join(staging, filepath.Base(c.layout.MergedFile(project.ID)))
	if err := c.media.Merge(ctx, video, audio, dest, audioDuration,
		c.recorder.Reporter(ctx, project.ID, processID, mergeMainPhase)); err != nil {
		return store.ProjectPatch{}, err
	}

	merged := audioDuration
	if c.cfg.Pipeline.ValidateArtifacts {
		if err := c.media.Validate(ctx, dest); err != nil {
			return store.ProjectPatch{}, err
		}
		if merged, err = c.media.Duration(ctx, dest, nil); err != nil {
			return store.ProjectPatch{}, err
		}
	}
	if err := c.publish(ctx, project.ID, processID, staging, c.layout.MergedDir(project.ID)); err != nil {
		return store.ProjectPatch{}, err
	}
	return store.ProjectPatch{AudioDuration: &audioDuration, MergedDuration: &merged}, nil
}
