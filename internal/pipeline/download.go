package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"reelcast/internal/fileutil"
	"reelcast/internal/media"
	"reelcast/internal/progress"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// StartDownload fetches the video and audio sources concurrently.
func (c *Controller) StartDownload(ctx context.Context, projectID string) (string, error) {
	project, err := c.requireProject(ctx, projectID, "download")
	if err != nil {
		return "", err
	}
	if !fileutil.DirExists(c.layout.ProjectDir(projectID)) {
		return "", services.Wrap(services.ErrPrecondition, "download", "workdir",
			"project directory missing; wait for initialization to finish", nil)
	}
	return c.startStage(ctx, project, stageSpec{stage: store.StageDownload, run: c.download})
}

// VideoWindow returns the trim range for the video download. Without an
// explicit video end, an audio range fixes the video length to the audio
// length: videoEnd = audioEnd - audioStart + videoStart, absent starts being 0.
func VideoWindow(src store.Sources) (start, end *float64) {
	start, end = src.VideoStart, src.VideoEnd
	if end == nil && src.AudioEnd != nil {
		computed := *src.AudioEnd - valueOr(src.AudioStart, 0) + valueOr(src.VideoStart, 0)
		end = &computed
	}
	return start, end
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func (c *Controller) download(ctx context.Context, project *store.Project, processID string) (store.ProjectPatch, error) {
	staging := Staging(c.layout.DownloadsDir(project.ID), processID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return store.ProjectPatch{}, services.Wrap(services.ErrTransient, "download", "staging", "", err)
	}

	var (
		mu    sync.Mutex
		parts = map[string]int{}
	)
	report := func(tag string) func(int) {
		child := progress.ChildKey(processID, tag)
		return func(pct int) {
			mu.Lock()
			defer mu.Unlock()
			c.recorder.Set(ctx, project.ID, child, pct)
			parts[tag] = pct
			c.recorder.Set(ctx, project.ID, processID, (parts[progress.TagVideo]+parts[progress.TagAudio])/2)
		}
	}

	videoStart, videoEnd := VideoWindow(project.Sources)
	requests := []struct {
		tag string
		req media.DownloadRequest
	}{
		{progress.TagVideo, media.DownloadRequest{
			URL: project.Sources.VideoURL, Dir: staging, Kind: media.KindVideo, Start: videoStart, End: videoEnd,
		}},
		{progress.TagAudio, media.DownloadRequest{
			URL: project.Sources.AudioURL, Dir: staging, Kind: media.KindAudio,
			Start: project.Sources.AudioStart, End: project.Sources.AudioEnd,
		}},
	}

	// Completed sibling artifacts stay in the staging directory on failure.
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range requests {
		job := job
		g.Go(func() error {
			return c.media.Download(gctx, job.req, report(job.tag))
		})
	}
	if err := g.Wait(); err != nil {
		return store.ProjectPatch{}, err
	}

	videoDuration, err := c.media.Duration(ctx, requests[0].req.Output(), nil)
	if err != nil {
		return store.ProjectPatch{}, err
	}
	audioDuration, err := c.media.Duration(ctx, requests[1].req.Output(), nil)
	if err != nil {
		return store.ProjectPatch{}, err
	}
	if err := c.publish(ctx, project.ID, processID, staging, c.layout.DownloadsDir(project.ID)); err != nil {
		return store.ProjectPatch{}, err
	}
	return store.ProjectPatch{VideoDuration: &videoDuration, AudioDuration: &audioDuration}, nil
}

// publish swaps a stage's staging directory into place while the run is
// still the project's active process.
func (c *Controller) publish(ctx context.Context, projectID, processID, staging, dest string) error {
	if err := c.stillActive(ctx, projectID, processID); err != nil {
		return err
	}
	if err := fileutil.SwapDir(staging, dest); err != nil {
		return services.Wrap(services.ErrTransient, "publish", filepath.Base(dest), "", err)
	}
	return nil
}
