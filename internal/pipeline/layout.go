package pipeline

import (
	"fmt"
	"path/filepath"
)

// Layout resolves artifact locations under the projects directory.
type Layout struct {
	Root string
}

// SegmentFilename is the file name of segment n, for example segment_007.mp4.
func SegmentFilename(n int) string {
	return fmt.Sprintf("segment_%03d.mp4", n)
}

func segmentKey(n int) string {
	return fmt.Sprintf("segment_%03d", n)
}

// Staging returns the per-process staging path for final.
func Staging(final, processID string) string {
	return final + "." + processID + ".partial"
}

func (l Layout) ProjectDir(id string) string { return filepath.Join(l.Root, id) }
func (l Layout) DownloadsDir(id string) string { return filepath.Join(l.ProjectDir(id), "downloads") }
func (l Layout) VideoFile(id string) string { return filepath.Join(l.DownloadsDir(id), "video.mp4") }
func (l Layout) AudioFile(id string) string { return filepath.Join(l.DownloadsDir(id), "audio.m4a") }
func (l Layout) MergedDir(id string) string { return filepath.Join(l.ProjectDir(id), "merged") }
func (l Layout) MergedFile(id string) string { return filepath.Join(l.MergedDir(id), "merged.mp4") }
func (l Layout) SegmentsDir(id string) string { return filepath.Join(l.ProjectDir(id), "segments") }
func (l Layout) CaptionsRoot(id string) string { return filepath.Join(l.ProjectDir(id), "captions") }
func (l Layout) OutputDir(id string) string { return filepath.Join(l.ProjectDir(id), "output") }
func (l Layout) ProjectSnapshot(id string) string {
	return filepath.Join(l.ProjectDir(id), "project.json")
}
func (l Layout) SegmentsSnapshot(id string) string {
	return filepath.Join(l.ProjectDir(id), "segments.json")
}

// SegmentFile is the split output for segment n.
func (l Layout) SegmentFile(id string, n int) string {
	return filepath.Join(l.SegmentsDir(id), SegmentFilename(n))
}

// CaptionDir holds the kept caption intermediates of segment n.
func (l Layout) CaptionDir(id string, n int) string {
	return filepath.Join(l.CaptionsRoot(id), segmentKey(n))
}

// OutputFile is the captioned deliverable for segment n.
func (l Layout) OutputFile(id string, n int) string {
	return filepath.Join(l.OutputDir(id), SegmentFilename(n))
}

// Directories lists the directories created when a project is initialized.
func (l Layout) Directories(id string) []string {
	return []string{
		l.DownloadsDir(id),
		l.MergedDir(id),
		l.SegmentsDir(id),
		l.CaptionsRoot(id),
		l.OutputDir(id),
	}
}
