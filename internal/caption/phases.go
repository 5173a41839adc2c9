package caption

import "reelcast/internal/progress"

// Phase ranges of a caption run.
var (
	PhaseExtract    = progress.Phase{Start: 0, End: 5}
	PhaseTranscribe = progress.Phase{Start: 5, End: 45}
	PhaseAssemble   = progress.Phase{Start: 45, End: 50}
	PhaseBurn       = progress.Phase{Start: 50, End: 80}
	PhaseOverlay    = progress.Phase{Start: 80, End: 95}
	PhaseCleanup    = progress.Phase{Start: 95, End: 100}
)

// Work directory file names.
const (
	AudioFile      = "audio.wav"
	TranscriptBase = "transcript"
	SRTFile        = "captions.srt"
	BurnedFile     = "burned.mp4"
	TitleFile      = "title.txt"
	SubtitleFile   = "subtitle.txt"
	OutputFile     = "final.mp4"
)
