package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelcast/internal/logging"
	"reelcast/internal/media"
	"reelcast/internal/progress"
	"reelcast/internal/services/whisper"
	"reelcast/internal/subtitles"
)

// Toolchain is the media work a caption run needs.
type Toolchain interface {
	ExtractAudio(ctx context.Context, src, dest string, duration float64, onProgress func(int)) error
	BurnSubtitles(ctx context.Context, src, srt, dest string, duration float64, onProgress func(int)) error
	DrawOverlay(ctx context.Context, src, dest string, overlay media.Overlay, duration float64, onProgress func(int)) error
	Validate(ctx context.Context, path string) error
}

// Transcriber performs speech recognition.
type Transcriber interface {
	Transcribe(ctx context.Context, wav, outputBase string, onProgress func(int)) (whisper.Transcript, error)
}

// SubtitleWriter produces the optional overlay subtitle.
type SubtitleWriter interface {
	GenerateSubtitle(ctx context.Context, title, transcript string) (string, error)
}

// Request describes one segment to caption.
type Request struct {
	ProjectName string
	SegmentID   int
	Source      string
	Duration    float64
	WorkDir     string
	Color       string
}

// Result reports a finished caption run. Paths are inside the work directory.
type Result struct {
	Output       string
	SRT          string
	Title        string
	SubtitleText string
	Transcript   string
	Lines        int
}

// Options configures a Runner.
type Options struct {
	Packer subtitles.Packer
	// Subtitles is optional; without it overlays carry the title only.
	Subtitles SubtitleWriter
	// ValidateOutput probes the finished file before reporting success.
	ValidateOutput bool
	Logger         *slog.Logger
}

// Runner executes caption runs.
type Runner struct {
	tools    Toolchain
	stt      Transcriber
	writer   SubtitleWriter
	packer   subtitles.Packer
	validate bool
	logger   *slog.Logger
}

// NewRunner builds a Runner.
func NewRunner(tools Toolchain, stt Transcriber, opts Options) *Runner {
	packer := opts.Packer
	if packer.MaxWords <= 0 || packer.MaxChars <= 0 {
		packer = subtitles.NewPacker(packer.MaxWords, packer.MaxChars)
	}
	return &Runner{
		tools:    tools,
		stt:      stt,
		writer:   opts.Subtitles,
		packer:   packer,
		validate: opts.ValidateOutput,
		logger:   logging.NewComponentLogger(opts.Logger, "caption"),
	}
}

// Run captions one segment. report receives overall 0-100 progress and ends
// with 100 on success.
func (r *Runner) Run(ctx context.Context, req Request, report func(int)) (Result, error) {
	if report == nil {
		report = func(int) {}
	}
	logger := logging.WithContext(ctx, r.logger)
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("prepare work dir: %w", err)
	}
	at := func(name string) string { return filepath.Join(req.WorkDir, name) }
	phase := func(p progress.Phase) func(int) {
		return func(pct int) { report(p.Map(float64(pct))) }
	}

	report(PhaseExtract.Start)
	if err := r.tools.ExtractAudio(ctx, req.Source, at(AudioFile), req.Duration, phase(PhaseExtract)); err != nil {
		return Result{}, fmt.Errorf("extract audio: %w", err)
	}

	report(PhaseTranscribe.Start)
	transcript, err := r.stt.Transcribe(ctx, at(AudioFile), at(TranscriptBase), phase(PhaseTranscribe))
	if err != nil {
		return Result{}, fmt.Errorf("speech-to-text: %w", err)
	}

	report(PhaseAssemble.Start)
	result := Result{
		SRT:        at(SRTFile),
		Title:      Title(req.ProjectName, req.SegmentID),
		Transcript: transcript.Text(),
	}
	lines := r.packer.Pack(subtitles.Words(spans(transcript)))
	result.Lines = len(lines)
	if err := subtitles.WriteSRTFile(result.SRT, lines); err != nil {
		return Result{}, fmt.Errorf("assemble subtitles: %w", err)
	}
	if err := os.WriteFile(at(TitleFile), []byte(result.Title), 0o644); err != nil {
		return Result{}, fmt.Errorf("write title: %w", err)
	}
	overlay := media.Overlay{TitleFile: at(TitleFile), Color: req.Color}
	if text := r.subtitle(ctx, logger, result.Title, result.Transcript); text != "" {
		if err := os.WriteFile(at(SubtitleFile), []byte(text), 0o644); err != nil {
			return Result{}, fmt.Errorf("write subtitle: %w", err)
		}
		result.SubtitleText = text
		overlay.SubtitleFile = at(SubtitleFile)
	}
	report(PhaseAssemble.End)

	burned := req.Source
	if len(lines) > 0 {
		burned = at(BurnedFile)
		if err := r.tools.BurnSubtitles(ctx, req.Source, result.SRT, burned, req.Duration, phase(PhaseBurn)); err != nil {
			return Result{}, fmt.Errorf("burn-in: %w", err)
		}
	} else {
		logger.Info("no speech recognized; skipping burn-in", logging.Int(logging.FieldSegmentID, req.SegmentID))
	}
	report(PhaseBurn.End)

	result.Output = at(OutputFile)
	if err := r.tools.DrawOverlay(ctx, burned, result.Output, overlay, req.Duration, phase(PhaseOverlay)); err != nil {
		return Result{}, fmt.Errorf("overlay: %w", err)
	}
	report(PhaseOverlay.End)

	if r.validate {
		if err := r.tools.Validate(ctx, result.Output); err != nil {
			return Result{}, fmt.Errorf("validate output: %w", err)
		}
	}
	r.cleanup(logger, at(AudioFile), at(BurnedFile))
	report(PhaseCleanup.End)
	return result, nil
}

// subtitle asks the writer for overlay text. Any failure yields "".
func (r *Runner) subtitle(ctx context.Context, logger *slog.Logger, title, transcript string) string {
	if r.writer == nil || strings.TrimSpace(transcript) == "" {
		return ""
	}
	text, err := r.writer.GenerateSubtitle(ctx, title, transcript)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ""
		}
		logging.WarnWithContext(logger, "subtitle generation failed", "subtitle_generation_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm settings and api key"),
			logging.String(logging.FieldImpact, "overlay shows the title only"),
		)
		return ""
	}
	return strings.TrimSpace(text)
}

func (r *Runner) cleanup(logger *slog.Logger, paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("caption cleanup failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "caption_cleanup_failed"),
				logging.String(logging.FieldImpact, "intermediate file left on disk"),
			)
		}
	}
}

func spans(t whisper.Transcript) []subtitles.Span {
	out := make([]subtitles.Span, len(t.Segments))
	for i, seg := range t.Segments {
		out[i] = subtitles.Span{Text: seg.Text, Start: seg.Start, End: seg.End}
	}
	return out
}
