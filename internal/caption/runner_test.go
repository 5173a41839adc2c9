package caption_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"reelcast/internal/caption"
	"reelcast/internal/media"
	"reelcast/internal/services/whisper"
	"reelcast/internal/subtitles"
)

type fakeTools struct {
	mu          sync.Mutex
	burned      bool
	overlaySrc  string
	overlay     media.Overlay
	validated   bool
	validateErr error
}

func touch(path string) error {
	return os.WriteFile(path, []byte("data"), 0o644)
}

func (f *fakeTools) ExtractAudio(_ context.Context, _, dest string, _ float64, onProgress func(int)) error {
	onProgress(50)
	onProgress(100)
	return touch(dest)
}

func (f *fakeTools) BurnSubtitles(_ context.Context, _, _, dest string, _ float64, onProgress func(int)) error {
	f.mu.Lock()
	f.burned = true
	f.mu.Unlock()
	onProgress(100)
	return touch(dest)
}

func (f *fakeTools) DrawOverlay(_ context.Context, src, dest string, overlay media.Overlay, _ float64, onProgress func(int)) error {
	f.mu.Lock()
	f.overlaySrc = src
	f.overlay = overlay
	f.mu.Unlock()
	onProgress(100)
	return touch(dest)
}

func (f *fakeTools) Validate(context.Context, string) error {
	f.validated = true
	return f.validateErr
}

type fakeSTT struct {
	transcript whisper.Transcript
	err        error
}

func (f fakeSTT) Transcribe(_ context.Context, _, _ string, onProgress func(int)) (whisper.Transcript, error) {
	if f.err != nil {
		return whisper.Transcript{}, f.err
	}
	onProgress(100)
	return f.transcript, nil
}

type fakeWriter struct {
	text string
	err  error
}

func (f fakeWriter) GenerateSubtitle(context.Context, string, string) (string, error) {
	return f.text, f.err
}

func speech() whisper.Transcript {
	return whisper.Transcript{Segments: []whisper.Segment{
		{Text: "welcome back everyone", Start: 0, End: 1.5},
		{Text: "to the show", Start: 1.5, End: 3},
	}}
}

func newRequest(t *testing.T) caption.Request {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "segment_002.mp4")
	if err := touch(src); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return caption.Request{
		ProjectName: "road trip",
		SegmentID:   2,
		Source:      src,
		Duration:    60,
		WorkDir:     filepath.Join(dir, "work"),
		Color:       "#FF8800",
	}
}

func TestRunProducesOutputAndReportsPhases(t *testing.T) {
	tools := &fakeTools{}
	runner := caption.NewRunner(tools, fakeSTT{transcript: speech()}, caption.Options{
		Packer:         subtitles.NewPacker(5, 20),
		Subtitles:      fakeWriter{text: "  Hitting the road  "},
		ValidateOutput: true,
	})
	req := newRequest(t)

	var reports []int
	result, err := runner.Run(context.Background(), req, func(pct int) { reports = append(reports, pct) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Fatalf("expected reports to end at 100, got %v", reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("progress regressed: %v", reports)
		}
	}
	for _, want := range []int{caption.PhaseTranscribe.Start, caption.PhaseBurn.Start, caption.PhaseOverlay.Start, caption.PhaseCleanup.Start} {
		found := false
		for _, pct := range reports {
			if pct == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected phase boundary %d in %v", want, reports)
		}
	}

	if result.Title != "Road Trip Part 2" {
		t.Fatalf("unexpected title %q", result.Title)
	}
	if result.SubtitleText != "Hitting the road" {
		t.Fatalf("unexpected subtitle %q", result.SubtitleText)
	}
	if result.Lines != 2 {
		t.Fatalf("expected 2 caption lines, got %d", result.Lines)
	}
	if result.Output != filepath.Join(req.WorkDir, caption.OutputFile) {
		t.Fatalf("unexpected output path %q", result.Output)
	}
	if !tools.burned || tools.overlaySrc != filepath.Join(req.WorkDir, caption.BurnedFile) {
		t.Fatalf("expected overlay to read the burned file, got %q", tools.overlaySrc)
	}
	if tools.overlay.SubtitleFile == "" || tools.overlay.Color != "#FF8800" {
		t.Fatalf("unexpected overlay %+v", tools.overlay)
	}
	if !tools.validated {
		t.Fatal("expected output validation")
	}

	title, err := os.ReadFile(filepath.Join(req.WorkDir, caption.TitleFile))
	if err != nil || string(title) != "Road Trip Part 2" {
		t.Fatalf("title file = %q, %v", title, err)
	}
	srt, err := os.ReadFile(result.SRT)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	lines := subtitles.ParseSRT(string(srt))
	if len(lines) != 2 {
		t.Fatalf("parse srt: (%d lines)", len(lines))
	}
	if lines[0].Text != "welcome back" || lines[1].Text != "everyone to the show" {
		t.Fatalf("unexpected srt lines %+v", lines)
	}
	for _, name := range []string{caption.AudioFile, caption.BurnedFile} {
		if _, err := os.Stat(filepath.Join(req.WorkDir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed, stat err %v", name, err)
		}
	}
}

func TestRunFailsWhenSpeechToTextFails(t *testing.T) {
	tools := &fakeTools{}
	runner := caption.NewRunner(tools, fakeSTT{err: errors.New("whisper exited 1")}, caption.Options{})
	var last int
	_, err := runner.Run(context.Background(), newRequest(t), func(pct int) { last = pct })
	if err == nil || !strings.Contains(err.Error(), "speech-to-text") {
		t.Fatalf("expected speech-to-text error, got %v", err)
	}
	if tools.burned {
		t.Fatal("burn-in must not run after a failed transcription")
	}
	if last >= caption.PhaseAssemble.Start {
		t.Fatalf("progress advanced past transcription: %d", last)
	}
}

func TestRunSkipsBurnInWithoutSpeech(t *testing.T) {
	tools := &fakeTools{}
	runner := caption.NewRunner(tools, fakeSTT{}, caption.Options{Subtitles: fakeWriter{text: "unused"}})
	req := newRequest(t)
	result, err := runner.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tools.burned {
		t.Fatal("expected burn-in to be skipped")
	}
	if tools.overlaySrc != req.Source {
		t.Fatalf("expected overlay over the source, got %q", tools.overlaySrc)
	}
	if result.Lines != 0 || result.SubtitleText != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunKeepsTitleWhenSubtitleFails(t *testing.T) {
	tools := &fakeTools{}
	runner := caption.NewRunner(tools, fakeSTT{transcript: speech()}, caption.Options{
		Subtitles: fakeWriter{err: errors.New("llm unavailable")},
	})
	result, err := runner.Run(context.Background(), newRequest(t), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SubtitleText != "" || tools.overlay.SubtitleFile != "" {
		t.Fatalf("expected title-only overlay, got %+v", tools.overlay)
	}
	if tools.overlay.TitleFile == "" {
		t.Fatal("expected title file on overlay")
	}
}

func TestRunReportsValidationFailure(t *testing.T) {
	tools := &fakeTools{validateErr: errors.New("zero duration")}
	runner := caption.NewRunner(tools, fakeSTT{transcript: speech()}, caption.Options{ValidateOutput: true})
	if _, err := runner.Run(context.Background(), newRequest(t), nil); err == nil || !strings.Contains(err.Error(), "validate output") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		project string
		id      int
		want    string
	}{
		{name: "title cased", project: "road trip", id: 1, want: "Road Trip Part 1"},
		{name: "mixed case", project: "the BIG  day", id: 12, want: "The Big Day Part 12"},
		{name: "empty name", project: "  ", id: 3, want: "Part 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := caption.Title(tt.project, tt.id); got != tt.want {
				t.Fatalf("Title(%q, %d) = %q, want %q", tt.project, tt.id, got, tt.want)
			}
		})
	}
}
