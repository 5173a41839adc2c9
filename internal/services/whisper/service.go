package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"reelcast/internal/toolrun"
)

// Runner executes a whisper.cpp invocation.
type Runner interface {
	Run(ctx context.Context, inv toolrun.Invocation) (toolrun.Result, error)
}

// Service provides whisper.cpp transcription.
type Service struct {
	cfg    Config
	runner Runner
}

// NewService creates a transcription service.
func NewService(cfg Config, runner Runner) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	return &Service{cfg: cfg, runner: runner}
}

// Transcribe recognizes speech in a 16 kHz WAV file. whisper.cpp writes its
// JSON next to outputBase as outputBase.json.
func (s *Service) Transcribe(ctx context.Context, wav, outputBase string, onProgress func(int)) (Transcript, error) {
	if strings.TrimSpace(wav) == "" {
		return Transcript{}, fmt.Errorf("transcribe: source path required")
	}
	if strings.TrimSpace(outputBase) == "" {
		return Transcript{}, fmt.Errorf("transcribe: output base required")
	}
	jsonPath := outputBase + ".json"
	_, err := s.runner.Run(ctx, toolrun.Invocation{
		Tool:       "whisper",
		Binary:     s.cfg.Binary,
		Args:       s.buildArgs(wav, outputBase),
		Output:     jsonPath,
		Parser:     toolrun.WhisperParser{},
		OnProgress: onProgress,
	})
	if err != nil {
		return Transcript{}, err
	}
	return LoadTranscript(jsonPath)
}

func (s *Service) buildArgs(wav, outputBase string) []string {
	args := make([]string, 0, 16)
	if model := strings.TrimSpace(s.cfg.Model); model != "" {
		args = append(args, "-m", model)
	}
	args = append(args,
		"-f", wav,
		"-l", NormalizeLanguage(s.cfg.Language),
		"-ml", "1",
		"-sow",
		"-oj",
		"-of", outputBase,
		"-pp",
	)
	return args
}

// Segment is one transcript entry. Times are in seconds.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// Transcript is the decoded recognition result.
type Transcript struct {
	Segments []Segment
}

// Text joins the non-empty segment texts with spaces.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

type payload struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// LoadTranscript reads a whisper.cpp JSON file.
func LoadTranscript(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, err
	}
	return ParseTranscript(data)
}

// ParseTranscript decodes whisper.cpp JSON. Offsets are milliseconds.
func ParseTranscript(data []byte) (Transcript, error) {
	var raw payload
	if err := json.Unmarshal(data, &raw); err != nil {
		return Transcript{}, fmt.Errorf("parse whisper json: %w", err)
	}
	out := Transcript{Segments: make([]Segment, 0, len(raw.Transcription))}
	for _, entry := range raw.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		out.Segments = append(out.Segments, Segment{
			Text:  text,
			Start: float64(entry.Offsets.From) / 1000,
			End:   float64(entry.Offsets.To) / 1000,
		})
	}
	return out, nil
}
