package toolrun

import (
	"regexp"
	"strconv"
	"sync"
)

// EventKind classifies a parsed line.
type EventKind int

const (
	// EventProgress carries a 0-100 percentage in Percent.
	EventProgress EventKind = iota + 1
	// EventDuration carries a discovered media duration in Seconds.
	EventDuration
)

// Event is the normalized meaning of one tool output line.
type Event struct {
	Kind    EventKind
	Percent float64
	Seconds float64
}

// Parser translates one output line into an event.
type Parser interface {
	Parse(line string) (Event, bool)
}

// StartReporter is implemented by parsers that report a fixed value as soon
// as the process starts.
type StartReporter interface {
	StartPercent() float64
}

// ProbeParser reports a fixed midpoint while a short probe runs.
type ProbeParser struct{}

func (ProbeParser) Parse(string) (Event, bool) { return Event{}, false }

func (ProbeParser) StartPercent() float64 { return 50 }

var (
	ffmpegTimePattern     = regexp.MustCompile(`time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	ffmpegDurationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	whisperPattern        = regexp.MustCompile(`progress\s*=\s*(\d{1,3})\s*%`)
	ytdlpPattern          = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
)

// FFmpegParser divides ffmpeg's elapsed time= stat by a target duration.
// When Target is zero the first Duration: header seen becomes the target.
type FFmpegParser struct {
	mu     sync.Mutex
	target float64
}

// NewFFmpegParser returns a parser measuring against target seconds.
func NewFFmpegParser(target float64) *FFmpegParser {
	return &FFmpegParser{target: target}
}

func (p *FFmpegParser) Parse(line string) (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m := ffmpegDurationPattern.FindStringSubmatch(line); m != nil {
		seconds := clockSeconds(m[1], m[2], m[3])
		if p.target <= 0 && seconds > 0 {
			p.target = seconds
		}
		return Event{Kind: EventDuration, Seconds: seconds}, true
	}
	m := ffmpegTimePattern.FindStringSubmatch(line)
	if m == nil || p.target <= 0 {
		return Event{}, false
	}
	elapsed := clockSeconds(m[1], m[2], m[3])
	return Event{Kind: EventProgress, Percent: elapsed / p.target * 100}, true
}

// WhisperParser reads whisper.cpp's "progress = NN%" callback lines.
type WhisperParser struct{}

func (WhisperParser) Parse(line string) (Event, bool) {
	m := whisperPattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Event{}, false
	}
	return Event{Kind: EventProgress, Percent: pct}, true
}

// YtdlpParser accepts any NN or NN.N% token. Section downloads frame their
// progress differently from whole-file downloads, so no surrounding text is
// required.
type YtdlpParser struct{}

func (YtdlpParser) Parse(line string) (Event, bool) {
	m := ytdlpPattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct > 100 {
		return Event{}, false
	}
	return Event{Kind: EventProgress, Percent: pct}, true
}

func clockSeconds(h, m, s string) float64 {
	hours, _ := strconv.ParseFloat(h, 64)
	minutes, _ := strconv.ParseFloat(m, 64)
	seconds, _ := strconv.ParseFloat(s, 64)
	return hours*3600 + minutes*60 + seconds
}
