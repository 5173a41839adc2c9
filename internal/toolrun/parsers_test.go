package toolrun

import "testing"

func TestParsers(t *testing.T) {
	tests := []struct {
		name   string
		parser Parser
		line   string
		want   Event
		ok     bool
	}{
		{"whisper", WhisperParser{}, "whisper_print_progress_callback: progress =  45%", Event{Kind: EventProgress, Percent: 45}, true},
		{"whisper ignores other lines", WhisperParser{}, "whisper_init_from_file: loading model", Event{}, false},
		{"ytdlp whole file", YtdlpParser{}, "[download]  37.5% of 10.00MiB at 1.00MiB/s ETA 00:06", Event{Kind: EventProgress, Percent: 37.5}, true},
		{"ytdlp sections", YtdlpParser{}, "frame=  120 fps=30 q=-1.0 size=  512kB 12%", Event{Kind: EventProgress, Percent: 12}, true},
		{"ytdlp rejects over 100", YtdlpParser{}, "ratio 250%", Event{}, false},
		{"ffmpeg time", NewFFmpegParser(120), "frame=10 fps=0.0 q=-1.0 size=0kB time=00:01:00.00 bitrate=N/A", Event{Kind: EventProgress, Percent: 50}, true},
		{"ffmpeg time without target", NewFFmpegParser(0), "time=00:00:10.00", Event{}, false},
		{"ffmpeg duration", NewFFmpegParser(0), "  Duration: 00:01:30.50, start: 0.000000, bitrate: 128 kb/s", Event{Kind: EventDuration, Seconds: 90.5}, true},
		{"probe", ProbeParser{}, "anything", Event{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.parser.Parse(tt.line)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Parse(%q) = %+v, %v; want %+v, %v", tt.line, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFFmpegParserLearnsTargetFromDuration(t *testing.T) {
	p := NewFFmpegParser(0)
	p.Parse("Duration: 00:00:20.00, start: 0")
	ev, ok := p.Parse("time=00:00:05.00")
	if !ok || ev.Percent != 25 {
		t.Fatalf("expected 25%%, got %+v %v", ev, ok)
	}
}

func TestScanLinesOrReturns(t *testing.T) {
	data := []byte("a\rb\nc")
	var tokens []string
	for len(data) > 0 {
		advance, token, _ := scanLinesOrReturns(data, true)
		tokens = append(tokens, string(token))
		data = data[advance:]
	}
	if len(tokens) != 3 || tokens[0] != "a" || tokens[1] != "b" || tokens[2] != "c" {
		t.Fatalf("unexpected tokens %q", tokens)
	}
}
