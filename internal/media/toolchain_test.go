package media

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"reelcast/internal/config"
	"reelcast/internal/services"
	"reelcast/internal/store"
	"reelcast/internal/toolrun"
)

type scriptedRunner struct {
	calls  []toolrun.Invocation
	stdout string
	err    error
}

func (r *scriptedRunner) Run(_ context.Context, inv toolrun.Invocation) (toolrun.Result, error) {
	r.calls = append(r.calls, inv)
	return toolrun.Result{Stdout: []byte(r.stdout)}, r.err
}

func newToolchain(r *scriptedRunner) *Toolchain {
	cfg := config.Default()
	return NewToolchain(r, cfg.Tools, cfg.Captions)
}

func argAfter(t *testing.T, args []string, flag string) string {
	t.Helper()
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		t.Fatalf("flag %s missing from %v", flag, args)
	}
	return args[i+1]
}

func TestDownloadSection(t *testing.T) {
	tests := []struct {
		name       string
		start, end *float64
		want       string
	}{
		{"no trim", nil, nil, ""},
		{"end only", nil, store.Ptr(83.0), "*0-83"},
		{"start only", store.Ptr(12.5), nil, "*12.5-inf"},
		{"both", store.Ptr(5.0), store.Ptr(88.0), "*5-88"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := downloadSection(tt.start, tt.end); got != tt.want {
				t.Fatalf("downloadSection = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDownloadBuildsTrimmedInvocation(t *testing.T) {
	runner := &scriptedRunner{}
	tc := newToolchain(runner)
	req := DownloadRequest{URL: "https://example.com/a", Dir: "/work/dl", Kind: KindAudio, End: store.Ptr(83.0)}
	if err := tc.Download(context.Background(), req, nil); err != nil {
		t.Fatalf("Download: %v", err)
	}
	inv := runner.calls[0]
	if inv.Output != "/work/dl/audio.m4a" {
		t.Fatalf("unexpected output %q", inv.Output)
	}
	if got := argAfter(t, inv.Args, "--download-sections"); got != "*0-83" {
		t.Fatalf("unexpected section %q", got)
	}
	if inv.Args[len(inv.Args)-1] != req.URL {
		t.Fatalf("url must be last: %v", inv.Args)
	}
	if _, ok := inv.Parser.(toolrun.YtdlpParser); !ok {
		t.Fatalf("unexpected parser %T", inv.Parser)
	}
}

func TestMergeTruncatesToDuration(t *testing.T) {
	runner := &scriptedRunner{}
	tc := newToolchain(runner)
	if err := tc.Merge(context.Background(), "v.mp4", "a.m4a", "merged.mp4", 83, nil); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	inv := runner.calls[0]
	if got := argAfter(t, inv.Args, "-t"); got != "83" {
		t.Fatalf("expected -t 83, got %q", got)
	}
	if inv.Output != "merged.mp4" {
		t.Fatalf("merge must declare its output, got %q", inv.Output)
	}
}

func TestCutUsesStartAndDuration(t *testing.T) {
	runner := &scriptedRunner{}
	tc := newToolchain(runner)
	if err := tc.Cut(context.Background(), "merged.mp4", "segment_003.mp4", 120, 5, nil); err != nil {
		t.Fatalf("Cut: %v", err)
	}
	inv := runner.calls[0]
	if argAfter(t, inv.Args, "-ss") != "120" || argAfter(t, inv.Args, "-t") != "5" {
		t.Fatalf("unexpected cut args %v", inv.Args)
	}
}

func TestDurationRejectsZero(t *testing.T) {
	tc := newToolchain(&scriptedRunner{stdout: `{"format":{"duration":"0"}}`})
	if _, err := tc.Duration(context.Background(), "x.mp4", nil); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	good := newToolchain(&scriptedRunner{stdout: `{"streams":[{"codec_type":"video"}],"format":{"duration":"60"}}`})
	if err := good.Validate(context.Background(), "ok.mp4"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	empty := newToolchain(&scriptedRunner{stdout: `{"streams":[],"format":{}}`})
	if err := empty.Validate(context.Background(), "bad.mp4"); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestOverlayUsesTextFiles(t *testing.T) {
	runner := &scriptedRunner{}
	tc := newToolchain(runner)
	overlay := Overlay{TitleFile: "/work/title.txt", SubtitleFile: "/work/subtitle.txt", Color: "#F5C518"}
	if err := tc.DrawOverlay(context.Background(), "in.mp4", "out.mp4", overlay, 60, nil); err != nil {
		t.Fatalf("DrawOverlay: %v", err)
	}
	filter := argAfter(t, runner.calls[0].Args, "-vf")
	if strings.Count(filter, "drawtext=") != 2 {
		t.Fatalf("expected title and subtitle drawtext, got %q", filter)
	}
	if !strings.Contains(filter, `textfile=/work/title.txt`) || !strings.Contains(filter, "fontcolor=0xF5C518") {
		t.Fatalf("unexpected filter %q", filter)
	}
}

func TestEscapeFilterValue(t *testing.T) {
	got := escapeFilterValue(`/tmp/a:b's,c.srt`)
	want := `/tmp/a\\:b\\\'s\,c.srt`
	if got != want {
		t.Fatalf("escapeFilterValue = %q, want %q", got, want)
	}
}
