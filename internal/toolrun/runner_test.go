package toolrun_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/testsupport"
	"reelcast/internal/toolrun"
)

type recorder struct {
	mu     sync.Mutex
	values []int
}

func (r *recorder) add(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func newRunner() *toolrun.Runner {
	return toolrun.NewRunner(logging.NewNop(), 0)
}

func assertMonotonicToHundred(t *testing.T, values []int) {
	t.Helper()
	if len(values) == 0 || values[len(values)-1] != 100 {
		t.Fatalf("expected progress ending at 100, got %v", values)
	}
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			t.Fatalf("progress regressed: %v", values)
		}
	}
}

func asToolError(t *testing.T, err error) *toolrun.ToolError {
	t.Helper()
	var toolErr *toolrun.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %T: %v", err, err)
	}
	return toolErr
}

func TestRunReportsProgressAndValidatesOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")
	script := testsupport.WriteTool(t, dir, "whisper-cli", `
echo "progress = 10%" >&2
echo "progress = 55%" >&2
echo "progress = 40%" >&2
echo "loading model" >&2
printf '{}' > "$1"
`)

	rec := &recorder{}
	_, err := newRunner().Run(context.Background(), toolrun.Invocation{
		Tool:       "whisper",
		Binary:     script,
		Args:       []string{out},
		Output:     out,
		Parser:     toolrun.WhisperParser{},
		OnProgress: rec.add,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	values := rec.snapshot()
	assertMonotonicToHundred(t, values)
	if values[0] != 10 {
		t.Fatalf("expected first value to pass, got %v", values)
	}
}

func TestRunNonZeroExitCarriesDiagnostic(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteTool(t, dir, "ffmpeg", `
echo "Invalid data found when processing input" >&2
exit 3
`)
	_, err := newRunner().Run(context.Background(), toolrun.Invocation{Tool: "ffmpeg merge", Binary: script})
	toolErr := asToolError(t, err)
	if toolErr.Kind != toolrun.FailureExit || toolErr.ExitCode != 3 {
		t.Fatalf("unexpected failure %+v", toolErr)
	}
	if !strings.Contains(toolErr.Error(), "Invalid data found") {
		t.Fatalf("diagnostic missing from error: %v", err)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool sentinel, got %v", err)
	}
}

func TestRunZeroExitWithMissingOrEmptyOutputFails(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp4")
	script := testsupport.WriteTool(t, dir, "ffmpeg", `: > "$1"`)

	for _, output := range []string{empty, filepath.Join(dir, "never.mp4")} {
		_, err := newRunner().Run(context.Background(), toolrun.Invocation{
			Binary: script,
			Args:   []string{empty},
			Output: output,
		})
		toolErr := asToolError(t, err)
		if toolErr.Kind != toolrun.FailureMissingOutput {
			t.Fatalf("output %s: unexpected kind %s", output, toolErr.Kind)
		}
	}
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteTool(t, dir, "yt-dlp", `
sleep 30 &
sleep 30
`)
	started := time.Now()
	_, err := newRunner().Run(context.Background(), toolrun.Invocation{
		Tool:    "yt-dlp",
		Binary:  script,
		Timeout: 200 * time.Millisecond,
	})
	toolErr := asToolError(t, err)
	if toolErr.Kind != toolrun.FailureTimeout || !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 10*time.Second {
		t.Fatalf("timeout took %v", elapsed)
	}
}

func TestRunCancellation(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteTool(t, dir, "ffmpeg", "sleep 30\n")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := newRunner().Run(ctx, toolrun.Invocation{Binary: script})
	toolErr := asToolError(t, err)
	if toolErr.Kind != toolrun.FailureCanceled || !errors.Is(err, services.ErrCanceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestRunUnavailableBinary(t *testing.T) {
	_, err := newRunner().Run(context.Background(), toolrun.Invocation{Binary: "reelcast-missing-tool"})
	toolErr := asToolError(t, err)
	if toolErr.Kind != toolrun.FailureUnavailable || !errors.Is(err, services.ErrToolUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestRunCapturesStdoutAndProbeMidpoint(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteTool(t, dir, "ffprobe", `printf '{"format":{"duration":"12.5"}}'`)
	rec := &recorder{}
	res, err := newRunner().Run(context.Background(), toolrun.Invocation{
		Binary:        script,
		Parser:        toolrun.ProbeParser{},
		CaptureStdout: true,
		OnProgress:    rec.add,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(res.Stdout) != `{"format":{"duration":"12.5"}}` {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
	if got := rec.snapshot(); len(got) != 2 || got[0] != 50 || got[1] != 100 {
		t.Fatalf("expected [50 100], got %v", got)
	}
}

func TestRunParsesCarriageReturnProgress(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "merged.mp4")
	script := testsupport.WriteTool(t, dir, "ffmpeg", `
printf 'Duration: 00:00:10.00, start: 0\nframe=1 time=00:00:02.50 x\rframe=2 time=00:00:05.00 x\r' >&2
printf 'data' > "$1"
`)
	rec := &recorder{}
	_, err := newRunner().Run(context.Background(), toolrun.Invocation{
		Binary:     script,
		Args:       []string{out},
		Output:     out,
		Parser:     toolrun.NewFFmpegParser(0),
		OnProgress: rec.add,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	values := rec.snapshot()
	assertMonotonicToHundred(t, values)
	if len(values) != 3 || values[0] != 25 || values[1] != 50 {
		t.Fatalf("expected [25 50 100], got %v", values)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}
