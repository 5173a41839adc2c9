package toolrun

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/progress"
)

const (
	diagnosticLines = 40
	maxLineBytes    = 1 << 20
	waitDelay       = 5 * time.Second
)

// Invocation describes one external tool run.
type Invocation struct {
	// Tool labels the run in errors and logs, e.g. "ffmpeg merge".
	Tool   string
	Binary string
	Args   []string
	Dir    string
	Env    []string
	// Output, when set, must exist and be non-empty after a zero exit.
	Output  string
	Parser  Parser
	Timeout time.Duration
	// OnProgress receives throttled, non-regressing 0-100 values. A successful
	// run always ends with 100.
	OnProgress func(int)
	// CaptureStdout collects stdout verbatim instead of parsing it as lines.
	CaptureStdout bool
}

// Result reports a finished invocation.
type Result struct {
	Stdout     []byte
	Diagnostic string
	Elapsed    time.Duration
}

// Runner executes invocations.
type Runner struct {
	logger   *slog.Logger
	interval time.Duration
	lookPath func(string) (string, error)
}

// NewRunner builds a Runner that throttles progress callbacks to interval.
func NewRunner(logger *slog.Logger, interval time.Duration) *Runner {
	return &Runner{
		logger:   logging.NewComponentLogger(logger, "toolrun"),
		interval: interval,
		lookPath: exec.LookPath,
	}
}

// Available reports whether binary resolves on PATH.
func (r *Runner) Available(binary string) error {
	_, err := r.lookPath(binary)
	return err
}

// Run executes inv and blocks until it exits.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Result, error) {
	tool := inv.Tool
	if tool == "" {
		tool = inv.Binary
	}
	path, err := r.lookPath(strings.TrimSpace(inv.Binary))
	if err != nil {
		return Result{}, &ToolError{Tool: tool, Kind: FailureUnavailable, Err: err}
	}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, path, inv.Args...) //nolint:gosec
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.WaitDelay = waitDelay
	isolateProcessGroup(cmd)

	logger := logging.WithContext(ctx, r.logger).With(logging.String("tool", tool))
	out := newLineHandler(inv, r.interval, logger)

	var stdout bytes.Buffer
	var readers []io.Reader
	if inv.CaptureStdout {
		cmd.Stdout = &stdout
	} else {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return Result{}, fmt.Errorf("%s: stdout pipe: %w", tool, err)
		}
		readers = append(readers, pipe)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("%s: stderr pipe: %w", tool, err)
	}
	readers = append(readers, stderr)

	started := time.Now()
	logger.Debug("tool started", logging.String("binary", path), logging.Any("args", inv.Args))
	if err := cmd.Start(); err != nil {
		if cerr := classify(ctx, runCtx, tool, err, ""); runCtx.Err() != nil {
			return Result{}, cerr
		}
		return Result{}, &ToolError{Tool: tool, Kind: FailureUnavailable, Err: err}
	}
	out.start()

	var wg sync.WaitGroup
	for _, reader := range readers {
		wg.Add(1)
		go func(reader io.Reader) {
			defer wg.Done()
			out.consume(reader)
		}(reader)
	}
	wg.Wait()
	waitErr := cmd.Wait()

	result := Result{Stdout: stdout.Bytes(), Diagnostic: out.diagnostic(), Elapsed: time.Since(started)}
	if err := classify(ctx, runCtx, tool, waitErr, result.Diagnostic); err != nil {
		out.flush()
		logger.Debug("tool failed", logging.Duration("elapsed", result.Elapsed), logging.Error(err))
		return result, err
	}
	if inv.Output != "" {
		if err := validateOutput(inv.Output); err != nil {
			out.flush()
			return result, &ToolError{Tool: tool, Kind: FailureMissingOutput, Diagnostic: result.Diagnostic, Err: err}
		}
	}
	out.finish()
	logger.Debug("tool finished", logging.Duration("elapsed", result.Elapsed))
	return result, nil
}

func classify(parent, runCtx context.Context, tool string, waitErr error, diagnostic string) error {
	if waitErr == nil {
		return nil
	}
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return &ToolError{Tool: tool, Kind: FailureTimeout, Err: context.DeadlineExceeded}
	case runCtx.Err() != nil:
		return &ToolError{Tool: tool, Kind: FailureCanceled, Err: context.Cause(parent)}
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return &ToolError{Tool: tool, Kind: FailureExit, ExitCode: exitErr.ExitCode(), Diagnostic: diagnostic}
	}
	return &ToolError{Tool: tool, Kind: FailureExit, ExitCode: -1, Diagnostic: diagnostic, Err: waitErr}
}

func validateOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("declared output %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("declared output %s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("declared output %s is empty", path)
	}
	return nil
}

// lineHandler parses lines from concurrent readers and keeps a diagnostic tail.
type lineHandler struct {
	mu       sync.Mutex
	parser   Parser
	throttle *progress.Throttle
	sampler  *logging.ProgressSampler
	logger   *slog.Logger
	tail     []string
}

func newLineHandler(inv Invocation, interval time.Duration, logger *slog.Logger) *lineHandler {
	h := &lineHandler{
		parser:  inv.Parser,
		sampler: logging.NewProgressSampler(0),
		logger:  logger,
	}
	if inv.OnProgress != nil {
		h.throttle = progress.NewThrottle(interval, inv.OnProgress)
	}
	return h
}

func (h *lineHandler) start() {
	if sr, ok := h.parser.(StartReporter); ok {
		h.report(sr.StartPercent())
	}
}

func (h *lineHandler) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(scanLinesOrReturns)
	for scanner.Scan() {
		h.handle(scanner.Text())
	}
	if scanner.Err() != nil {
		// Keep draining so the tool never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (h *lineHandler) handle(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.parser != nil {
		if ev, ok := h.parser.Parse(line); ok && ev.Kind == EventProgress {
			h.report(ev.Percent)
			return
		}
	}
	h.tail = append(h.tail, line)
	if len(h.tail) > diagnosticLines {
		h.tail = h.tail[len(h.tail)-diagnosticLines:]
	}
}

func (h *lineHandler) report(percent float64) {
	value := int(percent)
	if h.sampler.ShouldLog(value, "") {
		h.logger.Debug("tool progress", logging.Int("percent", value))
	}
	if h.throttle != nil {
		h.throttle.Update(value)
	}
}

func (h *lineHandler) flush() {
	if h.throttle != nil {
		h.throttle.Flush()
	}
}

func (h *lineHandler) finish() {
	if h.throttle != nil {
		h.throttle.Update(100)
		h.throttle.Flush()
	}
}

func (h *lineHandler) diagnostic() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.Join(h.tail, "\n")
}

func scanLinesOrReturns(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
