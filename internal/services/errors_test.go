package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelcast/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "merge", "ffmpeg", "failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"merge", "ffmpeg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrTimeout, "split", "cut", "", nil), "timeout"},
		{services.Wrap(services.ErrCanceled, "split", "cut", "", nil), "canceled"},
		{services.Wrap(services.ErrToolUnavailable, "download", "yt-dlp", "", nil), "tool_unavailable"},
		{services.Wrap(services.ErrPrecondition, "merge", "", "", nil), "precondition"},
		{fmt.Errorf("plain: %w", context.DeadlineExceeded), "transient"},
	}
	for _, tc := range cases {
		if got := services.FailureKind(tc.err); got != tc.want {
			t.Fatalf("FailureKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsRequestError(t *testing.T) {
	if !services.IsRequestError(services.Wrap(services.ErrNotFound, "", "", "", nil)) {
		t.Fatal("not found should be a request error")
	}
	if services.IsRequestError(services.Wrap(services.ErrExternalTool, "", "", "", nil)) {
		t.Fatal("tool failure should not be a request error")
	}
}

func TestFailureMessageTruncatesLongDiagnostics(t *testing.T) {
	long := errors.New("start " + strings.Repeat("x", 10000) + " end")
	msg := services.FailureMessage(long)
	if len(msg) > 4100 {
		t.Fatalf("message not truncated: %d bytes", len(msg))
	}
	if !strings.HasPrefix(msg, "start") || !strings.HasSuffix(msg, "end") {
		t.Fatalf("expected head and tail to survive, got %q...%q", msg[:10], msg[len(msg)-10:])
	}
	if services.FailureMessage(nil) != "" {
		t.Fatal("nil error should render empty")
	}
}
