package toolrun

import (
	"fmt"
	"strings"

	"reelcast/internal/services"
)

// FailureKind classifies why an invocation failed.
type FailureKind string

const (
	FailureExit          FailureKind = "exit"
	FailureMissingOutput FailureKind = "missing_output"
	FailureTimeout       FailureKind = "timeout"
	FailureCanceled      FailureKind = "canceled"
	FailureUnavailable   FailureKind = "unavailable"
)

// ToolError describes a failed invocation.
type ToolError struct {
	Tool       string
	Kind       FailureKind
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	b.WriteString(e.Tool)
	switch e.Kind {
	case FailureExit:
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	case FailureMissingOutput:
		b.WriteString(" produced no output")
	case FailureTimeout:
		b.WriteString(" timed out")
	case FailureCanceled:
		b.WriteString(" canceled")
	case FailureUnavailable:
		b.WriteString(" not available")
	default:
		b.WriteString(" failed")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if diag := strings.TrimSpace(e.Diagnostic); diag != "" {
		b.WriteString(": ")
		b.WriteString(diag)
	}
	return b.String()
}

// Unwrap exposes the matching services sentinel and the underlying cause.
func (e *ToolError) Unwrap() []error {
	errs := []error{e.marker()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *ToolError) marker() error {
	switch e.Kind {
	case FailureTimeout:
		return services.ErrTimeout
	case FailureCanceled:
		return services.ErrCanceled
	case FailureUnavailable:
		return services.ErrToolUnavailable
	default:
		return services.ErrExternalTool
	}
}
