// Package logging assembles structured slog loggers and formatting helpers used
// across reelcast.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code automatically tags log lines
// with project IDs, stages, segment ordinals, and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
