// Package pipeline implements the project-level state machine.
//
// A Controller validates stage preconditions against on-disk artifacts,
// records the in-progress status and a fresh process identifier, launches the
// stage as a detached task, and finalizes the status when the task ends. Every
// stage writes into a `*.<pid>.partial` staging path and swaps it into place on
// success, so a failed or superseded run never leaves half-written outputs
// where the next stage would read them.
//
// Stage tasks are keyed per project: starting any stage cancels the project's
// previous stage task. Caption runs are keyed per segment and share one
// bounded worker pool across every project.
package pipeline
