// Package toolrun executes external media tools as subprocesses.
//
// A Runner spawns one invocation, streams its stdout and stderr line by line
// (carriage returns count as line breaks, which is how ffmpeg and yt-dlp redraw
// progress), hands every line to a tool-specific Parser, and forwards the
// resulting percentages through a throttle to the caller's callback. Failures
// are reported as *ToolError values that unwrap to the services sentinels, so
// callers can classify timeouts, cancellations, missing binaries, and tool
// failures without string matching.
package toolrun
