// Package ffprobe runs ffprobe through toolrun and decodes its JSON report.
//
// Result exposes stream counts and the container duration, which the pipeline
// uses to size merges and splits and to validate produced artifacts.
package ffprobe
