// Package media drives the external media tools: yt-dlp for downloads, ffprobe
// for durations, and ffmpeg for merging, cutting, audio extraction, subtitle
// burn-in, and the title overlay. Every call goes through a toolrun runner so
// progress, timeouts, and failures are handled uniformly.
package media
