package media

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"reelcast/internal/config"
	"reelcast/internal/media/ffprobe"
	"reelcast/internal/services"
	"reelcast/internal/toolrun"
)

// Kind selects which stream a download fetches.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Toolchain builds and runs tool invocations.
type Toolchain struct {
	runner   ffprobe.Runner
	tools    config.Tools
	captions config.Captions
}

// NewToolchain binds a runner to the configured binaries and caption styling.
func NewToolchain(runner ffprobe.Runner, tools config.Tools, captions config.Captions) *Toolchain {
	return &Toolchain{runner: runner, tools: tools, captions: captions}
}

// Probe inspects a media file.
func (t *Toolchain) Probe(ctx context.Context, path string, onProgress func(int)) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, t.runner, t.tools.FFprobe, path, onProgress)
}

// Duration probes path and returns its positive duration in seconds.
func (t *Toolchain) Duration(ctx context.Context, path string, onProgress func(int)) (float64, error) {
	result, err := t.Probe(ctx, path, onProgress)
	if err != nil {
		return 0, err
	}
	seconds := result.DurationSeconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0, services.Wrap(services.ErrExternalTool, "probe", "duration",
			fmt.Sprintf("%s reports no usable duration", filepath.Base(path)), nil)
	}
	return seconds, nil
}

// Validate fails when ffprobe rejects path or reports a zero duration.
func (t *Toolchain) Validate(ctx context.Context, path string) error {
	result, err := t.Probe(ctx, path, nil)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "validate", "probe", filepath.Base(path), err)
	}
	if len(result.Streams) == 0 {
		return services.Wrap(services.ErrExternalTool, "validate", "streams", filepath.Base(path)+" has no streams", nil)
	}
	if d := result.DurationSeconds(); math.IsNaN(d) || d <= 0 {
		return services.Wrap(services.ErrExternalTool, "validate", "duration", filepath.Base(path)+" has zero duration", nil)
	}
	return nil
}

// DownloadRequest describes one yt-dlp fetch. Dir receives <kind>.<ext>.
type DownloadRequest struct {
	URL   string
	Dir   string
	Kind  Kind
	Start *float64
	End   *float64
}

// Output returns the file the request produces.
func (r DownloadRequest) Output() string {
	if r.Kind == KindAudio {
		return filepath.Join(r.Dir, "audio.m4a")
	}
	return filepath.Join(r.Dir, "video.mp4")
}

// Download fetches one stream with yt-dlp, trimmed to the requested range.
func (t *Toolchain) Download(ctx context.Context, req DownloadRequest, onProgress func(int)) error {
	args := []string{"--newline", "--no-playlist", "--no-mtime", "--force-overwrites"}
	switch req.Kind {
	case KindAudio:
		args = append(args, "-f", "bestaudio[ext=m4a]/bestaudio/best", "-x", "--audio-format", "m4a")
	default:
		args = append(args, "-f", "bestvideo[ext=mp4]/bestvideo/best", "--remux-video", "mp4")
	}
	if section := downloadSection(req.Start, req.End); section != "" {
		args = append(args, "--download-sections", section, "--force-keyframes-at-cuts")
	}
	if filepath.IsAbs(t.tools.FFmpeg) {
		args = append(args, "--ffmpeg-location", t.tools.FFmpeg)
	}
	args = append(args, "-o", filepath.Join(req.Dir, string(req.Kind)+".%(ext)s"), "--", req.URL)

	_, err := t.runner.Run(ctx, toolrun.Invocation{
		Tool:       "yt-dlp " + string(req.Kind),
		Binary:     t.tools.YtDlp,
		Args:       args,
		Output:     req.Output(),
		Parser:     toolrun.YtdlpParser{},
		OnProgress: onProgress,
	})
	return err
}

func downloadSection(start, end *float64) string {
	if start == nil && end == nil {
		return ""
	}
	from := "0"
	if start != nil {
		from = formatSeconds(*start)
	}
	to := "inf"
	if end != nil {
		to = formatSeconds(*end)
	}
	return "*" + from + "-" + to
}

// Merge muxes the video stream of video with the audio of audio, truncated to
// duration seconds.
func (t *Toolchain) Merge(ctx context.Context, video, audio, dest string, duration float64, onProgress func(int)) error {
	return t.ffmpeg(ctx, "ffmpeg merge", duration, dest, onProgress,
		"-i", video, "-i", audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac",
		"-t", formatSeconds(duration),
		"-movflags", "+faststart", "-f", "mp4", dest,
	)
}

// Cut re-encodes [start, start+duration) of src into dest.
func (t *Toolchain) Cut(ctx context.Context, src, dest string, start, duration float64, onProgress func(int)) error {
	return t.ffmpeg(ctx, "ffmpeg cut", duration, dest, onProgress,
		"-ss", formatSeconds(start), "-i", src,
		"-t", formatSeconds(duration),
		"-map", "0:v:0?", "-map", "0:a:0?",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "20",
		"-c:a", "aac", "-movflags", "+faststart", "-f", "mp4", dest,
	)
}

// ExtractAudio writes a mono 16 kHz WAV for speech recognition.
func (t *Toolchain) ExtractAudio(ctx context.Context, src, dest string, duration float64, onProgress func(int)) error {
	return t.ffmpeg(ctx, "ffmpeg extract audio", duration, dest, onProgress,
		"-i", src, "-vn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", "-f", "wav", dest,
	)
}

// BurnSubtitles renders srt into the video frames of src.
func (t *Toolchain) BurnSubtitles(ctx context.Context, src, srt, dest string, duration float64, onProgress func(int)) error {
	filter := "subtitles=filename=" + escapeFilterValue(srt) + ":force_style=" + escapeFilterValue(t.subtitleStyle())
	return t.ffmpeg(ctx, "ffmpeg burn subtitles", duration, dest, onProgress,
		"-i", src, "-vf", filter,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "20",
		"-c:a", "copy", "-movflags", "+faststart", "-f", "mp4", dest,
	)
}

// Overlay names the text files drawn over the top of a segment.
type Overlay struct {
	TitleFile    string
	SubtitleFile string
	Color        string
}

// DrawOverlay draws the title, and the subtitle when present, over src.
func (t *Toolchain) DrawOverlay(ctx context.Context, src, dest string, overlay Overlay, duration float64, onProgress func(int)) error {
	size := 2 * t.fontSize()
	filters := []string{t.drawText(overlay.TitleFile, overlay.Color, size, "h*0.06")}
	if overlay.SubtitleFile != "" {
		subSize := int(math.Round(float64(size) * 0.6))
		y := "h*0.06+" + strconv.Itoa(int(math.Round(float64(size)*1.5)))
		filters = append(filters, t.drawText(overlay.SubtitleFile, "white", subSize, y))
	}
	return t.ffmpeg(ctx, "ffmpeg overlay", duration, dest, onProgress,
		"-i", src, "-vf", strings.Join(filters, ","),
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "20",
		"-c:a", "copy", "-movflags", "+faststart", "-f", "mp4", dest,
	)
}

func (t *Toolchain) drawText(textFile, color string, size int, y string) string {
	parts := []string{
		"drawtext=textfile=" + escapeFilterValue(textFile),
		"fontcolor=" + ffmpegColor(color),
		"fontsize=" + strconv.Itoa(size),
		"x=(w-text_w)/2",
		"y=" + y,
		"box=1", "boxcolor=black@0.45", "boxborderw=12",
	}
	if font := strings.TrimSpace(t.captions.Font); font != "" {
		parts = append(parts, "font="+escapeFilterValue(font))
	}
	return strings.Join(parts, ":")
}

func (t *Toolchain) subtitleStyle() string {
	style := []string{"FontSize=" + strconv.Itoa(t.fontSize()), "Outline=2", "Shadow=0", "Alignment=2", "MarginV=40"}
	if font := strings.TrimSpace(t.captions.Font); font != "" {
		style = append([]string{"FontName=" + font}, style...)
	}
	return strings.Join(style, ",")
}

func (t *Toolchain) fontSize() int {
	if t.captions.FontSize <= 0 {
		return 18
	}
	return t.captions.FontSize
}

func (t *Toolchain) ffmpeg(ctx context.Context, tool string, duration float64, dest string, onProgress func(int), args ...string) error {
	full := append([]string{"-y", "-hide_banner", "-nostdin"}, args...)
	_, err := t.runner.Run(ctx, toolrun.Invocation{
		Tool:       tool,
		Binary:     t.tools.FFmpeg,
		Args:       full,
		Output:     dest,
		Parser:     toolrun.NewFFmpegParser(duration),
		OnProgress: onProgress,
	})
	return err
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ffmpegColor converts #RRGGBB into ffmpeg's 0xRRGGBB form.
func ffmpegColor(color string) string {
	color = strings.TrimSpace(color)
	if color == "" {
		return "white"
	}
	if strings.HasPrefix(color, "#") {
		return "0x" + strings.TrimPrefix(color, "#")
	}
	return color
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `,`, `\,`, `;`, `\;`, `[`, `\[`, `]`, `\]`)
)

// escapeFilterValue escapes v for use as a filter option value inside an
// ffmpeg filtergraph, covering both the option and the graph parsing levels.
func escapeFilterValue(v string) string {
	return graphEscaper.Replace(optionEscaper.Replace(v))
}
