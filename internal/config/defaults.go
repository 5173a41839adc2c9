package config

const (
	defaultRootDir               = "~/.local/share/reelcast"
	defaultLogDir                = "~/.local/share/reelcast/logs"
	defaultAPIBind               = "127.0.0.1:7491"
	defaultFFmpeg                = "ffmpeg"
	defaultFFprobe               = "ffprobe"
	defaultYtDlp                 = "yt-dlp"
	defaultWhisper               = "whisper-cli"
	defaultWhisperModel          = "~/.local/share/reelcast/models/ggml-base.en.bin"
	defaultWhisperLanguage       = "en"
	defaultSegmentLengthSeconds  = 60
	defaultCaptionConcurrency    = 2
	defaultStageTimeoutSeconds   = 3600
	defaultCaptionTimeoutSeconds = 1800
	defaultProgressIntervalMS    = 1000
	defaultCaptionFont           = "DejaVu Sans"
	defaultCaptionFontSize       = 18
	defaultMaxLineWords          = 5
	defaultMaxLineChars          = 20
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-2.5-flash"
	defaultLLMReferer            = "https://github.com/reelcast/reelcast"
	defaultLLMTitle              = "reelcast captions"
	defaultLLMTimeoutSeconds     = 30
	defaultRedisAddr             = "127.0.0.1:6379"
	defaultRedisKeyPrefix        = "reelcast:progress:"
	defaultRedisTTLSeconds       = 86400
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

var defaultPalette = []string{"#F5C518", "#FF6B6B", "#4ECDC4", "#A78BFA", "#34D399", "#F472B6"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RootDir: defaultRootDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Tools: Tools{
			FFmpeg:          defaultFFmpeg,
			FFprobe:         defaultFFprobe,
			YtDlp:           defaultYtDlp,
			Whisper:         defaultWhisper,
			WhisperModel:    defaultWhisperModel,
			WhisperLanguage: defaultWhisperLanguage,
		},
		Pipeline: Pipeline{
			SegmentLengthSeconds:  defaultSegmentLengthSeconds,
			CaptionConcurrency:    defaultCaptionConcurrency,
			StageTimeoutSeconds:   defaultStageTimeoutSeconds,
			CaptionTimeoutSeconds: defaultCaptionTimeoutSeconds,
			ProgressIntervalMS:    defaultProgressIntervalMS,
		},
		Captions: Captions{
			Font:         defaultCaptionFont,
			FontSize:     defaultCaptionFontSize,
			Palette:      append([]string(nil), defaultPalette...),
			MaxLineWords: defaultMaxLineWords,
			MaxLineChars: defaultMaxLineChars,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Redis: Redis{
			Addr:       defaultRedisAddr,
			KeyPrefix:  defaultRedisKeyPrefix,
			TTLSeconds: defaultRedisTTLSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
