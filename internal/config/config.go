package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage locations and the API bind address.
type Paths struct {
	// RootDir holds the database, lock file, and every project's artifacts.
	RootDir string `toml:"root_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`

	// APIToken, when set, must accompany every API request as a bearer token.
	APIToken string `toml:"api_token"`
}

// Tools names the external binaries the pipeline drives.
type Tools struct {
	FFmpeg          string `toml:"ffmpeg"`
	FFprobe         string `toml:"ffprobe"`
	YtDlp           string `toml:"ytdlp"`
	Whisper         string `toml:"whisper"`
	WhisperModel    string `toml:"whisper_model"`
	WhisperLanguage string `toml:"whisper_language"`
}

// Pipeline contains stage sizing, concurrency, and timeout settings.
type Pipeline struct {
	SegmentLengthSeconds  int  `toml:"segment_length_seconds"`
	CaptionConcurrency    int  `toml:"caption_concurrency"`
	StageTimeoutSeconds   int  `toml:"stage_timeout_seconds"`
	CaptionTimeoutSeconds int  `toml:"caption_timeout_seconds"`
	ProgressIntervalMS    int  `toml:"progress_interval_ms"`
	ValidateArtifacts     bool `toml:"validate_artifacts"`
}

// Captions contains subtitle packing and overlay styling settings.
type Captions struct {
	Font         string   `toml:"font"`
	FontSize     int      `toml:"font_size"`
	Palette      []string `toml:"palette"`
	MaxLineWords int      `toml:"max_line_words"`
	MaxLineChars int      `toml:"max_line_chars"`
}

// LLM contains connection settings for overlay subtitle generation.
type LLM struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Redis contains settings for the optional progress mirror.
type Redis struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	KeyPrefix  string `toml:"key_prefix"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelcast.
//
// Configuration sections by subsystem:
//   - Paths: root storage directory, logs, and API bind address
//   - Tools: ffmpeg, ffprobe, yt-dlp, and whisper binaries
//   - Pipeline: segment length, caption concurrency, timeouts
//   - Captions: line packing limits and overlay styling
//   - LLM: optional overlay subtitle generation
//   - Redis: optional progress mirror for external dashboards
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Tools    Tools    `toml:"tools"`
	Pipeline Pipeline `toml:"pipeline"`
	Captions Captions `toml:"captions"`
	LLM      LLM      `toml:"llm"`
	Redis    Redis    `toml:"redis"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the root storage and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RootDir, c.ProjectsDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ProjectsDir is the parent of every per-project artifact directory.
func (c *Config) ProjectsDir() string {
	return filepath.Join(c.Paths.RootDir, "projects")
}

// DatabasePath returns the SQLite database location under the root directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.RootDir, "reelcast.db")
}

// LockPath returns the daemon lock file location under the root directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.RootDir, "reelcast.lock")
}

// SegmentLength returns the target split length.
func (c *Config) SegmentLength() time.Duration {
	return time.Duration(c.Pipeline.SegmentLengthSeconds) * time.Second
}

// StageTimeout bounds a single download, merge, or split run.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Pipeline.StageTimeoutSeconds) * time.Second
}

// CaptionTimeout bounds a single segment caption run.
func (c *Config) CaptionTimeout() time.Duration {
	return time.Duration(c.Pipeline.CaptionTimeoutSeconds) * time.Second
}

// ProgressInterval is the minimum spacing between persisted progress updates.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Pipeline.ProgressIntervalMS) * time.Millisecond
}

// RedisTTL returns how long mirrored progress hashes live.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// Binaries lists every external tool the pipeline invokes.
func (c *Config) Binaries() []string {
	return []string{c.Tools.FFmpeg, c.Tools.FFprobe, c.Tools.YtDlp, c.Tools.Whisper}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
