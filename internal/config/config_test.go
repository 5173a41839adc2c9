package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelcast/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantRoot := filepath.Join(tempHome, ".local", "share", "reelcast")
	if cfg.Paths.RootDir != wantRoot {
		t.Fatalf("unexpected root dir: got %q want %q", cfg.Paths.RootDir, wantRoot)
	}
	if cfg.DatabasePath() != filepath.Join(wantRoot, "reelcast.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.ProjectsDir() != filepath.Join(wantRoot, "projects") {
		t.Fatalf("unexpected projects dir: %q", cfg.ProjectsDir())
	}
	if cfg.SegmentLength() != time.Minute {
		t.Fatalf("unexpected segment length: %s", cfg.SegmentLength())
	}
	if cfg.Pipeline.CaptionConcurrency != 2 {
		t.Fatalf("unexpected caption concurrency: %d", cfg.Pipeline.CaptionConcurrency)
	}
	if cfg.Captions.MaxLineWords != 5 || cfg.Captions.MaxLineChars != 20 {
		t.Fatalf("unexpected line limits: %+v", cfg.Captions)
	}
	if len(cfg.Captions.Palette) == 0 {
		t.Fatal("expected default palette")
	}
	if cfg.LLM.Enabled || cfg.Redis.Enabled {
		t.Fatal("expected optional integrations disabled by default")
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	root := filepath.Join(t.TempDir(), "storage")
	configPath := filepath.Join(t.TempDir(), "custom.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"root_dir": root,
			"api_bind": "0.0.0.0:9000",
		},
		"pipeline": map[string]any{
			"segment_length_seconds": 30,
			"caption_concurrency":    4,
		},
		"tools": map[string]any{
			"ffmpeg": "/opt/ffmpeg/bin/ffmpeg",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.RootDir != root {
		t.Fatalf("unexpected root dir: %q", cfg.Paths.RootDir)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.SegmentLength() != 30*time.Second {
		t.Fatalf("unexpected segment length: %s", cfg.SegmentLength())
	}
	if cfg.Tools.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %q", cfg.Tools.FFmpeg)
	}
	if cfg.Tools.FFprobe != "ffprobe" {
		t.Fatalf("expected ffprobe default to survive partial override, got %q", cfg.Tools.FFprobe)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if _, err := os.Stat(cfg.ProjectsDir()); err != nil {
		t.Fatalf("expected projects dir to exist: %v", err)
	}
}

func TestEnvVarSuppliesLLMKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REELCAST_LLM_API_KEY", "env-key")

	configPath := filepath.Join(t.TempDir(), "llm.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\nenabled = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected key from env, got %q", cfg.LLM.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "root_dir") {
		t.Fatal("sample config missing root_dir")
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"segment length", func(c *config.Config) { c.Pipeline.SegmentLengthSeconds = 0 }, "segment_length_seconds"},
		{"concurrency", func(c *config.Config) { c.Pipeline.CaptionConcurrency = -1 }, "caption_concurrency"},
		{"stage timeout", func(c *config.Config) { c.Pipeline.StageTimeoutSeconds = 0 }, "stage_timeout_seconds"},
		{"palette", func(c *config.Config) { c.Captions.Palette = []string{"red"} }, "captions.palette"},
		{"llm key", func(c *config.Config) { c.LLM.Enabled = true; c.LLM.APIKey = "" }, "llm.api_key"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.RootDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
