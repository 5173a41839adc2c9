package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Progress throttling is disabled so tests observe every update.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RootDir = filepath.Join(base, "root")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Pipeline.ProgressIntervalMS = 0
	cfgVal.Pipeline.StageTimeoutSeconds = 30
	cfgVal.Pipeline.CaptionTimeoutSeconds = 30

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSegmentLength overrides the split target length.
func WithSegmentLength(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.SegmentLengthSeconds = seconds
	}
}

// WithCaptionConcurrency overrides the caption worker pool size.
func WithCaptionConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.CaptionConcurrency = n
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names, points the tool config at them, and prepends their directory to PATH.
// If names is empty, every configured external binary is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = b.cfg.Binaries()
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteTool(b.t, binDir, name, "exit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RootDir)
}
