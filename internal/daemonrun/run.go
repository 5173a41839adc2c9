package daemonrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"reelcast/internal/caption"
	"reelcast/internal/config"
	"reelcast/internal/daemon"
	"reelcast/internal/deps"
	"reelcast/internal/logging"
	"reelcast/internal/media"
	"reelcast/internal/pipeline"
	"reelcast/internal/progress"
	"reelcast/internal/services/llm"
	"reelcast/internal/services/whisper"
	"reelcast/internal/store"
	"reelcast/internal/subtitles"
	"reelcast/internal/toolrun"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
}

// Run starts the reelcast daemon and blocks until the context is canceled or
// the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	ctl, closers, err := Build(cfg, st, logger)
	if err != nil {
		st.Close()
		return err
	}
	defer closeAll(logger, closers)

	d, err := daemon.New(cfg, st, ctl, logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("reelcast daemon shutting down")
	return nil
}

// Build wires the production pipeline: the subprocess runner, media
// toolchain, whisper transcription, the optional LLM subtitle writer, and the
// optional Redis progress mirror. The returned closers release optional
// connections after the daemon stops.
func Build(cfg *config.Config, st *store.Store, logger *slog.Logger) (*pipeline.Controller, []io.Closer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := toolrun.NewRunner(logger, cfg.ProgressInterval())
	tools := media.NewToolchain(runner, cfg.Tools, cfg.Captions)
	stt := whisper.NewService(whisper.Config{
		Binary:   cfg.Tools.Whisper,
		Model:    cfg.Tools.WhisperModel,
		Language: cfg.Tools.WhisperLanguage,
	}, runner)

	var writer caption.SubtitleWriter
	if cfg.LLM.Enabled {
		writer = llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
	}

	captioner := caption.NewRunner(tools, stt, caption.Options{
		Packer:         subtitles.NewPacker(cfg.Captions.MaxLineWords, cfg.Captions.MaxLineChars),
		Subtitles:      writer,
		ValidateOutput: cfg.Pipeline.ValidateArtifacts,
		Logger:         logger,
	})

	var (
		mirror  progress.Mirror
		closers []io.Closer
	)
	if cfg.Redis.Enabled {
		redisMirror, err := progress.NewRedisMirror(cfg.Redis, cfg.RedisTTL())
		if err != nil {
			logging.WarnWithContext(logger, "redis progress mirror disabled", "redis_unavailable",
				logging.String("addr", cfg.Redis.Addr),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check redis.addr or disable the mirror"),
				logging.String(logging.FieldImpact, "progress is only visible through the API"),
			)
		} else {
			mirror = redisMirror
			closers = append(closers, redisMirror)
		}
	}

	ctl, err := pipeline.New(cfg, st, pipeline.Options{
		Media:     tools,
		Captioner: captioner,
		Recorder:  progress.NewRecorder(st, mirror, logger),
		Logger:    logger,
	})
	if err != nil {
		closeAll(logger, closers)
		return nil, nil, fmt.Errorf("create pipeline: %w", err)
	}
	return ctl, closers, nil
}

func closeAll(logger *slog.Logger, closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close resource", logging.Error(err))
		}
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_enabled", cfg.LLM.Enabled),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("redis_enabled", cfg.Redis.Enabled),
		logging.Bool("validate_artifacts", cfg.Pipeline.ValidateArtifacts),
	}
	for _, dep := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(strings.NewReplacer(".", "_", "-", "_").Replace(dep.Name))
		attrs = append(attrs,
			logging.Bool(key+"_available", dep.Available),
			logging.String(key+"_binary", dep.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
