package config

import (
	"errors"
	"fmt"
	"regexp"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Paths.RootDir == "" {
		return errors.New("paths.root_dir must be set")
	}
	if c.Pipeline.SegmentLengthSeconds <= 0 {
		return errors.New("pipeline.segment_length_seconds must be positive")
	}
	if c.Pipeline.CaptionConcurrency <= 0 {
		return errors.New("pipeline.caption_concurrency must be positive")
	}
	if c.Pipeline.StageTimeoutSeconds <= 0 {
		return errors.New("pipeline.stage_timeout_seconds must be positive")
	}
	if c.Pipeline.CaptionTimeoutSeconds <= 0 {
		return errors.New("pipeline.caption_timeout_seconds must be positive")
	}
	if c.Pipeline.ProgressIntervalMS < 0 {
		return errors.New("pipeline.progress_interval_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateCaptions() error {
	if c.Captions.MaxLineWords <= 0 {
		return errors.New("captions.max_line_words must be positive")
	}
	if c.Captions.MaxLineChars <= 0 {
		return errors.New("captions.max_line_chars must be positive")
	}
	if c.Captions.FontSize <= 0 {
		return errors.New("captions.font_size must be positive")
	}
	for _, color := range c.Captions.Palette {
		if !hexColorPattern.MatchString(color) {
			return fmt.Errorf("captions.palette: %q is not a #RRGGBB color", color)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !c.LLM.Enabled {
		return nil
	}
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key must be set when llm.enabled is true (or set REELCAST_LLM_API_KEY)")
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
