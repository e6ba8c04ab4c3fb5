package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("cache.backend must be \"file\" or \"sqlite\", got %q", c.Cache.Backend)
	}
	if c.Cache.TTLSeconds < 0 {
		return errors.New("cache.ttl_seconds must be zero (no expiry) or positive")
	}
	if c.Cache.MemoryTTLSeconds < 0 {
		return errors.New("cache.memory_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateProviders() error {
	for id, rank := range c.Providers.Ranks {
		if !slices.Contains(KnownProviders, id) {
			return fmt.Errorf("providers.ranks: unknown provider %q (known: %s)", id, strings.Join(KnownProviders, ", "))
		}
		if rank < 0 {
			return fmt.Errorf("providers.ranks.%s must be >= 0", id)
		}
	}
	for _, id := range c.Providers.Disabled {
		if !slices.Contains(KnownProviders, id) {
			return fmt.Errorf("providers.disabled: unknown provider %q (known: %s)", id, strings.Join(KnownProviders, ", "))
		}
	}
	if c.Providers.TimeoutSeconds < 0 {
		return errors.New("providers.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.OpenAI.RequestsPerMinute < 0 {
		return errors.New("openai.requests_per_minute must be positive")
	}
	if c.OpenAI.TimeoutSeconds < 0 {
		return errors.New("openai.timeout_seconds must be positive")
	}
	if c.HasOpenAI() && !strings.HasPrefix(c.OpenAI.BaseURL, "http") {
		return fmt.Errorf("openai.base_url must be an http(s) URL, got %q", c.OpenAI.BaseURL)
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return errors.New("video.width and video.height must be positive")
	}
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		return fmt.Errorf("video size %dx%d must use even dimensions", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return errors.New("video.fps must be positive")
	}
	if c.Video.TitleCardSeconds < 0 {
		return errors.New("video.title_card_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.MaxWorkers < 1 {
		return errors.New("batch.max_workers must be at least 1")
	}
	if c.Batch.MaxChapters < 0 {
		return errors.New("batch.max_chapters must be zero (unlimited) or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
