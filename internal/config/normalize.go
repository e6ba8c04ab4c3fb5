package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCache()
	c.normalizeProviders()
	c.normalizeOpenAI()
	c.normalizeLocal()
	c.normalizeNarration()
	c.normalizeVideo()
	c.normalizeBatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCache() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	c.Cache.ConfigVersion = strings.TrimSpace(c.Cache.ConfigVersion)
	if c.Cache.ConfigVersion == "" {
		c.Cache.ConfigVersion = defaultCacheConfigVersion
	}
	if c.Cache.MemoryTTLSeconds == 0 {
		c.Cache.MemoryTTLSeconds = defaultMemoryTTLSeconds
	}
}

func (c *Config) normalizeProviders() {
	if len(c.Providers.Ranks) > 0 {
		ranks := make(map[string]int, len(c.Providers.Ranks))
		for id, rank := range c.Providers.Ranks {
			ranks[strings.ToLower(strings.TrimSpace(id))] = rank
		}
		c.Providers.Ranks = ranks
	}
	disabled := make([]string, 0, len(c.Providers.Disabled))
	for _, id := range c.Providers.Disabled {
		normalized := strings.ToLower(strings.TrimSpace(id))
		if normalized == "" || slices.Contains(disabled, normalized) {
			continue
		}
		disabled = append(disabled, normalized)
	}
	c.Providers.Disabled = disabled
	if c.Providers.TimeoutSeconds == 0 {
		c.Providers.TimeoutSeconds = defaultProviderTimeout
	}
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.OpenAI.APIKey = strings.TrimSpace(value)
		}
	}
	overrideFromEnv(&c.OpenAI.BaseURL, "OPENAI_BASE_URL", defaultOpenAIBaseURL)
	overrideFromEnv(&c.OpenAI.Model, "OPENAI_MODEL", defaultOpenAIModel)
	overrideFromEnv(&c.OpenAI.VisionModel, "OPENAI_VISION_MODEL", defaultOpenAIVisionModel)
	overrideFromEnv(&c.OpenAI.TTSModel, "OPENAI_TTS_MODEL", defaultOpenAITTSModel)
	overrideFromEnv(&c.OpenAI.TTSVoice, "OPENAI_TTS_VOICE", defaultOpenAITTSVoice)
	c.OpenAI.BaseURL = strings.TrimRight(c.OpenAI.BaseURL, "/")
	if c.OpenAI.RequestsPerMinute == 0 {
		c.OpenAI.RequestsPerMinute = defaultOpenAIRPM
	}
	if c.OpenAI.TimeoutSeconds == 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeout
	}
}

func (c *Config) normalizeLocal() {
	defaultString(&c.Local.TesseractBinary, defaultTesseractBinary)
	defaultString(&c.Local.TesseractLanguages, defaultTesseractLanguages)
	defaultString(&c.Local.OllamaModel, defaultOllamaModel)
	defaultString(&c.Local.EspeakBinary, defaultEspeakBinary)
	c.Local.OllamaURL = strings.TrimSpace(c.Local.OllamaURL)
	if c.Local.OllamaURL == "" {
		if value, ok := os.LookupEnv("OLLAMA_HOST"); ok {
			c.Local.OllamaURL = strings.TrimSpace(value)
		}
	}
	if c.Local.OllamaURL != "" && !strings.Contains(c.Local.OllamaURL, "://") {
		c.Local.OllamaURL = "http://" + c.Local.OllamaURL
	}
	c.Local.OllamaURL = strings.TrimRight(c.Local.OllamaURL, "/")
}

func (c *Config) normalizeNarration() {
	overrideFromEnv(&c.Narration.Language, "MMR_LANG", defaultNarrationLanguage)
	c.Narration.Language = strings.ToLower(c.Narration.Language)
	c.Narration.Voice = strings.TrimSpace(c.Narration.Voice)
}

func (c *Config) normalizeVideo() {
	if c.Video.Width == 0 {
		c.Video.Width = defaultVideoWidth
	}
	if c.Video.Height == 0 {
		c.Video.Height = defaultVideoHeight
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = defaultVideoFPS
	}
	defaultString(&c.Video.FFmpegBinary, defaultFFmpegBinary)
	defaultString(&c.Video.FFprobeBinary, defaultFFprobeBinary)
}

func (c *Config) normalizeBatch() {
	if c.Batch.MaxWorkers == 0 {
		c.Batch.MaxWorkers = defaultMaxWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	overrideFromEnv(&c.Logging.Level, "LOG_LEVEL", defaultLogLevel)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

// overrideFromEnv lets a set environment variable win over the file value.
func overrideFromEnv(target *string, env, fallback string) {
	if value, ok := os.LookupEnv(env); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
		return
	}
	defaultString(target, fallback)
}

func defaultString(target *string, fallback string) {
	*target = strings.TrimSpace(*target)
	if *target == "" {
		*target = fallback
	}
}
