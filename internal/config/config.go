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

	"mangarecap/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Provider identifiers accepted in providers.ranks and providers.disabled.
const (
	ProviderOpenAI    = "openai"
	ProviderTesseract = "tesseract"
	ProviderOllama    = "ollama"
	ProviderEspeak    = "espeak"
	ProviderSynthetic = "synthetic"
)

// KnownProviders lists every provider ID the registry builder understands.
var KnownProviders = []string{ProviderOpenAI, ProviderTesseract, ProviderOllama, ProviderEspeak, ProviderSynthetic}

// Paths contains working directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Cache configures the content-addressed artifact cache.
type Cache struct {
	Enabled          bool   `toml:"enabled"`
	Backend          string `toml:"backend"`
	TTLSeconds       int    `toml:"ttl_seconds"`
	MemoryEnabled    bool   `toml:"memory_enabled"`
	MemoryTTLSeconds int    `toml:"memory_ttl_seconds"`
	// ConfigVersion is folded into every cache key; bump it to invalidate
	// entries produced under older prompts or models.
	ConfigVersion string `toml:"config_version"`
}

// Providers controls fallback chain ordering and per-attempt limits.
type Providers struct {
	Ranks          map[string]int `toml:"ranks"`
	Disabled       []string       `toml:"disabled"`
	TimeoutSeconds int            `toml:"timeout_seconds"`
}

// OpenAI contains settings for the premium OpenAI-compatible API.
type OpenAI struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	VisionModel       string `toml:"vision_model"`
	TTSModel          string `toml:"tts_model"`
	TTSVoice          string `toml:"tts_voice"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Local contains settings for locally installed providers.
type Local struct {
	TesseractBinary    string `toml:"tesseract_binary"`
	TesseractLanguages string `toml:"tesseract_languages"`
	OllamaURL          string `toml:"ollama_url"`
	OllamaModel        string `toml:"ollama_model"`
	EspeakBinary       string `toml:"espeak_binary"`
}

// Narration controls script language and voice selection.
type Narration struct {
	Language string `toml:"language"`
	Voice    string `toml:"voice"`
}

// Video controls frame geometry and the compositor binaries.
type Video struct {
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	FPS              int     `toml:"fps"`
	TitleCardSeconds float64 `toml:"title_card_seconds"`
	FFmpegBinary     string  `toml:"ffmpeg_binary"`
	FFprobeBinary    string  `toml:"ffprobe_binary"`
}

// Batch controls chapter scheduling.
type Batch struct {
	MaxWorkers  int `toml:"max_workers"`
	MaxChapters int `toml:"max_chapters"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for mangarecap.
//
// Configuration sections by subsystem:
//   - Paths: run directory and log directory
//   - Cache: artifact cache backend and TTLs
//   - Providers: chain ranks, disabled providers, per-attempt timeout
//   - OpenAI: premium OCR, script and speech API
//   - Local: tesseract, Ollama and espeak-ng
//   - Narration: language and voice
//   - Video: frame size, frame rate, ffmpeg/ffprobe
//   - Batch: worker count and chapter limit
//   - Logging: log format, level and rotation
type Config struct {
	Paths     Paths     `toml:"paths"`
	Cache     Cache     `toml:"cache"`
	Providers Providers `toml:"providers"`
	OpenAI    OpenAI    `toml:"openai"`
	Local     Local     `toml:"local"`
	Narration Narration `toml:"narration"`
	Video     Video     `toml:"video"`
	Batch     Batch     `toml:"batch"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "normalize", "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mangarecap.toml")
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

// EnsureDirectories creates the run and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WithWorkDir returns a copy of the config rooted at dir. The receiver is not modified.
func (c *Config) WithWorkDir(dir string) (*Config, error) {
	expanded, err := expandPath(dir)
	if err != nil {
		return nil, err
	}
	clone := c.Clone()
	clone.Paths.WorkDir = expanded
	return clone, nil
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Providers.Ranks != nil {
		clone.Providers.Ranks = make(map[string]int, len(c.Providers.Ranks))
		for k, v := range c.Providers.Ranks {
			clone.Providers.Ranks[k] = v
		}
	}
	clone.Providers.Disabled = append([]string(nil), c.Providers.Disabled...)
	return &clone
}

// ProviderTimeout returns the per-attempt provider timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

// CacheTTL returns the durable cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ProviderRank returns the configured rank for id, falling back to the built-in default.
func (c *Config) ProviderRank(id string) int {
	if rank, ok := c.Providers.Ranks[id]; ok {
		return rank
	}
	return defaultRanks[id]
}

// ProviderDisabled reports whether id is listed in providers.disabled.
func (c *Config) ProviderDisabled(id string) bool {
	for _, disabled := range c.Providers.Disabled {
		if disabled == id {
			return true
		}
	}
	return false
}

// HasOpenAI reports whether premium providers can be registered.
func (c *Config) HasOpenAI() bool {
	return strings.TrimSpace(c.OpenAI.APIKey) != ""
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

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
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

// Marshal renders the effective configuration as TOML with secrets masked.
func (c *Config) Marshal() ([]byte, error) {
	clone := c.Clone()
	if clone.OpenAI.APIKey != "" {
		clone.OpenAI.APIKey = "***"
	}
	return toml.Marshal(clone)
}
