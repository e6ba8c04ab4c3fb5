package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mangarecap/internal/config"
	"mangarecap/internal/services"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "OPENAI_VISION_MODEL",
		"OPENAI_TTS_MODEL", "OPENAI_TTS_VOICE", "MMR_LANG", "LOG_LEVEL", "OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

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

	wantWork := filepath.Join(tempHome, ".local", "share", "mangarecap", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Cache.TTLSeconds != 3600 {
		t.Fatalf("expected default cache ttl 3600, got %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Providers.TimeoutSeconds != 120 {
		t.Fatalf("expected default provider timeout 120, got %d", cfg.Providers.TimeoutSeconds)
	}
	if cfg.Batch.MaxWorkers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Batch.MaxWorkers)
	}
	if cfg.Narration.Language != "pt" {
		t.Fatalf("expected pt narration, got %q", cfg.Narration.Language)
	}
	if cfg.HasOpenAI() {
		t.Fatal("expected premium providers disabled without api key")
	}
	if cfg.Local.OllamaURL != "" {
		t.Fatalf("expected ollama disabled by default, got %q", cfg.Local.OllamaURL)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[paths]
work_dir = "` + filepath.Join(dir, "work") + `"

[cache]
backend = "SQLite"
ttl_seconds = 60

[providers]
ranks = { synthetic = 5, OpenAI = 50 }
disabled = ["ollama", "ollama"]

[video]
width = 640
height = 360

[batch]
max_workers = 2
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Fatalf("expected lowercased backend, got %q", cfg.Cache.Backend)
	}
	if cfg.CacheTTL().Seconds() != 60 {
		t.Fatalf("unexpected cache ttl %v", cfg.CacheTTL())
	}
	if cfg.ProviderRank(config.ProviderSynthetic) != 5 || cfg.ProviderRank(config.ProviderOpenAI) != 50 {
		t.Fatalf("unexpected ranks %v", cfg.Providers.Ranks)
	}
	if cfg.ProviderRank(config.ProviderTesseract) != 20 {
		t.Fatalf("expected default tesseract rank, got %d", cfg.ProviderRank(config.ProviderTesseract))
	}
	if len(cfg.Providers.Disabled) != 1 || !cfg.ProviderDisabled(config.ProviderOllama) {
		t.Fatalf("unexpected disabled list %v", cfg.Providers.Disabled)
	}
	if cfg.Video.Width != 640 || cfg.Video.Height != 360 || cfg.Video.FPS != 30 {
		t.Fatalf("unexpected video config %+v", cfg.Video)
	}
	if cfg.Batch.MaxWorkers != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.Batch.MaxWorkers)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[openai]
model = "file-model"

[narration]
language = "en"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_MODEL", "env-model")
	t.Setenv("MMR_LANG", "ES")
	t.Setenv("OLLAMA_HOST", "127.0.0.1:11434")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.OpenAI.APIKey != "env-key" || !cfg.HasOpenAI() {
		t.Errorf("expected api key from env, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "env-model" {
		t.Errorf("expected model from env, got %q", cfg.OpenAI.Model)
	}
	if cfg.Narration.Language != "es" {
		t.Errorf("expected language from env, got %q", cfg.Narration.Language)
	}
	if cfg.Local.OllamaURL != "http://127.0.0.1:11434" {
		t.Errorf("expected ollama url with scheme, got %q", cfg.Local.OllamaURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level from env, got %q", cfg.Logging.Level)
	}
}

func TestLoadInvalidConfigIsConfigurationError(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[cache]\nbackend = \"redis\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}

	if err := os.WriteFile(configPath, []byte("not = [valid"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker for parse error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.WorkDir, "mangarecap") {
		t.Fatalf("expected work dir to contain mangarecap, got %q", cfg.Paths.WorkDir)
	}
	if cfg.Cache.TTLSeconds != 3600 || cfg.Batch.MaxWorkers != 4 {
		t.Fatalf("sample drifted from defaults: %+v %+v", cfg.Cache, cfg.Batch)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown backend", func(c *config.Config) { c.Cache.Backend = "redis" }},
		{"negative ttl", func(c *config.Config) { c.Cache.TTLSeconds = -1 }},
		{"unknown rank provider", func(c *config.Config) { c.Providers.Ranks = map[string]int{"mystery": 1} }},
		{"negative rank", func(c *config.Config) { c.Providers.Ranks = map[string]int{"synthetic": -1} }},
		{"unknown disabled provider", func(c *config.Config) { c.Providers.Disabled = []string{"mystery"} }},
		{"odd width", func(c *config.Config) { c.Video.Width = 641 }},
		{"zero fps", func(c *config.Config) { c.Video.FPS = 0 }},
		{"zero workers", func(c *config.Config) { c.Batch.MaxWorkers = 0 }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestWithWorkDirDoesNotMutate(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Ranks = map[string]int{"synthetic": 1}
	dir := t.TempDir()

	clone, err := cfg.WithWorkDir(dir)
	if err != nil {
		t.Fatalf("WithWorkDir: %v", err)
	}
	if clone.Paths.WorkDir != dir {
		t.Fatalf("expected %q, got %q", dir, clone.Paths.WorkDir)
	}
	if cfg.Paths.WorkDir == dir {
		t.Fatal("original config mutated")
	}
	clone.Providers.Ranks["synthetic"] = 9
	if cfg.Providers.Ranks["synthetic"] != 1 {
		t.Fatal("rank map shared between clone and original")
	}
}

func TestMarshalMasksAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-secret"
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Fatalf("api key leaked: %s", data)
	}
}
