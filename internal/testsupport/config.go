package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mangarecap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Only the synthetic providers stay enabled so tests never reach the network
// or shell out to real tools unless an option says otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.OpenAI.APIKey = ""
	cfgVal.Local.OllamaURL = ""
	cfgVal.Providers.Disabled = []string{config.ProviderTesseract, config.ProviderEspeak}
	cfgVal.Providers.TimeoutSeconds = 5
	cfgVal.Cache.Backend = "file"
	cfgVal.Batch.MaxWorkers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCacheBackend selects the durable cache backend. An empty value disables caching.
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		if backend == "" {
			b.cfg.Cache.Enabled = false
			return
		}
		b.cfg.Cache.Enabled = true
		b.cfg.Cache.Backend = backend
	}
}

// WithWorkers overrides the batch worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.MaxWorkers = n
	}
}

// WithEnabledProviders re-enables the named providers on the test config.
func WithEnabledProviders(ids ...string) ConfigOption {
	return func(b *configBuilder) {
		keep := b.cfg.Providers.Disabled[:0]
		for _, disabled := range b.cfg.Providers.Disabled {
			enable := false
			for _, id := range ids {
				if id == disabled {
					enable = true
					break
				}
			}
			if !enable {
				keep = append(keep, disabled)
			}
		}
		b.cfg.Providers.Disabled = keep
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default mangarecap external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "tesseract", "espeak-ng"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
