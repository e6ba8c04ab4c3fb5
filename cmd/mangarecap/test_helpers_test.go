package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mangarecap/internal/pipeline"
	"mangarecap/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	workDir    string
	mangaDir   string
	configPath string
	compositor *testsupport.FakeCompositor
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("MMR_LANG", "")
	t.Setenv("LOG_LEVEL", "")

	env := &cliTestEnv{
		baseDir:    base,
		workDir:    filepath.Join(base, "work"),
		mangaDir:   filepath.Join(base, "manga"),
		configPath: filepath.Join(homeDir, ".config", "mangarecap", "config.toml"),
		compositor: &testsupport.FakeCompositor{},
	}
	writeTestConfig(t, env)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
work_dir = %q
log_dir = %q

[cache]
enabled = true
backend = "file"

[providers]
disabled = ["tesseract", "espeak"]
timeout_seconds = 5

[video]
width = 320
height = 180
title_card_seconds = 1

[batch]
max_workers = 2

[logging]
level = "error"
`, env.workDir, filepath.Join(env.baseDir, "logs"))
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// pipelineOptions swaps the ffmpeg collaborators for fakes.
func (env *cliTestEnv) pipelineOptions() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithCompositor(env.compositor),
		pipeline.WithProber(testsupport.FakeProber{Width: 320, Height: 180, Seconds: 600}),
	}
}

func runCLI(t *testing.T, args []string, configPath string, opts ...pipeline.Option) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(opts...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
