package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mangarecap/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[0].Path != present || results[1].Path != "" {
		t.Fatalf("unexpected resolved paths: %q %q", results[0].Path, results[1].Path)
	}

	if unset := Check(Requirement{Name: "Blank", Command: "  "}); unset.Available || unset.Detail != "command not configured" {
		t.Fatalf("blank command = %+v", unset)
	}
}

func TestRequirementsFollowDisabledProviders(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Disabled = []string{config.ProviderEspeak}

	reqs := Requirements(&cfg)
	names := map[string]Requirement{}
	for _, req := range reqs {
		names[req.Name] = req
	}
	if names["FFmpeg"].Optional || names["FFprobe"].Optional {
		t.Fatalf("ffmpeg and ffprobe must be required: %+v", reqs)
	}
	if req, ok := names["Tesseract"]; !ok || !req.Optional {
		t.Fatalf("tesseract requirement = %+v", req)
	}
	if _, ok := names["espeak-ng"]; ok {
		t.Fatal("disabled espeak should not be required")
	}
}

func TestCheckFFmpegEncoder(t *testing.T) {
	dir := t.TempDir()
	listing := "Encoders:\n V..... = Video\n ------\n V....D libx264              libx264 H.264\n A....D aac                  AAC\n"
	withX264 := filepath.Join(dir, "ffmpeg-full")
	script := "#!/bin/sh\nprintf '" + listing + "'\n"
	if err := os.WriteFile(withX264, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	bare := filepath.Join(dir, "ffmpeg-bare")
	if err := os.WriteFile(bare, []byte("#!/bin/sh\nprintf 'Encoders:\\n A....D aac AAC\\n'\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if status := CheckFFmpegEncoder(context.Background(), withX264, RequiredEncoder); !status.Available {
		t.Fatalf("expected libx264, got %q", status.Detail)
	}
	status := CheckFFmpegEncoder(context.Background(), bare, RequiredEncoder)
	if status.Available || status.Detail == "" {
		t.Fatalf("expected missing encoder, got %+v", status)
	}
	if missing := CheckFFmpegEncoder(context.Background(), filepath.Join(dir, "nope"), RequiredEncoder); missing.Available {
		t.Fatal("missing binary reported available")
	}
}
