package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"mangarecap/internal/services"
)

func sampleRequest(dir string) Request {
	return Request{
		Frames:       []string{filepath.Join(dir, "title.png"), filepath.Join(dir, "p1.png"), filepath.Join(dir, "p2.png")},
		TitleFrames:  1,
		TitleSeconds: 3,
		AudioPath:    filepath.Join(dir, "narration.wav"),
		AudioSeconds: 10,
		Width:        1280,
		Height:       720,
		FPS:          30,
		Output:       filepath.Join(dir, "out", "chapter.mp4"),
	}
}

func TestConcatScriptTiming(t *testing.T) {
	req := sampleRequest("/frames")
	script := ConcatScript(req)
	want := strings.Join([]string{
		"ffconcat version 1.0",
		"file '/frames/title.png'",
		"duration 3.000",
		"file '/frames/p1.png'",
		"duration 5.000",
		"file '/frames/p2.png'",
		"duration 5.000",
		"file '/frames/p2.png'",
		"",
	}, "\n")
	if script != want {
		t.Fatalf("script =\n%s\nwant\n%s", script, want)
	}
	if req.TotalSeconds() != 13 {
		t.Fatalf("TotalSeconds = %v", req.TotalSeconds())
	}
}

func TestPageSecondsHasFloor(t *testing.T) {
	req := sampleRequest("/f")
	req.AudioSeconds = 0.5
	if req.PageSeconds() != MinPageSeconds {
		t.Fatalf("PageSeconds = %v", req.PageSeconds())
	}
}

func TestComposeRunsFFmpeg(t *testing.T) {
	dir := t.TempDir()
	req := sampleRequest(dir)
	var gotName string
	var gotArgs []string
	ff := NewFFmpeg("")
	ff.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	})

	out, err := ff.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if out != req.Output {
		t.Fatalf("output = %s", out)
	}
	if gotName != "ffmpeg" {
		t.Fatalf("binary = %s", gotName)
	}
	if gotArgs[len(gotArgs)-1] != req.Output {
		t.Fatalf("last arg = %s", gotArgs[len(gotArgs)-1])
	}
	if !slices.Contains(gotArgs, "adelay=delays=3000:all=1") {
		t.Fatalf("narration not delayed past title card: %v", gotArgs)
	}
	listPath := filepath.Join(dir, "out", "chapter.concat.txt")
	if _, err := os.Stat(listPath); err != nil {
		t.Fatalf("concat script missing: %v", err)
	}
}

func TestComposeWrapsFailures(t *testing.T) {
	dir := t.TempDir()
	ff := NewFFmpeg("ffmpeg")
	ff.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	})
	_, err := ff.Compose(context.Background(), sampleRequest(dir))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	bad := sampleRequest(dir)
	bad.Frames = nil
	if _, err := ff.Compose(context.Background(), bad); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
