package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mangarecap/internal/services"
)

const sampleProbe = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "44100", "channels": 2}
  ],
  "format": {"filename": "out.mp4", "nb_streams": 2, "duration": "12.480000", "size": "1000", "format_name": "mov,mp4"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected stream counts: %+v", result.Streams)
	}
	if w, h := result.VideoSize(); w != 1280 || h != 720 {
		t.Fatalf("VideoSize = %dx%d", w, h)
	}
	if result.DurationSeconds() != 12.48 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestValidate(t *testing.T) {
	good, err := Parse([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := good.Validate(Expectation{Width: 1280, Height: 720, MinDuration: 12}); err != nil {
		t.Fatalf("expected valid video, got %v", err)
	}

	tests := []struct {
		name   string
		result Result
		want   Expectation
		reason string
	}{
		{"no audio", Result{Streams: good.Streams[:1], Format: good.Format}, Expectation{}, "no audio stream"},
		{"wrong size", good, Expectation{Width: 640, Height: 360}, "want 640x360"},
		{"too short", good, Expectation{MinDuration: 30}, "shorter than narration"},
		{"no duration", Result{Streams: good.Streams}, Expectation{}, "missing duration"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.result.Validate(tc.want)
			if err == nil || !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.reason) {
				t.Fatalf("error %q missing %q", err, tc.reason)
			}
		})
	}
}

func TestInspectUsesBinary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fakeprobe")
	body := "#!/bin/sh\ncat <<'JSON'\n" + sampleProbe + "\nJSON\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	seconds, err := Duration(context.Background(), script, "/tmp/anything.wav")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if seconds != 12.48 {
		t.Fatalf("Duration = %v", seconds)
	}
}

func TestInspectFailureIsExternalToolError(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "failprobe")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	_, err := Inspect(context.Background(), script, "/tmp/x.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := Inspect(context.Background(), script, "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty path, got %v", err)
	}
}
