package compose

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"mangarecap/internal/services"
)

// MinPageSeconds is the shortest time a page stays on screen.
const MinPageSeconds = 1.0

// Request describes one chapter render.
type Request struct {
	Frames       []string
	TitleFrames  int
	TitleSeconds float64
	AudioPath    string
	AudioSeconds float64
	Width        int
	Height       int
	FPS          int
	Output       string
}

// Compositor renders a chapter video and returns the written path.
type Compositor interface {
	Compose(ctx context.Context, req Request) (string, error)
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// FFmpeg composes videos with the ffmpeg binary.
type FFmpeg struct {
	binary string
	runner CommandRunner
}

// NewFFmpeg returns a compositor using binary (default "ffmpeg").
func NewFFmpeg(binary string) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, runner: runCommand}
}

// WithCommandRunner sets a custom command runner (for testing).
func (f *FFmpeg) WithCommandRunner(runner CommandRunner) {
	f.runner = runner
}

// Compose writes the concat script next to the output and runs ffmpeg.
func (f *FFmpeg) Compose(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	listPath := strings.TrimSuffix(req.Output, filepath.Ext(req.Output)) + ".concat.txt"
	if err := os.WriteFile(listPath, []byte(ConcatScript(req)), 0o644); err != nil {
		return "", fmt.Errorf("write concat script: %w", err)
	}
	if err := f.runner(ctx, f.binary, Args(req, listPath)...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "compose", "ffmpeg", filepath.Base(req.Output), err)
	}
	return req.Output, nil
}

func (r Request) validate() error {
	var problems []string
	if len(r.Frames) == 0 {
		problems = append(problems, "no frames")
	}
	if r.TitleFrames < 0 || r.TitleFrames > len(r.Frames) {
		problems = append(problems, "title frame count out of range")
	}
	if strings.TrimSpace(r.AudioPath) == "" {
		problems = append(problems, "no audio")
	}
	if r.Width <= 0 || r.Height <= 0 || r.FPS <= 0 {
		problems = append(problems, "invalid video geometry")
	}
	if strings.TrimSpace(r.Output) == "" {
		problems = append(problems, "no output path")
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "compose", "request", strings.Join(problems, "; "), nil)
}

// PageSeconds returns how long each non-title frame is shown.
func (r Request) PageSeconds() float64 {
	pages := len(r.Frames) - r.TitleFrames
	if pages <= 0 {
		return 0
	}
	return math.Max(MinPageSeconds, r.AudioSeconds/float64(pages))
}

// TotalSeconds is the rendered video length.
func (r Request) TotalSeconds() float64 {
	return r.titleSeconds()*float64(r.TitleFrames) + r.PageSeconds()*float64(len(r.Frames)-r.TitleFrames)
}

func (r Request) titleSeconds() float64 {
	if r.TitleFrames == 0 {
		return 0
	}
	return math.Max(0, r.TitleSeconds)
}

// ConcatScript renders the ffmpeg concat demuxer input for req.
func ConcatScript(req Request) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	page := req.PageSeconds()
	for i, frame := range req.Frames {
		seconds := page
		if i < req.TitleFrames {
			seconds = req.titleSeconds()
		}
		fmt.Fprintf(&b, "file '%s'\nduration %s\n", escapeConcatPath(frame), formatSeconds(seconds))
	}
	// The concat demuxer ignores the last duration unless the file repeats.
	fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(req.Frames[len(req.Frames)-1]))
	return b.String()
}

// Args builds the ffmpeg argument list for req reading frames from listPath.
func Args(req Request, listPath string) []string {
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,fps=%d,format=yuv420p",
		req.Width, req.Height, req.Width, req.Height, req.FPS)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", req.AudioPath,
		"-vf", filter,
	}
	if delay := req.titleSeconds() * float64(req.TitleFrames); delay > 0 {
		args = append(args, "-af", fmt.Sprintf("adelay=delays=%d:all=1", int(math.Round(delay*1000))))
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		req.Output,
	)
	return args
}

func escapeConcatPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return strings.ReplaceAll(path, "'", `'\''`)
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
