package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"mangarecap/internal/config"
)

// RequiredEncoder is the video encoder the compositor passes to ffmpeg.
const RequiredEncoder = "libx264"

// Requirements lists the external tools for cfg. ffmpeg and ffprobe are
// required; the OCR and speech engines are optional because every chain ends
// in a built-in fallback.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     binaryOr(cfg.Video.FFmpegBinary, "ffmpeg"),
			Description: "Required for composing chapter videos",
		},
		{
			Name:        "FFprobe",
			Command:     binaryOr(cfg.Video.FFprobeBinary, "ffprobe"),
			Description: "Required for validating audio and video",
		},
	}
	if !cfg.ProviderDisabled(config.ProviderTesseract) {
		reqs = append(reqs, Requirement{
			Name:        "Tesseract",
			Command:     binaryOr(cfg.Local.TesseractBinary, "tesseract"),
			Description: "Local OCR provider",
			Optional:    true,
		})
	}
	if !cfg.ProviderDisabled(config.ProviderEspeak) {
		reqs = append(reqs, Requirement{
			Name:        "espeak-ng",
			Command:     binaryOr(cfg.Local.EspeakBinary, "espeak-ng"),
			Description: "Local speech provider",
			Optional:    true,
		})
	}
	return reqs
}

// CheckFFmpegEncoder reports whether the ffmpeg binary lists encoder.
func CheckFFmpegEncoder(ctx context.Context, binary, encoder string) Status {
	binary = binaryOr(binary, "ffmpeg")
	result := Status{Requirement: Requirement{
		Name:        "FFmpeg " + encoder,
		Command:     binary,
		Description: "Video encoder used for chapter videos",
	}}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Path = resolved

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	output, err := exec.CommandContext(checkCtx, resolved, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	if !hasEncoder(string(output), encoder) {
		result.Detail = fmt.Sprintf("encoder %s not compiled in", encoder)
		return result
	}
	result.Available = true
	return result
}

func hasEncoder(listing, encoder string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}

func binaryOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
