package preflight

import (
	"context"

	"mangarecap/internal/config"
	"mangarecap/internal/deps"
)

// MinFreeBytes is the free space the run directory needs for frames,
// narration and videos.
const MinFreeBytes = 1 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// Provider checks only run for providers that are enabled and configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result

	results = append(results, CheckDirectoryAccess("Run directory", cfg.Paths.WorkDir))
	results = append(results, CheckFreeSpace("Run directory free space", cfg.Paths.WorkDir, MinFreeBytes))

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, fromStatus(status))
	}
	results = append(results, fromStatus(deps.CheckFFmpegEncoder(ctx, cfg.Video.FFmpegBinary, deps.RequiredEncoder)))

	if cfg.HasOpenAI() && !cfg.ProviderDisabled(config.ProviderOpenAI) {
		results = append(results, CheckOpenAI(ctx, cfg))
	}
	if cfg.Local.OllamaURL != "" && !cfg.ProviderDisabled(config.ProviderOllama) {
		results = append(results, CheckOllama(ctx, cfg.Local.OllamaURL))
	}
	if !cfg.ProviderDisabled(config.ProviderTesseract) {
		results = append(results, CheckTesseractLanguages(ctx, cfg))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

func fromStatus(status deps.Status) Result {
	detail := status.Detail
	if status.Available {
		detail = status.Path
	}
	return Result{
		Name:     status.Name,
		Passed:   status.Available,
		Optional: status.Optional,
		Detail:   detail,
	}
}
