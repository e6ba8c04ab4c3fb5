package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"mangarecap/internal/config"
	"mangarecap/internal/language"
	"mangarecap/internal/services/llm"
	"mangarecap/internal/services/tesseract"
)

// CheckOpenAI verifies that the premium API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckOpenAI(ctx context.Context, cfg *config.Config) Result {
	const name = "OpenAI API"
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return Result{Name: name, Optional: true, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	}, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Optional: true, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: "API reachable"}
}

// CheckOllama verifies that a local Ollama server answers its tags endpoint.
func CheckOllama(ctx context.Context, baseURL string) Result {
	const name = "Ollama"
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Optional: true, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: summarizeAPIError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: "Reachable"}
}

// CheckTesseractLanguages verifies that tesseract has the traineddata packs
// the OCR provider asks for.
func CheckTesseractLanguages(ctx context.Context, cfg *config.Config, opts ...tesseract.Option) Result {
	const name = "Tesseract languages"
	langs := language.TesseractLanguages(cfg.Local.TesseractLanguages, cfg.Narration.Language)
	client, err := tesseract.New(cfg.Local.TesseractBinary, langs, opts...)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: err.Error()}
	}
	if err := client.Available(); err != nil {
		return Result{Name: name, Optional: true, Detail: "tesseract not installed"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	missing, err := client.MissingLanguages(checkCtx)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: err.Error()}
	}
	if len(missing) > 0 {
		return Result{Name: name, Optional: true, Detail: "missing " + strings.Join(missing, ", ")}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: langs}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %s", detail, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// summarizeAPIError produces a human-readable summary for health check failures.
func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
