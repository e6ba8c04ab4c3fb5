package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"mangarecap/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithPageSegMode overrides the page segmentation mode (default 6, a
// uniform block of text, which suits speech bubbles).
func WithPageSegMode(psm int) Option {
	return func(c *Client) {
		c.psm = psm
	}
}

// Client wraps tesseract CLI interactions.
type Client struct {
	binary    string
	languages string
	psm       int
	exec      Executor
	lookPath  func(string) (string, error)
}

// New constructs a tesseract client. languages uses tesseract's "eng+por" form.
func New(binary, languages string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("tesseract binary required")
	}
	client := &Client{
		binary:    binary,
		languages: strings.TrimSpace(languages),
		psm:       6,
		exec:      commandExecutor{},
		lookPath:  exec.LookPath,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Languages returns the configured language set.
func (c *Client) Languages() string {
	return c.languages
}

// Available reports whether the binary can be found.
func (c *Client) Available() error {
	if _, err := c.lookPath(c.binary); err != nil {
		return services.Unavailable("tesseract", fmt.Sprintf("%q not found on PATH", c.binary), err)
	}
	return nil
}

// Recognize runs OCR over an encoded image and returns the recognized text.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("tesseract: empty image")
	}
	args := []string{"stdin", "stdout", "--psm", fmt.Sprint(c.psm)}
	if c.languages != "" {
		args = append(args, "-l", c.languages)
	}
	out, err := c.exec.Run(ctx, c.binary, args, image)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "tesseract", "recognize", "", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// InstalledLanguages lists the traineddata packs tesseract reports.
func (c *Client) InstalledLanguages(ctx context.Context) ([]string, error) {
	out, err := c.exec.Run(ctx, c.binary, []string{"--list-langs"}, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "tesseract", "list languages", "", err)
	}
	var langs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "list of") {
			continue
		}
		langs = append(langs, line)
	}
	return langs, nil
}

// MissingLanguages returns the configured languages not installed.
func (c *Client) MissingLanguages(ctx context.Context) ([]string, error) {
	installed, err := c.InstalledLanguages(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]struct{}, len(installed))
	for _, lang := range installed {
		have[lang] = struct{}{}
	}
	var missing []string
	for _, lang := range strings.Split(c.languages, "+") {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		if _, ok := have[lang]; !ok {
			missing = append(missing, lang)
		}
	}
	return missing, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
