package espeak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"mangarecap/internal/media/audio"
	"mangarecap/internal/services"
)

const defaultWordsPerMinute = 160

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

// WithSpeed sets the speaking rate in words per minute.
func WithSpeed(wpm int) Option {
	return func(c *Client) {
		if wpm > 0 {
			c.wpm = wpm
		}
	}
}

// Client wraps espeak-ng CLI interactions.
type Client struct {
	binary   string
	wpm      int
	exec     Executor
	lookPath func(string) (string, error)
}

// New constructs an espeak-ng client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("espeak binary required")
	}
	client := &Client{
		binary:   binary,
		wpm:      defaultWordsPerMinute,
		exec:     commandExecutor{},
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Available reports whether the binary can be found.
func (c *Client) Available() error {
	if _, err := c.lookPath(c.binary); err != nil {
		return services.Unavailable("espeak", fmt.Sprintf("%q not found on PATH", c.binary), err)
	}
	return nil
}

// Synthesize speaks text with voice (an espeak voice name such as "pt" or
// "en-us") and returns WAV bytes.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("espeak: text required")
	}
	args := []string{"--stdin", "--stdout", "-s", strconv.Itoa(c.wpm)}
	if voice = strings.TrimSpace(voice); voice != "" {
		args = append(args, "-v", voice)
	}
	out, err := c.exec.Run(ctx, c.binary, args, []byte(text))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "espeak", "synthesize", "", err)
	}
	if !audio.IsWAV(out) {
		return nil, services.Wrap(services.ErrExternalTool, "espeak", "synthesize", fmt.Sprintf("output is not wav (%d bytes)", len(out)), nil)
	}
	return out, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
