package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"mangarecap/internal/media/audio"
)

const (
	// MaxInputChars is the longest text sent in one request.
	MaxInputChars       = 4000
	defaultTimeout      = 120 * time.Second
	defaultRetryCount   = 2
	defaultRetryWait    = time.Second
	defaultRetryMaxWait = 10 * time.Second
)

// Config captures the runtime settings of the speech endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Voice          string
	TimeoutSeconds int
	RetryCount     int
}

// Client renders narration through the speech endpoint.
type Client struct {
	cfg  Config
	http *resty.Client
}

// NewClient constructs a speech client.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	retries := defaultRetryCount
	if cfg.RetryCount > 0 {
		retries = cfg.RetryCount
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(timeout)
	client.SetRetryCount(retries)
	client.SetRetryWaitTime(defaultRetryWait)
	client.SetRetryMaxWaitTime(defaultRetryMaxWait)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Client{cfg: cfg, http: client}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize renders text with voice (or the configured voice) and returns WAV bytes.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("speech: text required")
	}
	if strings.TrimSpace(voice) == "" {
		voice = c.cfg.Voice
	}
	chunks := SplitText(text, MaxInputChars)
	parts := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		data, err := c.synthesizeChunk(ctx, chunk, voice)
		if err != nil {
			return nil, fmt.Errorf("speech chunk %d/%d: %w", i+1, len(chunks), err)
		}
		parts = append(parts, data)
	}
	return audio.Concat(parts)
}

func (c *Client) synthesizeChunk(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/wav").
		SetBody(speechRequest{
			Model:          c.cfg.Model,
			Input:          text,
			Voice:          voice,
			ResponseFormat: "wav",
		}).
		Post("/audio/speech")
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("speech request: http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	data := resp.Bytes()
	if !audio.IsWAV(data) {
		return nil, fmt.Errorf("speech request: response is not wav (%d bytes)", len(data))
	}
	return data, nil
}

// SplitText breaks text into pieces of at most limit bytes, preferring
// sentence ends, then whitespace.
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexAny(text[:limit], ".!?\n")
		if cut <= 0 {
			cut = strings.LastIndexAny(text[:limit], " \t")
		}
		if cut <= 0 {
			cut = limit - 1
			for cut > 0 && !isRuneStart(text[cut+1]) {
				cut--
			}
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut+1]))
		text = strings.TrimSpace(text[cut+1:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
