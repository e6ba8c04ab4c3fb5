package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
	defaultBaseURL        = "https://api.openai.com/v1"
	snippetLimit          = 160
)

// Config captures the runtime settings required to talk to an OpenAI
// compatible chat endpoint. APIKey may be empty for local servers.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	VisionModel    string
	Temperature    float64
	TimeoutSeconds int
}

// Client wraps the chat completion API.
type Client struct {
	cfg  Config
	http *resty.Client

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleeper   func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryMaxAttempts overrides the number of attempts per request (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.attempts = attempts }
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.sleeper = sleeper }
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.VisionModel = strings.TrimSpace(cfg.VisionModel)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	client := &Client{
		cfg:       cfg,
		http:      httpClient,
		attempts:  defaultRetryAttempts,
		baseDelay: defaultRetryBaseDelay,
		maxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

type statusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, e.Body)
}

type emptyReplyError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

// Complete issues a chat completion with the supplied prompts and returns the
// reply text with any surrounding code fence removed.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", errors.New("llm complete: user prompt required")
	}
	if c.cfg.Model == "" {
		return "", errors.New("llm complete: model required")
	}
	var messages []chatMessage
	if system := strings.TrimSpace(systemPrompt); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})
	return c.chat(ctx, "llm complete", chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
	})
}

// DescribeImage sends a PNG image with an instruction to the vision model and
// returns the reply text.
func (c *Client) DescribeImage(ctx context.Context, instruction string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", errors.New("llm vision: image required")
	}
	if c.cfg.VisionModel == "" {
		return "", errors.New("llm vision: model required")
	}
	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return c.chat(ctx, "llm vision", chatRequest{
		Model: c.cfg.VisionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: strings.TrimSpace(instruction)},
				{Type: "image_url", ImageURL: &imageURL{URL: image}},
			},
		}},
	})
}

// HealthCheck lists the server's models to verify the endpoint and key.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/models")
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return &statusError{StatusCode: resp.StatusCode(), Body: snippet(resp.String())}
	}
	return nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

// chatMessage content is either a string or a list of contentPart.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message replyMessage `json:"message"`
		// Some servers answer with the streaming schema or the legacy
		// completion text even when stream=false.
		Delta        replyMessage `json:"delta"`
		Text         string       `json:"text"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type replyMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// reply returns the first non-empty content with the first finish reason
// and refusal seen.
func (r chatResponse) reply() (content, finishReason, refusal string) {
	for _, choice := range r.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if content = firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, finishReason, refusal
		}
	}
	return "", finishReason, refusal
}

func (c *Client) chat(ctx context.Context, op string, payload chatRequest) (string, error) {
	attempts := max(c.attempts, 1)
	var err error
	attempt := 1
	for ; ; attempt++ {
		var content string
		content, err = c.chatOnce(ctx, op, payload)
		if err == nil {
			return stripCodeFence(content), nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry || attempt == attempts {
			break
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}
	if attempt > 1 {
		return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
	}
	return "", err
}

func (c *Client) chatOnce(ctx context.Context, op string, payload chatRequest) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header().Get("Retry-After"))
		return "", &statusError{StatusCode: resp.StatusCode(), Body: snippet(resp.String()), RetryAfter: retryAfter}
	}
	var completion chatResponse
	if err := json.Unmarshal(resp.Bytes(), &completion); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
	}
	content, finishReason, refusal := completion.reply()
	if content != "" {
		return content, nil
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", op)
	}
	return "", &emptyReplyError{Op: op, FinishReason: finishReason, Refusal: refusal, Snippet: snippet(resp.String())}
}

// retryDelay decides whether err is worth another attempt. Rate limits,
// server errors, timeouts and empty replies are retried.
func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var empty *emptyReplyError
	if errors.As(err, &empty) {
		return c.backoff(attempt), true
	}
	var status *statusError
	if errors.As(err, &status) {
		code := status.StatusCode
		if code != http.StatusRequestTimeout && code != http.StatusTooManyRequests && code < http.StatusInternalServerError {
			return 0, false
		}
		if status.RetryAfter > 0 {
			return min(status.RetryAfter, c.maxDelay), true
		}
		return c.backoff(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles baseDelay per attempt up to maxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}
	delay := c.baseDelay
	for i := 1; i < attempt && delay < c.maxDelay; i++ {
		delay *= 2
	}
	if c.maxDelay > 0 {
		delay = min(delay, c.maxDelay)
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// stripCodeFence removes a surrounding ``` block, including a json tag.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	body, ok := strings.CutPrefix(trimmed, "```")
	if !ok {
		return trimmed
	}
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// snippet flattens a response body for error messages.
func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetLimit {
		clean = string(runes[:snippetLimit]) + "..."
	}
	return clean
}
