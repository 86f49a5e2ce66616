package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"librarian/internal/services"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 15 * time.Second
	defaultAttempts    = 4
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 10 * time.Second
	maxResponseBytes   = 4 << 20
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	// Local marks self-hosted endpoints (Ollama) that accept requests
	// without an API key.
	Local bool
}

// Client wraps an OpenAI-compatible chat completion API (OpenRouter or a
// local Ollama server).
type Client struct {
	cfg        Config
	httpClient *http.Client

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	notify    func(error, time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets how many requests one completion may take.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.attempts = attempts
	}
}

// WithRetryBackoff overrides the exponential backoff bounds. A zero base
// retries immediately.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithRetryNotify registers fn to observe each failed attempt and the wait
// before the next one.
func WithRetryNotify(fn func(error, time.Duration)) Option {
	return func(c *Client) {
		c.notify = fn
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultAttempts,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

func (c *Client) hasCredentials() bool {
	return c.cfg.Local || c.cfg.APIKey != ""
}

// CompleteJSON issues a JSON-only chat completion and returns the raw
// payload the model produced.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "system and user prompts are required", nil)
	}
	if !c.hasCredentials() {
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "api key required", nil)
	}
	return c.complete(ctx, "complete", systemPrompt, userPrompt)
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.hasCredentials() {
		return services.Wrap(services.ErrConfiguration, "llm", "health", "api key required", nil)
	}
	content, err := c.complete(ctx, "health", "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		// Ollama and some OpenRouter upstreams send the streaming shape
		// even when stream is false.
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r chatResponse) content() (content, finish, refusal string) {
	for _, choice := range r.Choices {
		if finish == "" {
			finish = choice.FinishReason
		}
		if refusal == "" {
			refusal = choice.Message.Refusal
		}
		for _, v := range []string{choice.Message.Content, choice.Delta.Content} {
			if v = strings.TrimSpace(v); v != "" {
				return v, choice.FinishReason, ""
			}
		}
	}
	return "", finish, refusal
}

// retryAfter carries a server-requested wait out of a failed attempt.
type retryAfter struct {
	err  error
	wait time.Duration
}

func (e *retryAfter) Error() string { return e.err.Error() }
func (e *retryAfter) Unwrap() error { return e.err }

// hintedBackOff honours Retry-After, capped at the maximum delay, before
// falling back to exponential growth.
type hintedBackOff struct {
	backoff.BackOff
	hint *time.Duration
	max  time.Duration
}

func (b hintedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop || *b.hint <= 0 {
		return next
	}
	wait := min(*b.hint, b.max)
	*b.hint = 0
	return wait
}

func (c *Client) newBackOff(hint *time.Duration) backoff.BackOff {
	var base backoff.BackOff = &backoff.ZeroBackOff{}
	if c.baseDelay > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.baseDelay
		exp.MaxInterval = max(c.maxDelay, c.baseDelay)
		exp.MaxElapsedTime = 0
		base = exp
	}
	retries := max(c.attempts, 1) - 1
	return hintedBackOff{BackOff: backoff.WithMaxRetries(base, uint64(retries)), hint: hint, max: c.maxDelay}
}

func (c *Client) complete(ctx context.Context, op, systemPrompt, userPrompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("llm %s: encode body: %w", op, err)
	}

	var hint time.Duration
	var content string
	attempt := func() error {
		resp, body, err := c.send(ctx, payload)
		if err != nil {
			var ra *retryAfter
			if errors.As(err, &ra) {
				hint = ra.wait
			}
			return err
		}
		text, finish, refusal := resp.content()
		if text == "" {
			return services.Wrap(services.ErrTransient, "llm", op,
				fmt.Sprintf("empty content (finish_reason=%q refusal=%q body=%s)", finish, refusal, snippet(string(body))), nil)
		}
		content = text
		return nil
	}
	notify := func(err error, wait time.Duration) {
		if c.notify != nil {
			c.notify(err, wait)
		}
	}
	if err := backoff.RetryNotify(attempt, backoff.WithContext(c.newBackOff(&hint), ctx), notify); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("llm %s: %w", op, err)
	}
	return content, nil
}

// send performs one request. Errors that a retry cannot fix are permanent.
func (c *Client) send(ctx context.Context, payload []byte) (chatResponse, []byte, error) {
	var out chatResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return out, nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return out, nil, backoff.Permanent(ctx.Err())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return out, nil, services.Wrap(services.ErrTransient, "llm", "request", fmt.Sprintf("timeout after %s", c.httpClient.Timeout), err)
		}
		return out, nil, backoff.Permanent(services.Wrap(services.ErrTransient, "llm", "request", "", err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return out, nil, services.Wrap(services.ErrTransient, "llm", "read body", "", err)
	}

	status := fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(string(body)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return out, body, &retryAfter{
			err:  services.Wrap(services.ErrRateLimited, "llm", "request", status, nil),
			wait: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= http.StatusInternalServerError:
		return out, body, &retryAfter{
			err:  services.Wrap(services.ErrTransient, "llm", "request", status, nil),
			wait: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= http.StatusMultipleChoices:
		return out, body, backoff.Permanent(services.Wrap(services.ErrExternalTool, "llm", "request", status, nil))
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, body, backoff.Permanent(services.Wrap(services.ErrExternalTool, "llm", "decode", snippet(string(body)), err))
	}
	if out.Error != nil {
		return out, body, backoff.Permanent(services.Wrap(services.ErrExternalTool, "llm", "request", strings.TrimSpace(out.Error.Message), nil))
	}
	return out, body, nil
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}

// DecodeLLMJSON decodes a model reply into target. Replies wrapped in code
// fences or surrounded by prose are reduced to their outermost JSON value.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(trimmed), target)
	if err == nil {
		return nil
	}
	extracted := extractJSON(trimmed)
	if extracted == "" || extracted == trimmed {
		return fmt.Errorf("%w (payload: %s)", err, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w (extracted payload: %s)", err, snippet(extracted))
	}
	return nil
}

func extractJSON(content string) string {
	body := strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(body, "```"); ok {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
			rest = rest[4:]
		}
		if i := strings.LastIndex(rest, "```"); i >= 0 {
			rest = rest[:i]
		}
		body = strings.TrimSpace(rest)
	}
	if body == "" || body[0] == '{' || body[0] == '[' {
		return body
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(body, pair[0])
		end := strings.LastIndex(body, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(body[start : end+1])
		}
	}
	return body
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
