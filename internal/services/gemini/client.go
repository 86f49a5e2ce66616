// Package gemini adapts Google Gemini to the JSON completion interface used
// by the AI identification layer.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"librarian/internal/services"
)

const DefaultModel = "gemma-3-27b-it"

// Config holds the Gemini connection settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
}

// Client issues single-turn JSON completions against Gemini.
type Client struct {
	cfg      Config
	generate func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewClient constructs a client. No network connection is made until the
// first completion.
func NewClient(cfg Config) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	c := &Client{cfg: cfg}
	c.generate = c.generateContent
	return c
}

// WithGenerator replaces the Gemini call (for testing).
func (c *Client) WithGenerator(fn func(ctx context.Context, systemPrompt, userPrompt string) (string, error)) {
	c.generate = fn
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// CompleteJSON sends the prompts and returns the model's text reply.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", errors.New("gemini complete: user prompt required")
	}
	content, err := c.generate(ctx, strings.TrimSpace(systemPrompt), strings.TrimSpace(userPrompt))
	if err != nil {
		return "", classify(err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", services.Wrap(services.ErrTransient, "gemini", "complete", "empty content", nil)
	}
	return content, nil
}

func (c *Client) generateContent(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "gemini", "complete", "GEMINI_API_KEY not set", nil)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.cfg.APIKey))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "gemini", "new client", "", err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(float32(c.cfg.Temperature))
	model.ResponseMIMEType = "application/json"
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", nil
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

// classify maps gRPC status codes onto the service error markers.
func classify(err error) error {
	if errors.Is(err, services.ErrConfiguration) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, "gemini", "complete", "deadline exceeded", err)
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted:
			return services.Wrap(services.ErrRateLimited, "gemini", "complete", "", err)
		case codes.Unavailable, codes.Internal, codes.DeadlineExceeded, codes.Aborted:
			return services.Wrap(services.ErrTransient, "gemini", "complete", "", err)
		}
	}
	return services.Wrap(services.ErrExternalTool, "gemini", "complete", "", err)
}
