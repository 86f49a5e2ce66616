package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"librarian/internal/config"
	"librarian/internal/services/llm"
)

const (
	llmCheckTimeout      = 30 * time.Second
	endpointCheckTimeout = 5 * time.Second
)

func pass(name, format string, args ...any) Result {
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Detail: fmt.Sprintf(format, args...)}
}

// CheckDirectoryAccess passes when path is a directory the process can
// list, enter and write.
func CheckDirectoryAccess(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return fail(name, "not configured")
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail(name, "%s does not exist", path)
	case err != nil:
		return fail(name, "%s: %v", path, err)
	case !info.IsDir():
		return fail(name, "%s is not a directory", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail(name, "%s: insufficient permissions (%v)", path, err)
	}
	return pass(name, "%s (read/write ok)", path)
}

// CheckEndpoint passes when a metadata provider answers HTTP at all. Search
// endpoints reject bare requests, so only 5xx and transport errors fail.
func CheckEndpoint(ctx context.Context, name, url string) Result {
	url = strings.TrimSpace(url)
	if url == "" {
		return fail(name, "missing url")
	}
	ctx, cancel := context.WithTimeout(ctx, endpointCheckTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(name, "bad url (%v)", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fail(name, "unreachable (%v)", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fail(name, "server error (%d)", resp.StatusCode)
	}
	return pass(name, "Reachable")
}

// CheckLLM sends one health-check completion to the chat-completion API.
// Ollama needs no key; the hosted providers do.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	local := cfg.Provider == config.ProviderOllama
	if cfg.APIKey == "" && !local {
		return fail(name, "API key missing")
	}
	ctx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()
	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
		Local:   local,
	}, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(ctx); err != nil {
		return fail(name, "%s", describeLLMFailure(err))
	}
	return pass(name, "API reachable")
}

// CheckGemini validates the Gemini settings offline; a live call would
// spend quota.
func CheckGemini(cfg config.LLMConfig) Result {
	const name = "Gemini"
	if cfg.APIKey == "" {
		return fail(name, "API key missing")
	}
	if cfg.Model == "" {
		return fail(name, "model missing")
	}
	return pass(name, "configured (%s)", cfg.Model)
}

func describeLLMFailure(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "health check timed out (LLM API unresponsive)"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "health check timed out (LLM API unreachable)"
	default:
		return err.Error()
	}
}
