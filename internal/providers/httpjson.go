package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"librarian/internal/services"
)

const maxResponseBytes = 4 << 20

// errNoMatch marks a 404 from a provider, which is an answer, not a failure.
var errNoMatch = errors.New("no match")

// httpJSON performs GET requests that decode JSON, retrying transient
// failures with exponential backoff. Rate-limit responses are not retried
// so the provider breaker can trip on them.
type httpJSON struct {
	provider   string
	client     *http.Client
	newBackOff func() backoff.BackOff
}

func newHTTPJSON(provider string, timeout time.Duration) *httpJSON {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpJSON{
		provider: provider,
		client:   &http.Client{Timeout: timeout},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 20 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

func (h *httpJSON) get(ctx context.Context, endpoint string, headers map[string]string, target any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: build request: %w", h.provider, err))
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return services.Wrap(services.ErrTransient, h.provider, "request", "", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return services.Wrap(services.ErrTransient, h.provider, "read body", "", err)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(errNoMatch)
		case resp.StatusCode == http.StatusTooManyRequests:
			return backoff.Permanent(services.Wrap(services.ErrRateLimited, h.provider, "request", resp.Status, nil))
		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, h.provider, "request", resp.Status, nil)
		case resp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(services.Wrap(services.ErrExternalTool, h.provider, "request", resp.Status, nil))
		}
		if err := json.Unmarshal(body, target); err != nil {
			return backoff.Permanent(services.Wrap(services.ErrExternalTool, h.provider, "decode", "", err))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(h.newBackOff(), ctx))
}
