// Package llm provides an OpenAI-compatible chat client used by the AI
// identification layer.
//
// The same client talks to OpenRouter and to a local Ollama server; only
// the base URL and the Local flag differ. Prompts and response parsing live
// with the caller (package providers); this package only moves JSON.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.HealthCheck: verify credentials and model availability.
// DecodeLLMJSON: decode a payload that may be wrapped in code fences.
//
// # Retry Behaviour
//
// Requests run under cenkalti/backoff: HTTP 408/429/5xx responses, empty
// completions and network timeouts are retried with exponential backoff
// (base 1s, max 10s, up to 4 attempts by default). A Retry-After header
// replaces the next wait, capped at the maximum. Context cancellation aborts
// retries immediately.
// Once retries are exhausted, 429 responses surface as
// services.ErrRateLimited and other retryable failures as
// services.ErrTransient.
package llm
