package providers

import (
	"context"
	"log/slog"
	"time"

	"librarian/internal/config"
	"librarian/internal/metrics"
	"librarian/internal/services/gemini"
	"librarian/internal/services/llm"
)

// Set holds the guarded lookups and the AI backend configured for a run.
type Set struct {
	// Lookups are the title/author searches in configured order.
	Lookups []*Guard
	// ASIN resolves ASINs through Audnexus; nil when Audnexus is disabled.
	ASIN *ASINGuard
	// AI is nil when the AI layer is disabled.
	AI *AIGuard
}

// NewSet builds the providers named in cfg.
func NewSet(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Set {
	timeout := time.Duration(cfg.Providers.RequestTimeoutSeconds) * time.Second
	opts := GuardOptions{
		MaxRequestsPerHour: cfg.Providers.MaxRequestsPerHour,
		Timeout:            timeout,
		CacheTTL:           time.Duration(cfg.Providers.CacheTTLSeconds) * time.Second,
		FailureThreshold:   cfg.Providers.FailureThreshold,
		Cooldown:           time.Duration(cfg.Providers.CooldownSeconds) * time.Second,
		Metrics:            m,
		Logger:             logger,
	}
	set := &Set{}
	for _, name := range cfg.Providers.Enabled {
		switch name {
		case config.LookupAudnexus:
			client := NewAudnexus(cfg.Providers.AudnexusURL, timeout)
			guard := NewGuard(client, opts)
			set.Lookups = append(set.Lookups, guard)
			set.ASIN = &ASINGuard{guard: guard}
		case config.LookupGoogleBooks:
			set.Lookups = append(set.Lookups, NewGuard(NewGoogleBooks(cfg.Providers.GoogleBooksURL, cfg.Providers.GoogleBooksAPIKey, timeout), opts))
		case config.LookupOpenLibrary:
			set.Lookups = append(set.Lookups, NewGuard(NewOpenLibrary(cfg.Providers.OpenLibraryURL, timeout), opts))
		}
	}
	if cfg.Pipeline.EnableAIVerification {
		llmCfg := cfg.GetLLM()
		aiOpts := opts
		// the backends apply llm.timeout_seconds per request themselves
		aiOpts.CacheTTL, aiOpts.Timeout = 0, 0
		set.AI = NewAIGuard(llmCfg.Provider, NewAIFromConfig(llmCfg, logger), aiOpts)
	}
	return set
}

// NewAIFromConfig builds the AI identifier for the configured backend.
func NewAIFromConfig(cfg config.LLMConfig, logger *slog.Logger) *AIIdentifier {
	switch cfg.Provider {
	case config.ProviderGemini:
		client := gemini.NewClient(gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model, Temperature: cfg.Temperature})
		return NewAIIdentifier(cfg.Provider, client, logger)
	default:
		client := llm.NewClient(llm.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			TimeoutSeconds: cfg.TimeoutSeconds,
			Local:          cfg.Provider == config.ProviderOllama,
		})
		return NewAIIdentifier(cfg.Provider, client, logger)
	}
}

// AnyAvailable reports whether at least one lookup's breaker admits calls.
func (s *Set) AnyAvailable() bool {
	if s == nil {
		return false
	}
	for _, g := range s.Lookups {
		if !g.Breaker().IsOpen() {
			return true
		}
	}
	return false
}

// ASINGuard routes ASIN lookups through the Audnexus guard so they share
// its breaker, budget and cache.
type ASINGuard struct {
	guard *Guard
}

// Resolve looks up one ASIN.
func (a *ASINGuard) Resolve(ctx context.Context, asin string) (*CandidateRecord, error) {
	if a == nil || !IsASIN(asin) {
		return nil, nil
	}
	return a.guard.Lookup(ctx, asin, "")
}
