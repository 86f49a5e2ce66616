package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"librarian/internal/logging"
	"librarian/internal/metrics"
	"librarian/internal/services"
	"librarian/internal/textutil"
)

// GuardOptions configures a Guard.
type GuardOptions struct {
	MaxRequestsPerHour int
	Timeout            time.Duration
	CacheTTL           time.Duration
	FailureThreshold   int
	Cooldown           time.Duration
	Metrics            *metrics.Metrics
	Logger             *slog.Logger
}

// policy is the breaker, request budget and timeout shared by every
// external call to one provider.
type policy struct {
	name    string
	breaker *Breaker
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func newPolicy(name string, opts GuardOptions) policy {
	return policy{
		name:    name,
		breaker: NewBreaker(name, opts.FailureThreshold, opts.Cooldown, opts.Metrics, opts.Logger),
		limiter: newLimiter(opts.MaxRequestsPerHour),
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  logging.NewComponentLogger(opts.Logger, "providers"),
	}
}

func newLimiter(perHour int) *rate.Limiter {
	if perHour <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), max(1, perHour/20))
}

// Breaker exposes the provider's breaker.
func (p *policy) Breaker() *Breaker {
	return p.breaker
}

// guardedCall runs call under p. An open breaker refuses without calling;
// otherwise the call waits for the request budget, runs with the timeout
// and its outcome feeds the breaker. outcome labels successful results for
// the lookup metrics.
func guardedCall[T any](ctx context.Context, p *policy, call func(context.Context) (T, error), outcome func(T) string) (T, error) {
	var zero T
	if p.breaker.IsOpen() {
		p.metrics.ObserveLookup(p.name, "open", 0)
		return zero, services.Wrap(services.ErrTransient, "providers", p.name, "", ErrBreakerOpen)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return zero, services.Wrap(services.ErrTransient, "providers", p.name, "request budget", err)
	}
	if err := p.breaker.Allow(); err != nil {
		p.metrics.ObserveLookup(p.name, "open", 0)
		return zero, err
	}

	callCtx := services.WithProvider(ctx, p.name)
	cancel := func() {}
	if p.timeout > 0 {
		callCtx, cancel = context.WithTimeout(callCtx, p.timeout)
	}
	start := time.Now()
	result, err := call(callCtx)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if ctx.Err() != nil {
			// The caller gave up; the provider is not at fault.
			p.breaker.RecordSuccess()
			return zero, ctx.Err()
		}
		if timedOut && !services.IsTransient(err) {
			err = services.Wrap(services.ErrTimeout, "providers", p.name, "call timed out", err)
		}
		p.breaker.RecordFailure(err)
		label := "error"
		if errors.Is(err, services.ErrRateLimited) {
			label = "rate_limited"
		}
		p.metrics.ObserveLookup(p.name, label, elapsed)
		logging.WarnWithContext(logging.WithContext(callCtx, p.logger), "provider call failed", "provider_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check provider availability and request quota"),
			logging.String(logging.FieldImpact, "no observations from this provider for the book"),
		)
		return zero, err
	}

	p.breaker.RecordSuccess()
	p.metrics.ObserveLookup(p.name, outcome(result), elapsed)
	return result, nil
}

// Guard wraps a Lookup with a circuit breaker, a request budget, a result
// cache and a per-call timeout. Misses are cached too.
type Guard struct {
	policy
	lookup Lookup
	cache  *cache.Cache
}

type cachedResult struct {
	record *CandidateRecord
}

// NewGuard wraps lookup.
func NewGuard(lookup Lookup, opts GuardOptions) *Guard {
	g := &Guard{
		policy: newPolicy(lookup.Name(), opts),
		lookup: lookup,
	}
	if opts.CacheTTL > 0 {
		g.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return g
}

// Name returns the wrapped provider's name.
func (g *Guard) Name() string {
	return g.lookup.Name()
}

// Lookup implements Lookup.
func (g *Guard) Lookup(ctx context.Context, titleHint, authorHint string) (*CandidateRecord, error) {
	key := g.name + "|" + textutil.Normalize(titleHint) + "|" + textutil.Normalize(authorHint)
	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			g.metrics.ObserveLookup(g.name, "cached", 0)
			return v.(cachedResult).record, nil
		}
	}
	record, err := guardedCall(ctx, &g.policy, func(ctx context.Context) (*CandidateRecord, error) {
		return g.lookup.Lookup(ctx, titleHint, authorHint)
	}, hitOrMiss[CandidateRecord])
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		g.cache.SetDefault(key, cachedResult{record: record})
	}
	return record, nil
}

// AIGuard puts an AI backend behind the same breaker, request budget and
// timeout the metadata lookups use. Answers are not cached: prompts carry
// per-book evidence.
type AIGuard struct {
	policy
	ai AI
}

// NewAIGuard wraps ai. name labels the backend's breaker and metrics.
func NewAIGuard(name string, ai AI, opts GuardOptions) *AIGuard {
	return &AIGuard{policy: newPolicy(name, opts), ai: ai}
}

// Name returns the backend label.
func (g *AIGuard) Name() string {
	return g.name
}

// Identify implements AI.
func (g *AIGuard) Identify(ctx context.Context, prompt AIPrompt) (*ParsedFields, error) {
	return guardedCall(ctx, &g.policy, func(ctx context.Context) (*ParsedFields, error) {
		return g.ai.Identify(ctx, prompt)
	}, hitOrMiss[ParsedFields])
}

func hitOrMiss[T any](v *T) string {
	if v == nil {
		return "miss"
	}
	return "hit"
}
