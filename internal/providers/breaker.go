package providers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"librarian/internal/logging"
	"librarian/internal/metrics"
	"librarian/internal/services"
)

// ErrBreakerOpen is returned by Allow while a provider is cooling down.
var ErrBreakerOpen = errors.New("circuit open")

// Breaker guards one provider. It opens after a run of consecutive
// failures, or at once when the provider reports a rate limit, and lets a
// single probe through after the cooldown.
type Breaker struct {
	name   string
	cb     *gobreaker.TwoStepCircuitBreaker
	forced atomic.Bool

	mu      sync.Mutex
	pending []func(bool)
}

// NewBreaker creates a breaker. failureThreshold below 1 is treated as 1.
func NewBreaker(name string, failureThreshold int, cooldown time.Duration, m *metrics.Metrics, logger *slog.Logger) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	logger = logging.NewComponentLogger(logger, "breaker")
	b := &Breaker{name: name}
	b.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return b.forced.Load() || counts.ConsecutiveFailures >= uint32(failureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.forced.Store(false)
			m.SetBreakerState(name, int(to))
			level := slog.LevelInfo
			if to == gobreaker.StateOpen {
				level = slog.LevelWarn
			}
			logger.Log(context.Background(), level, "provider breaker state changed",
				logging.String(logging.FieldProvider, name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldEventType, "breaker_state_change"),
			)
		},
	})
	m.SetBreakerState(name, int(gobreaker.StateClosed))
	return b
}

// Name returns the provider name.
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen reports whether calls are currently refused.
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// Allow reserves a call. Every successful Allow must be followed by exactly
// one RecordSuccess or RecordFailure.
func (b *Breaker) Allow() error {
	done, err := b.cb.Allow()
	if err != nil {
		return services.Wrap(services.ErrTransient, "providers", b.name, "", ErrBreakerOpen)
	}
	b.mu.Lock()
	b.pending = append(b.pending, done)
	b.mu.Unlock()
	return nil
}

// RecordSuccess completes a reserved call successfully.
func (b *Breaker) RecordSuccess() {
	if done := b.take(); done != nil {
		done(true)
	}
}

// RecordFailure completes a reserved call as failed. A rate-limit error
// trips the breaker regardless of the failure count.
func (b *Breaker) RecordFailure(err error) {
	done := b.take()
	if done == nil {
		return
	}
	if errors.Is(err, services.ErrRateLimited) {
		b.forced.Store(true)
	}
	done(false)
}

func (b *Breaker) take() func(bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) > 0 {
		done := b.pending[0]
		b.pending = b.pending[1:]
		return done
	}
	if done, err := b.cb.Allow(); err == nil {
		return done
	}
	return nil
}
