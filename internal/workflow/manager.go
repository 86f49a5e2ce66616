package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"librarian/internal/config"
	"librarian/internal/logging"
	"librarian/internal/pipeline"
	"librarian/internal/queue"
)

// Processor runs one batch of layer steps.
type Processor interface {
	ProcessBatch(ctx context.Context, n int) (pipeline.Summary, error)
}

// StatsSource reports queue counts for status summaries.
type StatsSource interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// Manager coordinates background queue processing.
type Manager struct {
	processor     Processor
	stats         StatsSource
	logger        *slog.Logger
	batchSize     int
	pollInterval  time.Duration
	retryInterval time.Duration

	heartbeat *HeartbeatMonitor
	wake      chan struct{}

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastErr     error
	lastSummary pipeline.Summary
	lastBatchAt time.Time
	batches     int
	processed   int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollInterval overrides workflow.poll_interval_seconds.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.pollInterval = d
	}
}

// WithRetryInterval overrides workflow.error_retry_interval.
func WithRetryInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.retryInterval = d
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, processor Processor, stats StatsSource, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		processor:     processor,
		stats:         stats,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		batchSize:     cfg.Pipeline.BatchSize,
		pollInterval:  time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.heartbeat = NewHeartbeatMonitor(m.logger, staleAfter(m.pollInterval, m.retryInterval))
	return m
}

// Wake asks a waiting manager to run the next batch now. It never blocks.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func staleAfter(poll, retry time.Duration) time.Duration {
	return 2*max(poll, retry) + time.Minute
}
