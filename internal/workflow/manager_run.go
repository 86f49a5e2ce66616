package workflow

import (
	"context"
	"errors"
	"time"

	"librarian/internal/logging"
	"librarian/internal/pipeline"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.processor == nil {
		m.mu.Unlock()
		return errors.New("workflow processor not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("workflow started",
		logging.Int("batch_size", m.batchSize),
		logging.Duration("poll_interval", m.pollInterval),
	)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the running batch to
// reach a book boundary.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		m.heartbeat.BeginBatch()
		summary, err := m.processor.ProcessBatch(ctx, m.batchSize)
		m.heartbeat.Beat()
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			m.handleBatchError(ctx, err)
			continue
		}
		m.recordBatch(summary)
		if summary.Processed > 0 {
			continue
		}
		m.waitForWorkOrShutdown(ctx)
	}
}

func (m *Manager) handleBatchError(ctx context.Context, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "batch failed", "batch_failed",
		logging.Error(err),
		logging.Duration("retry_in", m.retryInterval),
		logging.String(logging.FieldErrorHint, "check queue database access"),
		logging.String(logging.FieldImpact, "queue processing paused until the retry"),
	)
	m.sleep(ctx, m.retryInterval, false)
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	m.sleep(ctx, m.pollInterval, true)
}

func (m *Manager) sleep(ctx context.Context, d time.Duration, wakeable bool) {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	var wake <-chan struct{}
	if wakeable {
		wake = m.wake
	}
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-wake:
	}
}

func (m *Manager) recordBatch(summary pipeline.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = nil
	if summary.Processed == 0 {
		return
	}
	m.lastSummary = summary
	m.lastBatchAt = time.Now()
	m.batches++
	m.processed += summary.Processed
}
