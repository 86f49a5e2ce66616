package workflow

import (
	"context"
	"time"

	"librarian/internal/logging"
	"librarian/internal/pipeline"
	"librarian/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running        bool             `json:"running"`
	LastError      string           `json:"last_error,omitempty"`
	LastBatch      pipeline.Summary `json:"last_batch"`
	LastBatchAt    time.Time        `json:"last_batch_at,omitzero"`
	BatchStartedAt time.Time        `json:"batch_started_at,omitzero"`
	Batches        int              `json:"batches"`
	Processed      int              `json:"processed"`
	Queue          queue.Stats      `json:"queue"`
	Health         Health           `json:"health"`
}

// Health is the readiness of the worker loop.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:     m.running,
		LastBatch:   m.lastSummary,
		LastBatchAt: m.lastBatchAt,
		Batches:     m.batches,
		Processed:   m.processed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	_, summary.BatchStartedAt = m.heartbeat.Last()
	summary.Health = m.Health()
	if m.stats != nil {
		stats, err := m.stats.Stats(ctx)
		if err != nil {
			m.logger.Warn("failed to read queue stats", logging.Error(err))
		} else {
			summary.Queue = stats
		}
	}
	return summary
}

// Health reports whether the worker loop is alive.
func (m *Manager) Health() Health {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	m.mu.RUnlock()
	h := Health{Name: "workflow"}
	switch {
	case !running:
		h.Detail = "not running"
	case m.heartbeat.Stale():
		h.Detail = "heartbeat missed"
	case lastErr != nil:
		h.Detail = lastErr.Error()
	default:
		h.Ready = true
	}
	return h
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
