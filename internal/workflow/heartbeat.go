package workflow

import (
	"log/slog"
	"sync"
	"time"

	"librarian/internal/logging"
)

// HeartbeatMonitor tracks the worker loop. An idle loop that has not beaten
// within the timeout is stale; a loop inside a batch is never stale, since
// audio transcription can legitimately run for minutes.
type HeartbeatMonitor struct {
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	mu         sync.Mutex
	last       time.Time
	batchStart time.Time
	stale      bool
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(logger *slog.Logger, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{logger: logger, timeout: timeout, now: time.Now}
}

// Beat records an idle loop iteration.
func (h *HeartbeatMonitor) Beat() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = h.now()
	h.batchStart = time.Time{}
	if h.stale {
		h.stale = false
		h.logger.Info("workflow heartbeat recovered")
	}
}

// BeginBatch marks the loop busy.
func (h *HeartbeatMonitor) BeginBatch() {
	h.mu.Lock()
	now := h.now()
	h.last = now
	h.batchStart = now
	h.mu.Unlock()
}

// Last returns the time of the latest beat and the start of the running
// batch, which is zero when idle.
func (h *HeartbeatMonitor) Last() (time.Time, time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.batchStart
}

// Stale reports whether the idle loop has missed its heartbeat.
func (h *HeartbeatMonitor) Stale() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timeout <= 0 || h.last.IsZero() || !h.batchStart.IsZero() {
		return false
	}
	late := h.now().Sub(h.last) > h.timeout
	if late && !h.stale {
		logging.WarnWithContext(h.logger, "workflow heartbeat missed", "heartbeat_stale",
			logging.Duration("since", h.now().Sub(h.last)),
			logging.String(logging.FieldErrorHint, "restart the daemon if the queue stops draining"),
			logging.String(logging.FieldImpact, "queued books are not being processed"),
		)
	}
	h.stale = late
	return late
}
