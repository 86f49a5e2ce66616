package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"librarian/internal/config"
	"librarian/internal/deps"
	"librarian/internal/logging"
	"librarian/internal/metrics"
	"librarian/internal/queue"
	"librarian/internal/watch"
	"librarian/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	watcher  *watch.Watcher
	metrics  *metrics.Metrics
	api      *apiServer
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	LogPath      string
	Watching     string
	Dependencies []deps.Status
}

// Option configures optional daemon services.
type Option func(*Daemon)

// WithWatcher runs w alongside the workflow and wakes the workflow whenever
// it queues a book.
func WithWatcher(w *watch.Watcher) Option {
	return func(d *Daemon) {
		d.watcher = w
	}
}

// WithMetrics exposes m on the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) {
		d.metrics = m
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		logPath:  logging.LogFilePath(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.watcher != nil {
		d.watcher.OnQueued(wf.Wake)
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager, the
// watcher and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another librarian daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}
	if d.watcher != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.watcher.Run(runCtx); err != nil {
				logging.ErrorWithContext(d.logger, "watch folder stopped", "watch_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check watch.folder exists and is readable"),
					logging.String(logging.FieldImpact, "new folders are only found by library scans"),
				)
			}
		}()
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("librarian daemon started",
		logging.String("lock", d.lockPath),
		logging.String("library", d.cfg.Paths.LibraryDir),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("librarian daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the API listen address, or "" when the API is disabled.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// ListQueue returns the queued books in processing order.
func (d *Daemon) ListQueue(ctx context.Context) ([]*queue.QueueItem, error) {
	return d.store.ListQueue(ctx)
}

// ClearQueue removes all queue items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.ClearQueue(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if d.watcher != nil {
		status.Watching = d.cfg.Watch.Folder
	}
	return status
}
