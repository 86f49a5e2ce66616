// Package watch ingests book folders dropped into the watch folder. File
// system events mark folders as candidates; a folder is registered once its
// newest file has been quiet for the configured minimum age. A periodic
// rescan catches anything the event stream missed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"librarian/internal/config"
	"librarian/internal/logging"
	"librarian/internal/scanner"
)

// Priority is the queue priority of watch-folder arrivals.
const Priority = 10

const defaultSettleTick = 5 * time.Second

// Watcher follows the watch folder.
type Watcher struct {
	folder   string
	scanner  *scanner.Scanner
	interval time.Duration
	minAge   time.Duration
	tick     time.Duration
	logger   *slog.Logger
	onQueued func()

	mu      sync.Mutex
	pending map[string]struct{}
}

// New builds a watcher from the [watch] settings.
func New(cfg *config.Config, s *scanner.Scanner, logger *slog.Logger) *Watcher {
	minAge := time.Duration(cfg.Watch.MinFileAgeSeconds) * time.Second
	return &Watcher{
		folder:   cfg.Watch.Folder,
		scanner:  s,
		interval: time.Duration(cfg.Watch.IntervalSeconds) * time.Second,
		minAge:   minAge,
		tick:     min(max(minAge/2, time.Second), defaultSettleTick),
		logger:   logging.NewComponentLogger(logger, "watch"),
		pending:  make(map[string]struct{}),
	}
}

// OnQueued registers fn to run after a scan queued at least one book. Set
// it before Run.
func (w *Watcher) OnQueued(fn func()) {
	w.onQueued = fn
}

// Run watches until ctx is cancelled. It scans the folder once at start.
func (w *Watcher) Run(ctx context.Context) error {
	if strings.TrimSpace(w.folder) == "" {
		return errors.New("watch folder not configured")
	}
	if err := os.MkdirAll(w.folder, 0o755); err != nil {
		return fmt.Errorf("create watch folder: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()
	if err := w.addTree(fsw, w.folder); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, w.logger)
	logger.Info("watching folder",
		logging.String("folder", w.folder),
		logging.Duration("min_file_age", w.minAge),
		logging.Duration("rescan_interval", w.interval),
	)

	w.rescan(ctx)

	settle := time.NewTicker(w.tick)
	defer settle.Stop()
	var rescan <-chan time.Time
	if w.interval > 0 {
		t := time.NewTicker(w.interval)
		defer t.Stop()
		rescan = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(logger, "file watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the periodic rescan still picks up new folders"),
				logging.String(logging.FieldImpact, "events may have been dropped"),
			)
		case <-settle.C:
			w.settle(ctx)
		case <-rescan:
			w.rescan(ctx)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if err := w.addTree(fsw, event.Name); err != nil {
			w.logger.Debug("watch add failed", logging.String("path", event.Name), logging.Error(err))
		}
		w.mark(event.Name)
		return
	}
	w.mark(filepath.Dir(event.Name))
}

func (w *Watcher) mark(dir string) {
	if !within(w.folder, dir) {
		return
	}
	w.mu.Lock()
	w.pending[filepath.Clean(dir)] = struct{}{}
	w.mu.Unlock()
}

// settle registers pending folders that have gone quiet.
func (w *Watcher) settle(ctx context.Context) {
	w.mu.Lock()
	dirs := make([]string, 0, len(w.pending))
	for dir := range w.pending {
		dirs = append(dirs, dir)
	}
	w.mu.Unlock()

	for _, dir := range dirs {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(dir); err != nil {
			w.forget(dir)
			continue
		}
		result, err := w.scanner.ScanDir(ctx, dir, scanner.Options{MinAge: w.minAge, Priority: Priority})
		if err != nil {
			w.failed(ctx, dir, err)
			continue
		}
		w.queued(result)
		if result.Settling == 0 {
			w.forget(dir)
		}
	}
}

func (w *Watcher) rescan(ctx context.Context) {
	result, err := w.scanner.ScanDir(ctx, w.folder, scanner.Options{MinAge: w.minAge, Priority: Priority})
	if err != nil {
		w.failed(ctx, w.folder, err)
		return
	}
	w.queued(result)
}

func (w *Watcher) queued(result scanner.Result) {
	if result.Queued > 0 && w.onQueued != nil {
		w.onQueued()
	}
}

func (w *Watcher) forget(dir string) {
	w.mu.Lock()
	delete(w.pending, dir)
	w.mu.Unlock()
}

func (w *Watcher) failed(ctx context.Context, dir string, err error) {
	if ctx.Err() != nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, w.logger), "watch scan failed", "watch_scan_failed",
		logging.String("dir", dir),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions on the watch folder"),
		logging.String(logging.FieldImpact, "folder retried on the next tick"),
	)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
