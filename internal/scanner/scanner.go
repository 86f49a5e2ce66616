// Package scanner discovers book folders under a directory tree, records
// them in the store and queues the ones the requeue policy admits.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"librarian/internal/config"
	"librarian/internal/evidence"
	"librarian/internal/logging"
	"librarian/internal/queue"
	"librarian/internal/services"
)

// Store is the part of the queue store the scanner uses.
type Store interface {
	GetBookByPath(ctx context.Context, path string) (*queue.Book, error)
	UpsertBook(ctx context.Context, path, author, title, triage string) (*queue.Book, error)
	Enqueue(ctx context.Context, bookID int64, layer queue.Layer, priority int, reason string) error
}

// Options tune one scan.
type Options struct {
	// MinAge skips folders whose newest file is younger, so copies still
	// in progress are picked up by a later scan.
	MinAge time.Duration
	// Priority is given to queued books.
	Priority int
}

// Result counts what a scan did.
type Result struct {
	Folders  int            `json:"folders"`
	New      int            `json:"new"`
	Queued   int            `json:"queued"`
	Settling int            `json:"settling"`
	Skipped  map[string]int `json:"skipped,omitempty"`
}

func (r *Result) skip(reason string) {
	if r.Skipped == nil {
		r.Skipped = make(map[string]int)
	}
	r.Skipped[reason]++
}

// Scanner walks directory trees for book folders.
type Scanner struct {
	root       string
	store      Store
	audioExts  map[string]struct{}
	ebookExts  map[string]struct{}
	ignore     map[string]struct{}
	maxRetries int
	logger     *slog.Logger
	now        func() time.Time
}

// New builds a scanner from the library settings.
func New(cfg *config.Config, store Store, logger *slog.Logger) *Scanner {
	ignore := make(map[string]struct{}, len(cfg.Library.IgnoreFolders))
	for _, name := range cfg.Library.IgnoreFolders {
		ignore[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &Scanner{
		root:       cfg.Paths.LibraryDir,
		store:      store,
		audioExts:  lowerSet(cfg.Library.AudioExtensions),
		ebookExts:  lowerSet(cfg.Library.EbookExtensions),
		ignore:     ignore,
		maxRetries: cfg.Pipeline.MaxRetries,
		logger:     logging.NewComponentLogger(logger, "scanner"),
		now:        time.Now,
	}
}

// Scan walks the library root.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	return s.ScanDir(ctx, s.root, Options{})
}

// ScanDir walks dir and registers every book folder below it. A book
// folder is a directory that directly contains audio or ebook files.
func (s *Scanner) ScanDir(ctx context.Context, dir string, opts Options) (Result, error) {
	var result Result
	logger := logging.WithContext(ctx, s.logger)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			logging.WarnWithContext(logger, "folder unreadable", "scan_walk_failed",
				logging.String("path", path),
				logging.Error(walkErr),
				logging.String(logging.FieldErrorHint, "check permissions on the library"),
				logging.String(logging.FieldImpact, "folder skipped this scan"),
			)
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && s.ignored(d.Name()) {
			return fs.SkipDir
		}
		if filepath.Clean(path) == filepath.Clean(s.root) {
			return nil
		}
		newest, ok, err := s.bookFolder(path)
		if err != nil || !ok {
			return nil
		}
		result.Folders++
		if opts.MinAge > 0 && s.now().Sub(newest) < opts.MinAge {
			result.Settling++
			return nil
		}
		queued, reason, err := s.Register(ctx, path, opts.Priority)
		if err != nil {
			return err
		}
		switch {
		case reason == "new":
			result.New++
			result.Queued++
		case queued:
			result.Queued++
		default:
			result.skip(reason)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", dir, err)
	}
	logger.Info("scan complete",
		logging.String("dir", dir),
		logging.Int("folders", result.Folders),
		logging.Int("new", result.New),
		logging.Int("queued", result.Queued),
		logging.Int("settling", result.Settling),
	)
	return result, nil
}

// Register records the book folder at dir and queues it when the requeue
// policy allows. It returns whether the book was queued and the rule that
// decided.
func (s *Scanner) Register(ctx context.Context, dir string, priority int) (bool, string, error) {
	dir = filepath.Clean(dir)
	existing, err := s.store.GetBookByPath(ctx, dir)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			return false, "", err
		}
		existing = nil
	}
	info := evidence.ParsePath(s.root, dir)
	book, err := s.store.UpsertBook(ctx, dir, info.Author, info.Title, string(info.Triage))
	if err != nil {
		return false, "", err
	}
	admit, reason := queue.ShouldRequeue(existing, s.maxRetries, s.now())
	if !admit {
		return false, reason, nil
	}
	if err := s.store.Enqueue(ctx, book.ID, queue.LayerUnprocessed, priority, reason); err != nil {
		return false, "", err
	}
	return true, reason, nil
}

// IsBookFolder reports whether dir directly holds audio or ebook files.
func (s *Scanner) IsBookFolder(dir string) bool {
	_, ok, err := s.bookFolder(dir)
	return err == nil && ok
}

// NewestFile returns the latest modification time among the files directly
// in dir.
func (s *Scanner) NewestFile(dir string) (time.Time, error) {
	newest, _, err := s.bookFolder(dir)
	return newest, err
}

func (s *Scanner) bookFolder(dir string) (time.Time, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, false, err
	}
	var newest time.Time
	found := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		_, audio := s.audioExts[ext]
		_, ebook := s.ebookExts[ext]
		if audio || ebook {
			found = true
		}
		if info, err := entry.Info(); err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest, found, nil
}

func (s *Scanner) ignored(name string) bool {
	if _, ok := s.ignore[strings.ToLower(name)]; ok {
		return true
	}
	return evidence.IsSystemFolder(name)
}

func lowerSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.ToLower(v)] = struct{}{}
	}
	return out
}
