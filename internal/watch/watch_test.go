package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"librarian/internal/scanner"
	"librarian/internal/testsupport"
)

func TestSettleRegistersQuietFolders(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchFolder())
	cfg.Watch.MinFileAgeSeconds = 60
	store := testsupport.MustOpenStore(t, cfg)
	w := New(cfg, scanner.New(cfg, store, nil), nil)
	woken := 0
	w.OnQueued(func() { woken++ })

	dir := filepath.Join(cfg.Watch.Folder, "Robin Hobb - Ship of Magic")
	testsupport.WriteFile(t, filepath.Join(dir, "01.mp3"), 256)
	w.mark(dir)

	ctx := context.Background()
	w.settle(ctx)
	if _, err := store.GetBookByPath(ctx, dir); err == nil {
		t.Fatal("folder registered before it settled")
	}
	if _, ok := w.pending[dir]; !ok {
		t.Fatal("settling folder should stay pending")
	}
	if woken != 0 {
		t.Fatal("OnQueued fired before anything was queued")
	}

	past := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(filepath.Join(dir, "01.mp3"), past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	w.settle(ctx)
	book, err := store.GetBookByPath(ctx, dir)
	if err != nil {
		t.Fatalf("GetBookByPath: %v", err)
	}
	if book.CurrentAuthor != "Robin Hobb" || book.CurrentTitle != "Ship of Magic" {
		t.Fatalf("book = %q / %q", book.CurrentAuthor, book.CurrentTitle)
	}
	if len(w.pending) != 0 {
		t.Fatalf("pending = %v, want empty", w.pending)
	}
	if woken != 1 {
		t.Fatalf("OnQueued fired %d times, want 1", woken)
	}
}

func TestMarkIgnoresPathsOutsideFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchFolder())
	store := testsupport.MustOpenStore(t, cfg)
	w := New(cfg, scanner.New(cfg, store, nil), nil)
	w.mark(cfg.Paths.LibraryDir)
	if len(w.pending) != 0 {
		t.Fatalf("pending = %v", w.pending)
	}
}

func TestRunPicksUpNewFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchFolder())
	cfg.Watch.MinFileAgeSeconds = 0
	cfg.Watch.IntervalSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	w := New(cfg, scanner.New(cfg, store, nil), nil)
	w.tick = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	dir := filepath.Join(cfg.Watch.Folder, "Brandon Sanderson - Elantris")
	time.Sleep(50 * time.Millisecond)
	testsupport.WriteFile(t, filepath.Join(dir, "01.mp3"), 256)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := store.GetBookByPath(context.Background(), dir); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not register the new folder")
}
