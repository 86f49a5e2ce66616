package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"librarian/internal/queue"
	"librarian/internal/scanner"
	"librarian/internal/testsupport"
)

func TestScanRegistersBookFolders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryDir
	testsupport.WriteFile(t, filepath.Join(root, "Brandon Sanderson", "Elantris", "01.mp3"), 512)
	testsupport.WriteFile(t, filepath.Join(root, "Robin Hobb", "Ship of Magic", "book.epub"), 512)
	testsupport.WriteFile(t, filepath.Join(root, "Robin Hobb", "notes.txt"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "@eaDir", "Elantris", "01.mp3"), 512)
	testsupport.WriteFile(t, filepath.Join(root, "#recycle", "Old", "01.mp3"), 512)

	s := scanner.New(cfg, store, nil)
	result, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Folders != 2 || result.New != 2 || result.Queued != 2 {
		t.Fatalf("result = %+v, want two new queued folders", result)
	}

	book, err := store.GetBookByPath(context.Background(), filepath.Join(root, "Brandon Sanderson", "Elantris"))
	if err != nil {
		t.Fatalf("GetBookByPath: %v", err)
	}
	if book.CurrentAuthor != "Brandon Sanderson" || book.CurrentTitle != "Elantris" || book.Status != queue.StatusPending {
		t.Fatalf("book = %q / %q %s", book.CurrentAuthor, book.CurrentTitle, book.Status)
	}
	items, err := store.ListQueue(context.Background())
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 2 || items[0].Layer != queue.LayerUnprocessed {
		t.Fatalf("queue = %+v", items)
	}
}

func TestRescanHonoursRequeuePolicy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	dir := filepath.Join(cfg.Paths.LibraryDir, "Robin Hobb", "Royal Assassin")
	testsupport.WriteFile(t, filepath.Join(dir, "01.mp3"), 512)

	s := scanner.New(cfg, store, nil)
	if _, err := s.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	book, err := store.GetBookByPath(ctx, dir)
	if err != nil {
		t.Fatalf("GetBookByPath: %v", err)
	}
	if _, err := store.RemoveFromQueue(ctx, book.ID); err != nil {
		t.Fatalf("RemoveFromQueue: %v", err)
	}
	if err := store.UpdateBookStatus(ctx, book.ID, queue.StatusNeedsAttention, "unidentified"); err != nil {
		t.Fatalf("UpdateBookStatus: %v", err)
	}

	result, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Queued != 0 || result.Skipped["needs_attention"] != 1 {
		t.Fatalf("result = %+v, want the needs_attention book skipped", result)
	}
	depth, err := store.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("QueueDepth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("queue depth = %d", depth)
	}
}

func TestScanDirLeavesSettlingFolders(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchFolder())
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	fresh := filepath.Join(cfg.Watch.Folder, "New Book")
	old := filepath.Join(cfg.Watch.Folder, "Old Book")
	testsupport.WriteFile(t, filepath.Join(fresh, "01.mp3"), 512)
	testsupport.WriteFile(t, filepath.Join(old, "01.mp3"), 512)
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(old, "01.mp3"), past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	s := scanner.New(cfg, store, nil)
	result, err := s.ScanDir(ctx, cfg.Watch.Folder, scanner.Options{MinAge: time.Minute, Priority: 5})
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if result.Folders != 2 || result.Settling != 1 || result.Queued != 1 {
		t.Fatalf("result = %+v", result)
	}
	if _, err := store.GetBookByPath(ctx, fresh); err == nil {
		t.Fatal("settling folder was registered")
	}
	items, err := store.ListQueue(ctx)
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 1 || items[0].Priority != 5 {
		t.Fatalf("queue = %+v", items)
	}
}

func TestIsBookFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	dir := filepath.Join(cfg.Paths.LibraryDir, "Author", "Title")
	testsupport.WriteFile(t, filepath.Join(dir, "cover.jpg"), 64)
	s := scanner.New(cfg, store, nil)
	if s.IsBookFolder(dir) {
		t.Fatal("a folder with only artwork is not a book")
	}
	testsupport.WriteFile(t, filepath.Join(dir, "Title.M4B"), 64)
	if !s.IsBookFolder(dir) {
		t.Fatal("upper-case extension should count")
	}
}
