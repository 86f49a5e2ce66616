package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"librarian/internal/profile"
	"librarian/internal/queue"
	"librarian/internal/services"
	"librarian/internal/testsupport"
)

func TestUpsertBookKeepsState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, "/lib/Brandon Sanderson/Mistborn", "Brandon Sanderson", "Mistborn")
	if book.ID == 0 || book.Status != queue.StatusPending {
		t.Fatalf("unexpected new book %#v", book)
	}
	if err := store.UpdateBookStatus(ctx, book.ID, queue.StatusVerified, "already_correct"); err != nil {
		t.Fatalf("UpdateBookStatus: %v", err)
	}

	again, err := store.UpsertBook(ctx, book.Path, "Brandon Sanderson", "Mistborn", "messy")
	if err != nil {
		t.Fatalf("UpsertBook: %v", err)
	}
	if again.ID != book.ID || again.Status != queue.StatusVerified || again.FolderTriage != "messy" {
		t.Fatalf("upsert should keep id/status and refresh triage: %#v", again)
	}

	if _, err := store.GetBook(ctx, 9999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	book := testsupport.NewBook(t, store, "/lib/Robin Hobb/Assassin's Apprentice", "Robin Hobb", "Assassin's Apprentice")

	loaded, err := store.LoadProfile(ctx, book.ID)
	if err != nil || loaded != nil {
		t.Fatalf("new book should have no profile, got %v, %v", loaded, err)
	}

	engine := profile.NewEngine(profile.DefaultConfig(), nil)
	p := engine.Merge(nil, []profile.Observation{
		{Field: profile.FieldAuthor, Value: "Robin Hobb", Source: profile.SourceID3},
		{Field: profile.FieldTitle, Value: "Assassin's Apprentice", Source: profile.SourceID3},
	})
	if err := store.SaveProfile(ctx, book.ID, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	loaded, err = store.LoadProfile(ctx, book.ID)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if loaded.Value(profile.FieldAuthor) != "Robin Hobb" || loaded.Confidence() != p.Confidence() {
		t.Fatalf("loaded profile = %q/%d", loaded.Value(profile.FieldAuthor), loaded.Confidence())
	}
	stored, _ := store.GetBook(ctx, book.ID)
	if stored.Confidence != p.Confidence() {
		t.Fatalf("confidence column = %d, want %d", stored.Confidence, p.Confidence())
	}
}

func TestQueueOrderingAndCommitStep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	low := testsupport.NewBook(t, store, "/lib/a", "A", "One")
	high := testsupport.NewBook(t, store, "/lib/b", "B", "Two")
	if err := store.Enqueue(ctx, low.ID, queue.LayerUnprocessed, 0, "scan"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Enqueue(ctx, high.ID, queue.LayerUnprocessed, 5, "watch"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Enqueue(ctx, low.ID, queue.LayerUnprocessed, 0, "scan"); err != nil {
		t.Fatalf("re-Enqueue: %v", err)
	}

	items, err := store.DequeueBatch(ctx, 10)
	if err != nil {
		t.Fatalf("DequeueBatch: %v", err)
	}
	if len(items) != 2 || items[0].BookID != high.ID || items[1].BookID != low.ID {
		t.Fatalf("unexpected queue order: %+v", items)
	}
	if items[0].Path != "/lib/b" || items[0].Layer != queue.LayerUnprocessed {
		t.Fatalf("unexpected item: %+v", items[0])
	}

	if err := store.CommitStep(ctx, queue.StepResult{
		BookID: high.ID,
		Layer:  queue.LayerUnprocessed,
		Status: queue.StatusPending,
		Next:   queue.LayerAPI,
	}); err != nil {
		t.Fatalf("CommitStep advance: %v", err)
	}
	items, _ = store.DequeueBatch(ctx, 1)
	if len(items) != 1 || items[0].Layer != queue.LayerAPI {
		t.Fatalf("book should be queued at the api layer: %+v", items)
	}

	engine := profile.NewEngine(profile.DefaultConfig(), nil)
	p := engine.Merge(nil, []profile.Observation{{Field: profile.FieldAuthor, Value: "B", Source: profile.SourcePath}})
	if err := store.CommitStep(ctx, queue.StepResult{
		BookID:  high.ID,
		Profile: p,
		Layer:   queue.LayerTerminal,
		Status:  queue.StatusNeedsAttention,
		Reason:  "unidentified",
		Next:    queue.LayerTerminal,
		History: &queue.HistoryEntry{Status: queue.HistoryNeedsAttention, Reason: "unidentified", OldPath: "/lib/b"},
	}); err != nil {
		t.Fatalf("CommitStep terminal: %v", err)
	}
	book, _ := store.GetBook(ctx, high.ID)
	if book.Status != queue.StatusNeedsAttention || book.Reason != "unidentified" {
		t.Fatalf("unexpected status %q/%q", book.Status, book.Reason)
	}
	if book.AttemptCount != 1 || book.MaxLayerReached != queue.LayerTerminal || book.LastAttempted.IsZero() {
		t.Fatalf("attempt bookkeeping missing: %#v", book)
	}
	if book.ProfileJSON == "" {
		t.Fatal("profile not stored")
	}
	depth, _ := store.QueueDepth(ctx)
	if depth != 1 {
		t.Fatalf("queue depth = %d, want 1", depth)
	}
	history, _ := store.ListHistory(ctx, high.ID, 0)
	if len(history) != 1 || history[0].Status != queue.HistoryNeedsAttention {
		t.Fatalf("history = %+v", history)
	}
}

func TestCommitStepRejectsInvalidLayer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	book := testsupport.NewBook(t, store, "/lib/x", "X", "Y")
	err := store.CommitStep(context.Background(), queue.StepResult{BookID: book.ID, Layer: queue.Layer(9), Next: queue.LayerTerminal})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLockBookRemovesFromQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	book := testsupport.NewBook(t, store, "/lib/Unknown/Mistborn", "Unknown", "Mistborn")
	if err := store.Enqueue(ctx, book.ID, queue.LayerUnprocessed, 0, "scan"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	engine := profile.NewEngine(profile.DefaultConfig(), nil)
	p := engine.Lock(nil, map[profile.Field]string{profile.FieldAuthor: "Brandon Sanderson"})
	if err := store.LockBook(ctx, book.ID, p); err != nil {
		t.Fatalf("LockBook: %v", err)
	}
	locked, _ := store.GetBook(ctx, book.ID)
	if !locked.UserLocked {
		t.Fatal("book not marked locked")
	}
	if depth, _ := store.QueueDepth(ctx); depth != 0 {
		t.Fatalf("locked book still queued: depth %d", depth)
	}
	loaded, _ := locked.Profile()
	if !loaded.IsLocked(profile.FieldAuthor) {
		t.Fatal("stored profile lost the lock")
	}
}

func TestHistoryDeduplicatesByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	book := testsupport.NewBook(t, store, "/lib/a", "A", "T")

	first, err := store.InsertHistory(ctx, queue.HistoryEntry{BookID: book.ID, Status: queue.HistoryPendingFix, NewPath: "/lib/A/T"})
	if err != nil {
		t.Fatalf("InsertHistory: %v", err)
	}
	second, err := store.InsertHistory(ctx, queue.HistoryEntry{BookID: book.ID, Status: queue.HistoryPendingFix, NewPath: "/lib/A/T2"})
	if err != nil {
		t.Fatalf("InsertHistory: %v", err)
	}
	if first == second {
		t.Fatal("expected a new row id")
	}
	if _, err := store.GetHistory(ctx, first); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("older row should be replaced, got %v", err)
	}
	entries, _ := store.ListHistory(ctx, book.ID, 0)
	if len(entries) != 1 || entries[0].NewPath != "/lib/A/T2" {
		t.Fatalf("history = %+v", entries)
	}

	if err := store.SetHistoryUndo(ctx, second, `{"old_path":"/lib/a"}`); err != nil {
		t.Fatalf("SetHistoryUndo: %v", err)
	}
	if err := store.UpdateHistoryStatus(ctx, second, queue.HistoryFixed, ""); err != nil {
		t.Fatalf("UpdateHistoryStatus: %v", err)
	}
	got, _ := store.GetHistory(ctx, second)
	if got.Status != queue.HistoryFixed || got.UndoJSON == "" {
		t.Fatalf("unexpected entry %+v", got)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Books != 1 || stats.PendingFixes != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestShouldRequeue(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		book   *queue.Book
		want   bool
		reason string
	}{
		{"new", nil, true, "new"},
		{"locked", &queue.Book{UserLocked: true}, false, "locked"},
		{"needs attention", &queue.Book{Status: queue.StatusNeedsAttention}, false, "needs_attention"},
		{"verified with profile", &queue.Book{Status: queue.StatusVerified, ProfileJSON: "{}"}, false, "identified"},
		{"verified without profile", &queue.Book{Status: queue.StatusVerified}, true, "pending"},
		{"max retries", &queue.Book{Status: queue.StatusPending, AttemptCount: 3, LastAttempted: now.Add(-365 * 24 * time.Hour)}, false, "max_retries"},
		{"backoff", &queue.Book{Status: queue.StatusPending, AttemptCount: 1, LastAttempted: now.Add(-47 * time.Hour)}, false, "backoff"},
		{"backoff elapsed", &queue.Book{Status: queue.StatusPending, AttemptCount: 1, LastAttempted: now.Add(-49 * time.Hour)}, true, "retry"},
	}
	for _, tc := range cases {
		got, reason := queue.ShouldRequeue(tc.book, 3, now)
		if got != tc.want || reason != tc.reason {
			t.Errorf("%s: ShouldRequeue = %v, %q; want %v, %q", tc.name, got, reason, tc.want, tc.reason)
		}
	}
}

func TestFailureStatus(t *testing.T) {
	if got := queue.FailureStatus(services.Wrap(services.ErrTransient, "x", "y", "", nil)); got != queue.StatusPending {
		t.Fatalf("transient = %q", got)
	}
	if got := queue.FailureStatus(errors.New("folder vanished")); got != queue.StatusNeedsAttention {
		t.Fatalf("permanent = %q", got)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.IntegrityCheck || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	_ = db.Close()

	if _, err := queue.Open(cfg); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
