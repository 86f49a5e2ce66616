package testsupport

import (
	"context"
	"testing"

	"librarian/internal/config"
	"librarian/internal/queue"
)

// MustOpenStore opens the library database described by cfg. The store is
// closed when the test ends; closing it earlier is harmless.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open library store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewBook registers a clean-triage book folder.
func NewBook(t testing.TB, store *queue.Store, path, author, title string) *queue.Book {
	t.Helper()
	book, err := store.UpsertBook(context.Background(), path, author, title, "clean")
	if err != nil {
		t.Fatalf("register book %s: %v", path, err)
	}
	return book
}
