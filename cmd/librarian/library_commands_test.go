package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"librarian/internal/profile"
	"librarian/internal/services"
	"librarian/internal/testsupport"
)

func TestScanQueuesBooksAndQueueCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, env.lib("Robin Hobb", "Ship of Magic", "ship.epub"), 64)
	testsupport.WriteFile(t, env.lib("Jane Austen", "Emma", "emma.epub"), 64)

	out, err := env.run(t, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "2 book folders, 2 new, 2 queued")

	out, err = env.run(t, "scan")
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	requireContains(t, out, "0 new")

	out, err = env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Ship of Magic")
	requireContains(t, out, "unprocessed")

	out, err = env.run(t, "--json", "queue", "list")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var listed struct {
		Items []struct {
			BookID int64  `json:"bookId"`
			Layer  string `json:"layer"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode queue json: %v\n%s", err, out)
	}
	if len(listed.Items) != 2 {
		t.Fatalf("expected 2 queued items, got %d", len(listed.Items))
	}

	out, err = env.run(t, "queue", "remove", fmt.Sprintf("%d", listed.Items[0].BookID))
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed book")

	out, err = env.run(t, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 queued book(s)")

	out, err = env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestProcessEmptyQueue(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "process", "--limit", "5")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestAnalyzeDoesNotPersist(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := env.lib("Robin Hobb", "Ship of Magic")
	testsupport.WriteFile(t, filepath.Join(dir, "ship.epub"), 64)

	out, err := env.run(t, "--json", "analyze", dir)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var report struct {
		Path   string   `json:"path"`
		Status string   `json:"status"`
		Layers []string `json:"layers"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode analyze json: %v\n%s", err, out)
	}
	if report.Path != dir || report.Status == "" || len(report.Layers) == 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	if _, err := store.GetBookByPath(context.Background(), dir); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected analyze to leave the store untouched, got %v", err)
	}
}

func TestAnalyzeMissingFolder(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "analyze", env.lib("Nobody", "Nothing")); err == nil {
		t.Fatal("expected analyze of a missing folder to fail")
	}
}

func TestBookLockPinsFields(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenStore(t, env.cfg)
	book := testsupport.NewBook(t, store, env.lib("Unknown", "emma"), "Unknown", "emma")
	id := fmt.Sprintf("%d", book.ID)

	if _, err := env.run(t, "book", "lock", id); err == nil {
		t.Fatal("expected lock without values to fail")
	}
	out, err := env.run(t, "book", "lock", id, "--author", "Jane Austen", "--title", "Emma")
	if err != nil {
		t.Fatalf("book lock: %v", err)
	}
	requireContains(t, out, "Locked book "+id)

	got, err := store.GetBook(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if !got.UserLocked {
		t.Fatal("expected book to be user locked")
	}
	p, err := got.Profile()
	if err != nil || p == nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Value(profile.FieldAuthor) != "Jane Austen" || !p.IsLocked(profile.FieldTitle) {
		t.Fatalf("unexpected profile fields %+v", p.Fields)
	}

	out, err = env.run(t, "book", "show", id)
	if err != nil {
		t.Fatalf("book show: %v", err)
	}
	requireContains(t, out, "Jane Austen")
	requireContains(t, out, "locked")
}

func TestBookCommandsRejectBadInput(t *testing.T) {
	env := setupCLITestEnv(t)
	cases := [][]string{
		{"book", "show", "42"},
		{"book", "show", "abc"},
		{"book", "list", "--status", "lost"},
		{"lock", "42", "--author", "Someone"},
	}
	for _, args := range cases {
		if _, err := env.run(t, args...); err == nil {
			t.Errorf("expected %v to fail", args)
		}
	}
}

func TestBookListFiltersByStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenStore(t, env.cfg)
	testsupport.NewBook(t, store, env.lib("Robin Hobb", "Ship of Magic"), "Robin Hobb", "Ship of Magic")

	out, err := env.run(t, "book", "list", "--status", "pending")
	if err != nil {
		t.Fatalf("book list: %v", err)
	}
	requireContains(t, out, "Ship of Magic")

	out, err = env.run(t, "book", "list", "--status", "verified")
	if err != nil {
		t.Fatalf("book list: %v", err)
	}
	requireContains(t, out, "No books found")
}
