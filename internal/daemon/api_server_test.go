package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"librarian/internal/api"
	"librarian/internal/queue"
	"librarian/internal/testsupport"
	"librarian/internal/workflow"
)

func newTestServer(t *testing.T, token string) (*apiServer, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := &Daemon{cfg: cfg, store: store, workflow: workflow.NewManager(cfg, nil, store, nil)}
	srv := &apiServer{daemon: d, queueSvc: api.NewQueueService(store)}
	srv.server = &http.Server{Handler: srv.routes(token)}
	return srv, store
}

func TestAPIServerHandleBooks(t *testing.T) {
	srv, store := newTestServer(t, "")
	book := testsupport.NewBook(t, store, "/library/Robin Hobb/Ship of Magic", "Robin Hobb", "Ship of Magic")
	if err := store.Enqueue(context.Background(), book.ID, queue.LayerAudio, 0, "new"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/books?status=pending", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.BookListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Books) != 1 || resp.Books[0].Title != "Ship of Magic" {
		t.Fatalf("unexpected books: %+v", resp.Books)
	}

	w = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queue", nil))
	var queued api.QueueListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &queued); err != nil {
		t.Fatalf("failed to decode queue: %v", err)
	}
	if len(queued.Items) != 1 || queued.Items[0].Layer != "audio" {
		t.Fatalf("unexpected queue: %+v", queued.Items)
	}
}

func TestAPIServerRejectsUnknownStatus(t *testing.T) {
	srv, _ := newTestServer(t, "")
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/books?status=ripping", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerHandleBook(t *testing.T) {
	srv, store := newTestServer(t, "")
	book := testsupport.NewBook(t, store, "/library/Ann Leckie/Ancillary Justice", "Ann Leckie", "Ancillary Justice")

	tests := []struct {
		path string
		want int
	}{
		{"/api/books/" + itoa(book.ID), http.StatusOK},
		{"/api/books/999", http.StatusNotFound},
		{"/api/books/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}

func TestHealthzBypassesAuth(t *testing.T) {
	srv, _ := newTestServer(t, "token")
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	// The workflow is not started, so the probe answers but reports not ready.
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queue", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
