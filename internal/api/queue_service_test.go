package api

import (
	"context"
	"errors"
	"testing"

	"librarian/internal/queue"
	"librarian/internal/services"
)

type mockQueueReader struct {
	items   []*queue.QueueItem
	books   []*queue.Book
	history []*queue.HistoryEntry
	stats   queue.Stats
	err     error
}

func (m *mockQueueReader) ListQueue(context.Context) ([]*queue.QueueItem, error) {
	return m.items, m.err
}

func (m *mockQueueReader) ListBooks(context.Context, ...queue.Status) ([]*queue.Book, error) {
	return m.books, m.err
}

func (m *mockQueueReader) GetBook(_ context.Context, id int64) (*queue.Book, error) {
	for _, b := range m.books {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "queue", "get book", "missing", nil)
}

func (m *mockQueueReader) ListHistory(context.Context, int64, int) ([]*queue.HistoryEntry, error) {
	return m.history, m.err
}

func (m *mockQueueReader) Stats(context.Context) (queue.Stats, error) {
	return m.stats, m.err
}

func TestQueueServiceQueue(t *testing.T) {
	reader := &mockQueueReader{items: []*queue.QueueItem{{ID: 1, BookID: 4, Path: "/lib/a", Layer: queue.LayerAI, Status: queue.StatusPending}}}
	got, err := NewQueueService(reader).Queue(context.Background())
	if err != nil {
		t.Fatalf("Queue returned error: %v", err)
	}
	if len(got) != 1 || got[0].Layer != "ai" || got[0].BookID != 4 {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestQueueServiceDescribe(t *testing.T) {
	reader := &mockQueueReader{
		books:   []*queue.Book{{ID: 2, CurrentAuthor: "Robin Hobb", Status: queue.StatusNeedsFix}},
		history: []*queue.HistoryEntry{{ID: 9, BookID: 2, Status: queue.HistoryPendingFix}},
	}
	svc := NewQueueService(reader)
	resp, err := svc.Describe(context.Background(), 2)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if resp == nil || resp.Book.Author != "Robin Hobb" || len(resp.History) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	missing, err := svc.Describe(context.Background(), 99)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing book, got %+v, %v", missing, err)
	}
}

func TestQueueServicePropagatesErrors(t *testing.T) {
	reader := &mockQueueReader{err: errors.New("db down")}
	if _, err := NewQueueService(reader).Stats(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNilQueueServiceIsEmpty(t *testing.T) {
	var svc *QueueService
	items, err := svc.Queue(context.Background())
	if err != nil || items != nil {
		t.Fatalf("expected empty result, got %v, %v", items, err)
	}
}
