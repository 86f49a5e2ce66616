package api

import (
	"context"
	"errors"

	"librarian/internal/queue"
	"librarian/internal/services"
)

// historyLimit caps the history rows returned with a single book.
const historyLimit = 50

// QueueReader abstracts store interactions needed for API queries.
type QueueReader interface {
	ListQueue(ctx context.Context) ([]*queue.QueueItem, error)
	ListBooks(ctx context.Context, statuses ...queue.Status) ([]*queue.Book, error)
	GetBook(ctx context.Context, id int64) (*queue.Book, error)
	ListHistory(ctx context.Context, bookID int64, limit int) ([]*queue.HistoryEntry, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// QueueService exposes read-only store operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// Queue returns the queued books in processing order.
func (s *QueueService) Queue(ctx context.Context) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Books returns books filtered by status.
func (s *QueueService) Books(ctx context.Context, statuses ...queue.Status) ([]Book, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	books, err := s.store.ListBooks(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromBooks(books), nil
}

// Describe fetches a single book with its recent history. A missing book
// yields nil without error.
func (s *QueueService) Describe(ctx context.Context, id int64) (*BookResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	history, err := s.store.ListHistory(ctx, id, historyLimit)
	if err != nil {
		return nil, err
	}
	return &BookResponse{Book: FromBook(book), History: FromHistory(history)}, nil
}

// Stats returns store counts.
func (s *QueueService) Stats(ctx context.Context) (QueueStats, error) {
	if s == nil || s.store == nil {
		return QueueStats{}, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return FromStats(stats), nil
}
