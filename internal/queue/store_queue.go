package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const queueSelect = `SELECT q.id, q.book_id, b.path, q.layer, q.priority, q.reason, b.status, q.added_at
    FROM queue_items q JOIN books b ON b.id = q.book_id`

// Enqueue places a book in the queue at layer. A book already queued keeps
// its position and gets the higher of the two priorities.
func (s *Store) Enqueue(ctx context.Context, bookID int64, layer Layer, priority int, reason string) error {
	if !layer.Valid() || layer == LayerTerminal {
		return fmt.Errorf("enqueue book %d: invalid layer %d", bookID, layer)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO queue_items (book_id, layer, priority, reason, added_at)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT(book_id) DO UPDATE SET
                priority = MAX(queue_items.priority, excluded.priority),
                reason = COALESCE(excluded.reason, queue_items.reason)`,
			bookID, int(layer), priority, nullableString(reason), timestamp(time.Now()),
		); err != nil {
			return fmt.Errorf("enqueue book %d: %w", bookID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE books SET status = ?, updated_at = ? WHERE id = ? AND status != ?",
			StatusPending, timestamp(time.Now()), bookID, StatusPending,
		); err != nil {
			return fmt.Errorf("mark book %d pending: %w", bookID, err)
		}
		return nil
	})
}

// DequeueBatch returns up to n queued books, highest priority first, then
// oldest first. Rows stay queued until CommitStep or RemoveFromQueue.
func (s *Store) DequeueBatch(ctx context.Context, n int) ([]*QueueItem, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.queryQueue(ctx, queueSelect+" ORDER BY q.priority DESC, q.added_at, q.id LIMIT ?", n)
}

// ListQueue returns every queued book in processing order.
func (s *Store) ListQueue(ctx context.Context) ([]*QueueItem, error) {
	return s.queryQueue(ctx, queueSelect+" ORDER BY q.priority DESC, q.added_at, q.id")
}

func (s *Store) queryQueue(ctx context.Context, query string, args ...any) ([]*QueueItem, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()
	var items []*QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RemoveFromQueue drops a book's queue row. It reports whether one existed.
func (s *Store) RemoveFromQueue(ctx context.Context, bookID int64) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM queue_items WHERE book_id = ?", bookID)
	if err != nil {
		return false, fmt.Errorf("remove book %d from queue: %w", bookID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearQueue empties the queue and returns the number of rows removed.
func (s *Store) ClearQueue(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM queue_items")
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// QueueDepth returns the number of queued books.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM queue_items").Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}
