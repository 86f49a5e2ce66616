package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"librarian/internal/services"
)

// InsertHistory records a history row and returns its id. An older row for
// the same (book_id, status) is replaced.
func (s *Store) InsertHistory(ctx context.Context, entry HistoryEntry) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertHistoryTx(ctx, tx, entry, time.Now())
		return err
	})
	return id, err
}

func insertHistoryTx(ctx context.Context, tx *sql.Tx, entry HistoryEntry, now time.Time) (int64, error) {
	if entry.BookID == 0 || entry.Status == "" {
		return 0, services.Wrap(services.ErrValidation, "queue", "insert history", "book id and status required", nil)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM history WHERE book_id = ? AND status = ?", entry.BookID, entry.Status); err != nil {
		return 0, fmt.Errorf("dedupe history: %w", err)
	}
	ts := timestamp(now)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO history (book_id, old_author, new_author, old_title, new_title, old_path, new_path,
            status, reason, undo_json, error, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.BookID,
		nullableString(entry.OldAuthor),
		nullableString(entry.NewAuthor),
		nullableString(entry.OldTitle),
		nullableString(entry.NewTitle),
		nullableString(entry.OldPath),
		nullableString(entry.NewPath),
		entry.Status,
		nullableString(entry.Reason),
		nullableString(entry.UndoJSON),
		nullableString(entry.Error),
		ts,
		ts,
	)
	if err != nil {
		return 0, fmt.Errorf("insert history: %w", err)
	}
	return res.LastInsertId()
}

// GetHistory fetches one history row. A missing row is services.ErrNotFound.
func (s *Store) GetHistory(ctx context.Context, id int64) (*HistoryEntry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+historyColumns+" FROM history WHERE id = ?", id)
	entry, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "queue", "get history", fmt.Sprintf("history %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get history %d: %w", id, err)
	}
	return entry, nil
}

// ListHistory returns history rows newest first. bookID 0 lists all books;
// limit 0 means no limit.
func (s *Store) ListHistory(ctx context.Context, bookID int64, limit int) ([]*HistoryEntry, error) {
	query := "SELECT " + historyColumns + " FROM history"
	var args []any
	if bookID > 0 {
		query += " WHERE book_id = ?"
		args = append(args, bookID)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	var entries []*HistoryEntry
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateHistoryStatus moves a history row to status. Moving to a status the
// book already has elsewhere in history replaces that older row.
func (s *Store) UpdateHistoryStatus(ctx context.Context, id int64, status HistoryStatus, errMessage string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var bookID int64
		if err := tx.QueryRowContext(ctx, "SELECT book_id FROM history WHERE id = ?", id).Scan(&bookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "queue", "update history", fmt.Sprintf("history %d", id), nil)
			}
			return fmt.Errorf("load history %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM history WHERE book_id = ? AND status = ? AND id != ?", bookID, status, id); err != nil {
			return fmt.Errorf("dedupe history: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE history SET status = ?, error = ?, updated_at = ? WHERE id = ?",
			status, nullableString(errMessage), timestamp(time.Now()), id,
		); err != nil {
			return fmt.Errorf("update history %d: %w", id, err)
		}
		return nil
	})
}

// SetHistoryUndo stores the undo package of a history row.
func (s *Store) SetHistoryUndo(ctx context.Context, id int64, undoJSON string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE history SET undo_json = ?, updated_at = ? WHERE id = ?",
		nullableString(undoJSON), timestamp(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("store undo for history %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "queue", "store undo", fmt.Sprintf("history %d", id), nil)
	}
	return nil
}
