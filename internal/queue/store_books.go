package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"librarian/internal/profile"
	"librarian/internal/services"
)

// UpsertBook records a book folder, refreshing the names read from its path
// and its folder triage. Existing status, profile and lock are kept.
func (s *Store) UpsertBook(ctx context.Context, path, author, title, triage string) (*Book, error) {
	now := timestamp(time.Now())
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO books (path, current_author, current_title, status, folder_triage, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
            current_author = excluded.current_author,
            current_title = excluded.current_title,
            folder_triage = excluded.folder_triage,
            updated_at = excluded.updated_at`,
		path,
		nullableString(author),
		nullableString(title),
		StatusPending,
		nullableString(triage),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert book %q: %w", path, err)
	}
	return s.GetBookByPath(ctx, path)
}

// GetBook fetches a book by id. A missing book is services.ErrNotFound.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+bookColumns+" FROM books WHERE id = ?", id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "queue", "get book", fmt.Sprintf("book %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return book, nil
}

// GetBookByPath fetches a book by folder path. A missing book is
// services.ErrNotFound.
func (s *Store) GetBookByPath(ctx context.Context, path string) (*Book, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+bookColumns+" FROM books WHERE path = ?", path)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "queue", "get book", path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %q: %w", path, err)
	}
	return book, nil
}

// ListBooks returns books filtered by status, ordered by id. No statuses
// means all books.
func (s *Store) ListBooks(ctx context.Context, statuses ...Status) ([]*Book, error) {
	query := "SELECT " + bookColumns + " FROM books"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()
	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// SaveProfile stores a profile and its overall confidence on the book.
func (s *Store) SaveProfile(ctx context.Context, bookID int64, p *profile.BookProfile) error {
	data, err := encodeProfile(p)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE books SET profile_json = ?, confidence = ?, updated_at = ? WHERE id = ?",
		data, p.Confidence(), timestamp(time.Now()), bookID,
	)
	if err != nil {
		return fmt.Errorf("save profile for book %d: %w", bookID, err)
	}
	return requireRow(res, bookID)
}

// LoadProfile returns the stored profile or nil when none was saved.
func (s *Store) LoadProfile(ctx context.Context, bookID int64) (*profile.BookProfile, error) {
	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return book.Profile()
}

// LockBook stores a profile with user-locked fields, marks the book locked
// and removes it from the queue.
func (s *Store) LockBook(ctx context.Context, bookID int64, p *profile.BookProfile) error {
	data, err := encodeProfile(p)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE books SET profile_json = ?, confidence = ?, user_locked = 1, updated_at = ? WHERE id = ?",
			data, p.Confidence(), timestamp(time.Now()), bookID,
		)
		if err != nil {
			return fmt.Errorf("lock book %d: %w", bookID, err)
		}
		if err := requireRow(res, bookID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM queue_items WHERE book_id = ?", bookID); err != nil {
			return fmt.Errorf("dequeue locked book %d: %w", bookID, err)
		}
		return nil
	})
}

// UpdateBookStatus sets the status and reason of a book.
func (s *Store) UpdateBookStatus(ctx context.Context, bookID int64, status Status, reason string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE books SET status = ?, reason = ?, updated_at = ? WHERE id = ?",
		status, nullableString(reason), timestamp(time.Now()), bookID,
	)
	if err != nil {
		return fmt.Errorf("update book %d status: %w", bookID, err)
	}
	return requireRow(res, bookID)
}

// MoveBook records a book's new folder and names after a fix or undo.
func (s *Store) MoveBook(ctx context.Context, bookID int64, path, author, title string, status Status) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE books SET path = ?, current_author = ?, current_title = ?, status = ?, reason = NULL, updated_at = ?
         WHERE id = ?`,
		path, nullableString(author), nullableString(title), status, timestamp(time.Now()), bookID,
	)
	if err != nil {
		return fmt.Errorf("move book %d: %w", bookID, err)
	}
	return requireRow(res, bookID)
}

// CommitStep persists one pipeline step: the profile, status and layer
// bookkeeping on the book, its queue position, and an optional history row.
// Reaching LayerTerminal counts one attempt and removes the queue row.
func (s *Store) CommitStep(ctx context.Context, step StepResult) error {
	if !step.Layer.Valid() || !step.Next.Valid() {
		return services.Wrap(services.ErrValidation, "queue", "commit step", fmt.Sprintf("invalid layer %d -> %d", step.Layer, step.Next), nil)
	}
	var profileJSON any
	confidence := 0
	if step.Profile != nil {
		data, err := encodeProfile(step.Profile)
		if err != nil {
			return err
		}
		profileJSON = data
		confidence = step.Profile.Confidence()
	}
	now := time.Now()
	done := step.Next == LayerTerminal
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE books SET
                profile_json = COALESCE(?, profile_json),
                confidence = CASE WHEN ? IS NULL THEN confidence ELSE ? END,
                status = ?,
                reason = ?,
                folder_triage = COALESCE(?, folder_triage),
                max_layer_reached = MAX(max_layer_reached, ?),
                verification_layer = CASE WHEN ? THEN ? ELSE verification_layer END,
                attempt_count = attempt_count + ?,
                last_attempted = CASE WHEN ? THEN ? ELSE last_attempted END,
                updated_at = ?
             WHERE id = ?`,
			profileJSON,
			profileJSON, confidence,
			step.Status,
			nullableString(step.Reason),
			nullableString(step.FolderTriage),
			int(step.Layer),
			boolToInt(done), int(step.Layer),
			boolToInt(done),
			boolToInt(done), timestamp(now),
			timestamp(now),
			step.BookID,
		)
		if err != nil {
			return fmt.Errorf("commit step for book %d: %w", step.BookID, err)
		}
		if err := requireRow(res, step.BookID); err != nil {
			return err
		}
		if done {
			if _, err := tx.ExecContext(ctx, "DELETE FROM queue_items WHERE book_id = ?", step.BookID); err != nil {
				return fmt.Errorf("dequeue book %d: %w", step.BookID, err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, "UPDATE queue_items SET layer = ? WHERE book_id = ?", int(step.Next), step.BookID); err != nil {
				return fmt.Errorf("advance book %d: %w", step.BookID, err)
			}
		}
		if step.History != nil {
			entry := *step.History
			entry.BookID = step.BookID
			if _, err := insertHistoryTx(ctx, tx, entry, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeProfile(p *profile.BookProfile) (string, error) {
	if p == nil {
		return "", services.Wrap(services.ErrValidation, "queue", "encode profile", "nil profile", nil)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}
	return string(data), nil
}

func requireRow(res sql.Result, bookID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "queue", "update book", fmt.Sprintf("book %d", bookID), nil)
	}
	return nil
}
