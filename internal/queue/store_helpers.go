package queue

import (
	"database/sql"
	"errors"
	"time"
)

const bookColumns = "id, path, current_author, current_title, status, reason, profile_json, confidence, verification_layer, user_locked, attempt_count, last_attempted, max_layer_reached, folder_triage, created_at, updated_at"

const historyColumns = "id, book_id, old_author, new_author, old_title, new_title, old_path, new_path, status, reason, undo_json, error, created_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanBook(scanner rowScanner) (*Book, error) {
	var (
		book          Book
		author        sql.NullString
		title         sql.NullString
		status        string
		reason        sql.NullString
		profileJSON   sql.NullString
		verification  int
		locked        int
		lastAttempted sql.NullString
		maxLayer      int
		triage        sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&book.ID,
		&book.Path,
		&author,
		&title,
		&status,
		&reason,
		&profileJSON,
		&book.Confidence,
		&verification,
		&locked,
		&book.AttemptCount,
		&lastAttempted,
		&maxLayer,
		&triage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	book.CurrentAuthor = author.String
	book.CurrentTitle = title.String
	book.Status = Status(status)
	book.Reason = reason.String
	book.ProfileJSON = profileJSON.String
	book.VerificationLayer = Layer(verification)
	book.UserLocked = locked != 0
	book.MaxLayerReached = Layer(maxLayer)
	book.FolderTriage = triage.String
	if t, err := parseTimeString(lastAttempted.String); err == nil {
		book.LastAttempted = t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		book.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		book.UpdatedAt = t
	}
	return &book, nil
}

func scanQueueItem(scanner rowScanner) (*QueueItem, error) {
	var (
		item     QueueItem
		layer    int
		reason   sql.NullString
		status   string
		addedRaw string
	)
	if err := scanner.Scan(&item.ID, &item.BookID, &item.Path, &layer, &item.Priority, &reason, &status, &addedRaw); err != nil {
		return nil, err
	}
	item.Layer = Layer(layer)
	item.Reason = reason.String
	item.Status = Status(status)
	if t, err := parseTimeString(addedRaw); err == nil {
		item.AddedAt = t
	}
	return &item, nil
}

func scanHistory(scanner rowScanner) (*HistoryEntry, error) {
	var (
		entry                          HistoryEntry
		oldAuthor, newAuthor           sql.NullString
		oldTitle, newTitle             sql.NullString
		oldPath, newPath               sql.NullString
		status                         string
		reason, undoJSON, errorMessage sql.NullString
		createdRaw, updatedRaw         string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.BookID,
		&oldAuthor,
		&newAuthor,
		&oldTitle,
		&newTitle,
		&oldPath,
		&newPath,
		&status,
		&reason,
		&undoJSON,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	entry.OldAuthor = oldAuthor.String
	entry.NewAuthor = newAuthor.String
	entry.OldTitle = oldTitle.String
	entry.NewTitle = newTitle.String
	entry.OldPath = oldPath.String
	entry.NewPath = newPath.String
	entry.Status = HistoryStatus(status)
	entry.Reason = reason.String
	entry.UndoJSON = undoJSON.String
	entry.Error = errorMessage.String
	if t, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = t
	}
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
