package api

import (
	"encoding/json"
	"strings"
	"time"

	"librarian/internal/pipeline"
	"librarian/internal/queue"
	"librarian/internal/workflow"
)

// FromBook converts a store book to its API representation.
func FromBook(book *queue.Book) Book {
	if book == nil {
		return Book{}
	}
	dto := Book{
		ID:                book.ID,
		Path:              book.Path,
		Author:            book.CurrentAuthor,
		Title:             book.CurrentTitle,
		Status:            string(book.Status),
		Reason:            book.Reason,
		Confidence:        book.Confidence,
		VerificationLayer: book.VerificationLayer.String(),
		MaxLayerReached:   book.MaxLayerReached.String(),
		UserLocked:        book.UserLocked,
		AttemptCount:      book.AttemptCount,
		LastAttempted:     formatTime(book.LastAttempted),
		FolderTriage:      book.FolderTriage,
		CreatedAt:         formatTime(book.CreatedAt),
		UpdatedAt:         formatTime(book.UpdatedAt),
	}
	if raw := strings.TrimSpace(book.ProfileJSON); raw != "" && json.Valid([]byte(raw)) {
		dto.Profile = json.RawMessage(raw)
	}
	return dto
}

// FromBooks converts a slice of books.
func FromBooks(books []*queue.Book) []Book {
	out := make([]Book, 0, len(books))
	for _, book := range books {
		if book == nil {
			continue
		}
		out = append(out, FromBook(book))
	}
	return out
}

// FromQueueItems converts queue rows.
func FromQueueItems(items []*queue.QueueItem) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, QueueItem{
			ID:       item.ID,
			BookID:   item.BookID,
			Path:     item.Path,
			Layer:    item.Layer.String(),
			Priority: item.Priority,
			Reason:   item.Reason,
			Status:   string(item.Status),
			AddedAt:  formatTime(item.AddedAt),
		})
	}
	return out
}

// FromHistoryEntry converts a history row. The undo package itself stays
// internal; only its presence is reported.
func FromHistoryEntry(entry *queue.HistoryEntry) HistoryEntry {
	if entry == nil {
		return HistoryEntry{}
	}
	return HistoryEntry{
		ID:        entry.ID,
		BookID:    entry.BookID,
		OldAuthor: entry.OldAuthor,
		NewAuthor: entry.NewAuthor,
		OldTitle:  entry.OldTitle,
		NewTitle:  entry.NewTitle,
		OldPath:   entry.OldPath,
		NewPath:   entry.NewPath,
		Status:    string(entry.Status),
		Reason:    entry.Reason,
		Error:     entry.Error,
		Undoable:  entry.UndoJSON != "" && (entry.Status == queue.HistoryFixed || entry.Status == queue.HistoryError),
		CreatedAt: formatTime(entry.CreatedAt),
		UpdatedAt: formatTime(entry.UpdatedAt),
	}
}

// FromHistory converts history rows.
func FromHistory(entries []*queue.HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		out = append(out, FromHistoryEntry(entry))
	}
	return out
}

// FromStats converts store counts, keying maps by status and layer names.
func FromStats(stats queue.Stats) QueueStats {
	dto := QueueStats{
		Books:        stats.Books,
		ByStatus:     make(map[string]int, len(stats.ByStatus)),
		Locked:       stats.Locked,
		Queued:       stats.Queued,
		ByLayer:      make(map[string]int, len(stats.QueuedByLayer)),
		PendingFixes: stats.PendingFixes,
	}
	for status, count := range stats.ByStatus {
		dto.ByStatus[string(status)] = count
	}
	for layer, count := range stats.QueuedByLayer {
		dto.ByLayer[layer.String()] = count
	}
	return dto
}

// FromSummary converts a batch summary.
func FromSummary(s pipeline.Summary) BatchSummary {
	return BatchSummary{
		Processed:      s.Processed,
		Advanced:       s.Advanced,
		Verified:       s.Verified,
		NeedsFix:       s.NeedsFix,
		Fixed:          s.Fixed,
		NeedsAttention: s.NeedsAttention,
		Skipped:        s.Skipped,
	}
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(s workflow.StatusSummary) WorkflowStatus {
	return WorkflowStatus{
		Running:        s.Running,
		LastError:      s.LastError,
		LastBatch:      FromSummary(s.LastBatch),
		LastBatchAt:    formatTime(s.LastBatchAt),
		BatchStartedAt: formatTime(s.BatchStartedAt),
		Batches:        s.Batches,
		Processed:      s.Processed,
		Queue:          FromStats(s.Queue),
		Health: Health{
			Name:   s.Health.Name,
			Ready:  s.Health.Ready,
			Detail: s.Health.Detail,
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
