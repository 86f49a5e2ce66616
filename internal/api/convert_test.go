package api

import (
	"encoding/json"
	"testing"
	"time"

	"librarian/internal/queue"
)

func TestFromBookPassesProfileThrough(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	book := &queue.Book{
		ID:                7,
		Path:              "/library/Robin Hobb/Ship of Magic",
		CurrentAuthor:     "Robin Hobb",
		CurrentTitle:      "Ship of Magic",
		Status:            queue.StatusVerified,
		Confidence:        85,
		VerificationLayer: queue.LayerAPI,
		MaxLayerReached:   queue.LayerAPI,
		ProfileJSON:       `{"author":{"value":"Robin Hobb"}}`,
		CreatedAt:         now,
	}
	dto := FromBook(book)
	if dto.VerificationLayer != "api" {
		t.Fatalf("expected layer name, got %q", dto.VerificationLayer)
	}
	if dto.CreatedAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", dto.CreatedAt)
	}
	if dto.LastAttempted != "" {
		t.Fatalf("zero time should be omitted, got %q", dto.LastAttempted)
	}
	data, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	profile, ok := decoded["profile"].(map[string]any)
	if !ok || profile["author"] == nil {
		t.Fatalf("expected embedded profile object, got %v", decoded["profile"])
	}
}

func TestFromBookDropsInvalidProfile(t *testing.T) {
	dto := FromBook(&queue.Book{ID: 1, ProfileJSON: "{broken"})
	if dto.Profile != nil {
		t.Fatalf("expected invalid profile dropped, got %s", dto.Profile)
	}
}

func TestFromHistoryEntryReportsUndoable(t *testing.T) {
	tests := []struct {
		name   string
		status queue.HistoryStatus
		undo   string
		want   bool
	}{
		{"fixed with package", queue.HistoryFixed, `{"id":"x"}`, true},
		{"error with package", queue.HistoryError, `{"id":"x"}`, true},
		{"fixed without package", queue.HistoryFixed, "", false},
		{"undone", queue.HistoryUndone, `{"id":"x"}`, false},
		{"pending", queue.HistoryPendingFix, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromHistoryEntry(&queue.HistoryEntry{ID: 1, Status: tt.status, UndoJSON: tt.undo})
			if got.Undoable != tt.want {
				t.Fatalf("Undoable = %v, want %v", got.Undoable, tt.want)
			}
		})
	}
}

func TestFromStatsUsesNames(t *testing.T) {
	stats := queue.Stats{
		Books:         3,
		ByStatus:      map[queue.Status]int{queue.StatusVerified: 2, queue.StatusPending: 1},
		Queued:        1,
		QueuedByLayer: map[queue.Layer]int{queue.LayerAudio: 1},
	}
	dto := FromStats(stats)
	if dto.ByStatus["verified"] != 2 || dto.ByLayer["audio"] != 1 {
		t.Fatalf("unexpected stats %+v", dto)
	}
}
