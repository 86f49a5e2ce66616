package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"librarian/internal/profile"
)

// Status is the identification state of a book.
type Status string

const (
	StatusPending        Status = "pending"
	StatusVerified       Status = "verified"
	StatusNeedsFix       Status = "needs_fix"
	StatusNeedsAttention Status = "needs_attention"
	StatusFixed          Status = "fixed"
)

var allStatuses = []Status{
	StatusPending,
	StatusVerified,
	StatusNeedsFix,
	StatusNeedsAttention,
	StatusFixed,
}

// ParseStatus converts a string to a Status.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == candidate {
			return s, true
		}
	}
	return "", false
}

// Layer is a step of the identification pipeline. It is stored as an int.
type Layer int

const (
	LayerUnprocessed Layer = iota
	LayerAudio
	LayerAI
	LayerAPI
	LayerTerminal
)

var layerNames = [...]string{"unprocessed", "audio", "ai", "api", "folder"}

// String returns the layer name used in logs and history.
func (l Layer) String() string {
	if l < LayerUnprocessed || l > LayerTerminal {
		return fmt.Sprintf("layer(%d)", int(l))
	}
	return layerNames[l]
}

// Valid reports whether l is one of the defined layers.
func (l Layer) Valid() bool {
	return l >= LayerUnprocessed && l <= LayerTerminal
}

// HistoryStatus is the state of one proposed or applied fix.
type HistoryStatus string

const (
	HistoryPendingFix      HistoryStatus = "pending_fix"
	HistoryPendingApproval HistoryStatus = "pending_approval"
	HistoryRejected        HistoryStatus = "rejected"
	HistoryFixed           HistoryStatus = "fixed"
	HistoryUndone          HistoryStatus = "undone"
	HistoryError           HistoryStatus = "error"
	HistoryNeedsAttention  HistoryStatus = "needs_attention"
)

// Book is one library folder tracked by the store.
type Book struct {
	ID                int64
	Path              string
	CurrentAuthor     string
	CurrentTitle      string
	Status            Status
	Reason            string
	ProfileJSON       string
	Confidence        int
	VerificationLayer Layer
	UserLocked        bool
	AttemptCount      int
	LastAttempted     time.Time
	MaxLayerReached   Layer
	FolderTriage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile decodes the stored profile. A book without one yields nil.
func (b *Book) Profile() (*profile.BookProfile, error) {
	if b == nil || strings.TrimSpace(b.ProfileJSON) == "" {
		return nil, nil
	}
	var p profile.BookProfile
	if err := json.Unmarshal([]byte(b.ProfileJSON), &p); err != nil {
		return nil, fmt.Errorf("decode profile for book %d: %w", b.ID, err)
	}
	return &p, nil
}

// QueueItem is a book waiting for its next identification layer.
type QueueItem struct {
	ID       int64
	BookID   int64
	Path     string
	Layer    Layer
	Priority int
	Reason   string
	Status   Status
	AddedAt  time.Time
}

// HistoryEntry records one proposed or applied fix.
type HistoryEntry struct {
	ID        int64
	BookID    int64
	OldAuthor string
	NewAuthor string
	OldTitle  string
	NewTitle  string
	OldPath   string
	NewPath   string
	Status    HistoryStatus
	Reason    string
	UndoJSON  string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats summarizes the store contents.
type Stats struct {
	Books         int
	ByStatus      map[Status]int
	Locked        int
	Queued        int
	QueuedByLayer map[Layer]int
	PendingFixes  int
}

// StepResult is the outcome of one pipeline step for one book. CommitStep
// persists it atomically.
type StepResult struct {
	BookID  int64
	Profile *profile.BookProfile
	// Layer is the layer that just ran.
	Layer  Layer
	Status Status
	Reason string
	// Next is the layer to queue the book at. LayerTerminal removes the
	// book from the queue.
	Next         Layer
	FolderTriage string
	// History is recorded in the same transaction when set.
	History *HistoryEntry
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath         string
	DatabaseExists bool
	SchemaVersion  int
	IntegrityCheck bool
	TotalBooks     int
	Error          string
}
