package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Book describes a library folder in a transport-friendly format.
type Book struct {
	ID                int64           `json:"id"`
	Path              string          `json:"path"`
	Author            string          `json:"author"`
	Title             string          `json:"title"`
	Status            string          `json:"status"`
	Reason            string          `json:"reason,omitempty"`
	Confidence        int             `json:"confidence"`
	VerificationLayer string          `json:"verificationLayer"`
	MaxLayerReached   string          `json:"maxLayerReached"`
	UserLocked        bool            `json:"userLocked"`
	AttemptCount      int             `json:"attemptCount"`
	LastAttempted     string          `json:"lastAttempted,omitempty"`
	FolderTriage      string          `json:"folderTriage,omitempty"`
	CreatedAt         string          `json:"createdAt,omitempty"`
	UpdatedAt         string          `json:"updatedAt,omitempty"`
	Profile           json.RawMessage `json:"profile,omitempty"`
}

// QueueItem describes a queued book.
type QueueItem struct {
	ID       int64  `json:"id"`
	BookID   int64  `json:"bookId"`
	Path     string `json:"path"`
	Layer    string `json:"layer"`
	Priority int    `json:"priority"`
	Reason   string `json:"reason,omitempty"`
	Status   string `json:"status"`
	AddedAt  string `json:"addedAt,omitempty"`
}

// HistoryEntry describes one proposed or applied fix.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	BookID    int64  `json:"bookId"`
	OldAuthor string `json:"oldAuthor"`
	NewAuthor string `json:"newAuthor"`
	OldTitle  string `json:"oldTitle"`
	NewTitle  string `json:"newTitle"`
	OldPath   string `json:"oldPath"`
	NewPath   string `json:"newPath"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	Undoable  bool   `json:"undoable"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// QueueStats summarizes store counts.
type QueueStats struct {
	Books        int            `json:"books"`
	ByStatus     map[string]int `json:"byStatus"`
	Locked       int            `json:"locked"`
	Queued       int            `json:"queued"`
	ByLayer      map[string]int `json:"byLayer"`
	PendingFixes int            `json:"pendingFixes"`
}

// BatchSummary counts the outcomes of one pipeline batch.
type BatchSummary struct {
	Processed      int `json:"processed"`
	Advanced       int `json:"advanced"`
	Verified       int `json:"verified"`
	NeedsFix       int `json:"needsFix"`
	Fixed          int `json:"fixed"`
	NeedsAttention int `json:"needsAttention"`
	Skipped        int `json:"skipped"`
}

// Health mirrors readiness reporting for daemon components.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running        bool         `json:"running"`
	LastError      string       `json:"lastError,omitempty"`
	LastBatch      BatchSummary `json:"lastBatch"`
	LastBatchAt    string       `json:"lastBatchAt,omitempty"`
	BatchStartedAt string       `json:"batchStartedAt,omitempty"`
	Batches        int          `json:"batches"`
	Processed      int          `json:"processed"`
	Queue          QueueStats   `json:"queue"`
	Health         Health       `json:"health"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	LogPath      string             `json:"logPath,omitempty"`
	Watching     string             `json:"watching,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// BookListResponse wraps a collection of books.
type BookListResponse struct {
	Books []Book `json:"books"`
}

// BookResponse wraps a single book with its fix history.
type BookResponse struct {
	Book    Book           `json:"book"`
	History []HistoryEntry `json:"history"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}
