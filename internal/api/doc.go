// Package api defines wire-format types and converters for the HTTP API and
// the CLI's --json output. It translates store models into transport-friendly
// DTOs so consumers never couple to internal types.
//
// # Key Types
//
// Book: a library folder with its status, confidence and decoded profile.
//
// QueueItem, HistoryEntry: queue rows and fix history rows.
//
// WorkflowStatus, DaemonStatus: runtime state of the background worker and
// the daemon process.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, queue.Layer,
// queue.HistoryStatus) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds. Profiles pass through as json.RawMessage to
// avoid double encoding; undo packages are never exposed.
package api
