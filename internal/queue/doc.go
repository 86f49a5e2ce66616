// Package queue persists books, the identification queue and fix history in
// SQLite.
//
// The Store owns the schema and every write. Books are keyed by folder path;
// each book has at most one queue row recording the identification layer it
// will run next. Pipeline steps are committed through CommitStep so that the
// profile, status, queue position and any history row change together.
//
// History rows are deduplicated by (book_id, status): recording a status a
// book already has in history replaces the older row.
//
// Schema changes append a migration in schema.go. Open applies pending
// migrations and refuses databases from a newer build.
package queue
