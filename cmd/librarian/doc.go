// Package main hosts the librarian CLI.
//
// Commands open the queue store directly, so they work whether or not the
// daemon is running; SQLite WAL mode and the store's busy retries let both
// share the database. `librarian daemon` runs the background workflow in
// the foreground until interrupted.
package main
