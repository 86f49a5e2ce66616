// Package preflight provides readiness checks for the directories, binaries
// and remote services librarian depends on.
//
// The daemon runs RunAll at startup and refuses to start when a required
// directory is unusable; "librarian doctor" prints every check. Each remote
// check is gated by its config toggle so disabled layers are skipped.
package preflight
