// Package fixer turns identified books into folder moves.
//
// ClassifyFix asks the safety gate where a book belongs and records the
// verdict as a history row. Apply executes an approved row: it first stores
// an undo package (paths, moved files, original tags) on the row, then moves
// the files and optionally re-embeds tags. Undo reverses a fixed row from its
// package.
package fixer
