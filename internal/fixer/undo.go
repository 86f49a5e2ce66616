package fixer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"librarian/internal/services"
)

// UndoPackage is everything needed to reverse an applied fix. It is written
// to the history row before any file is touched.
type UndoPackage struct {
	ID        string    `json:"id"`
	HistoryID int64     `json:"history_id"`
	BookID    int64     `json:"book_id"`
	OldPath   string    `json:"old_path"`
	NewPath   string    `json:"new_path"`
	OldAuthor string    `json:"old_author,omitempty"`
	OldTitle  string    `json:"old_title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// Files are slash-separated paths relative to both folders, moved by
	// this fix.
	Files []string `json:"files"`
	// Transferred are files an earlier interrupted move left at NewPath.
	// Their source copies were removed after a content check; undo copies
	// them back and leaves NewPath's copy in place.
	Transferred []string `json:"transferred,omitempty"`
	// Tags holds the original values of every embedded key, per audio
	// file. An empty value means the key was absent.
	Tags map[string]map[string]string `json:"tags,omitempty"`
}

func (u UndoPackage) encode() (string, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode undo package: %w", err)
	}
	return string(data), nil
}

func decodeUndo(raw string) (UndoPackage, error) {
	var u UndoPackage
	if strings.TrimSpace(raw) == "" {
		return u, services.Wrap(services.ErrValidation, "fixer", "undo", "history row has no undo package", nil)
	}
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return u, services.Wrap(services.ErrValidation, "fixer", "undo", "undo package unreadable", err)
	}
	if u.OldPath == "" || u.NewPath == "" {
		return u, services.Wrap(services.ErrValidation, "fixer", "undo", "undo package lacks paths", nil)
	}
	return u, nil
}
