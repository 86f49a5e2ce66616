package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats counts books by status, locked books, queued books by layer, and
// fixes awaiting application or approval.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{ByStatus: make(map[Status]int), QueuedByLayer: make(map[Layer]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM books GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("book stats: %w", err)
	}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.Books += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT layer, COUNT(1) FROM queue_items GROUP BY layer`)
	if err != nil {
		return stats, fmt.Errorf("queue stats: %w", err)
	}
	for rows.Next() {
		var layer, count int
		if err := rows.Scan(&layer, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.QueuedByLayer[Layer(layer)] = count
		stats.Queued += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM books WHERE user_locked = 1`).Scan(&stats.Locked); err != nil {
		return stats, fmt.Errorf("locked stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM history WHERE status IN (?, ?)`,
		HistoryPendingFix, HistoryPendingApproval,
	).Scan(&stats.PendingFixes); err != nil {
		return stats, fmt.Errorf("history stats: %w", err)
	}
	return stats, nil
}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	version, err := s.schemaVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM books").Scan(&health.TotalBooks); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count books: %w", err)
	}
	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
