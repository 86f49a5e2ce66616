package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a database from user_version i to i+1. The
// database's user_version pragma records how many have run.
var migrations = []string{
	schemaSQL,
}

// ErrSchemaMismatch reports a database written by a newer librarian.
var ErrSchemaMismatch = errors.New("database schema is newer than this build")

func latestSchemaVersion() int {
	return len(migrations)
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

// migrate runs every pending migration, each in its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > latestSchemaVersion() {
		return fmt.Errorf("%w: database at v%d, build supports v%d", ErrSchemaMismatch, current, latestSchemaVersion())
	}
	for v := current; v < latestSchemaVersion(); v++ {
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
				return err
			}
			// PRAGMA does not accept bound parameters.
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1))
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate schema to v%d: %w", v+1, err)
		}
	}
	return nil
}
