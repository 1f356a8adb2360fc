// Package sqlite provides the default, file-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/landscape/pkg/storage/sqlstore"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS checkpoints (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT    NOT NULL UNIQUE,
		session_id TEXT    NOT NULL,
		created_at INTEGER NOT NULL,
		reason     TEXT    NOT NULL,
		snapshot   TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS checkpoints_session_seq ON checkpoints (session_id, seq)`,
	`CREATE TABLE IF NOT EXISTS profile_fields (
		subject_key TEXT    NOT NULL,
		field       TEXT    NOT NULL,
		value       TEXT    NOT NULL,
		updated_at  INTEGER NOT NULL,
		PRIMARY KEY (subject_key, field)
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_key TEXT    NOT NULL,
		session_id  TEXT    NOT NULL,
		recorded_at INTEGER NOT NULL,
		summary     TEXT    NOT NULL,
		data        TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS history_subject_seq ON history (subject_key, seq)`,
}

// Driver implements storage.Driver on SQLite.
type Driver struct {
	*sqlstore.Store
}

// NewDriver opens (creating if needed) the database at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: ":memory:" databases are per-connection, and file
	// databases avoid SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	store, err := sqlstore.New(ctx, db, dialect.SQLite, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Driver{Store: store}, nil
}
