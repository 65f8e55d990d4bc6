// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/KimYongKuk/commercial-analysis/pkg/storage/sqlstore"
)

var dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL DEFAULT '',
			user_id         TEXT NOT NULL DEFAULT '',
			query           TEXT NOT NULL,
			answer          TEXT NOT NULL DEFAULT '',
			error           TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			started_at_ns   INTEGER NOT NULL,
			duration_ns     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS turns_conversation_idx ON turns (conversation_id, started_at_ns)`,
	},
}

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqlstore.Store
}

// NewDriver opens (or creates) the database at dbPath and applies the
// schema. dbPath can be a file path or ":memory:".
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every :memory: connection is a separate database, so keep exactly one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	store := sqlstore.New(db, dialect)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Store: store}, nil
}
