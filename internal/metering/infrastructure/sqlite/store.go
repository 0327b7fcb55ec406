package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"home-energy/internal/metering/infrastructure/sqlstore"

	_ "modernc.org/sqlite"
)

// Dialect is the SQLite flavour of the metering schema.
var Dialect = sqlstore.Dialect{
	Name:        "sqlite",
	Bind:        func(int) string { return "?" },
	PayloadType: "TEXT",
	FloatType:   "REAL",
}

// Open opens (or creates) a SQLite database file. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: pragma: %w", err)
	}
	return db, nil
}

// NewStore constructs a metering store backed by SQLite.
func NewStore(db *sql.DB, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	return sqlstore.New(db, Dialect, opts...)
}
