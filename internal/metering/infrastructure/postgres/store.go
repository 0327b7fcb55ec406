package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"home-energy/internal/metering/infrastructure/sqlstore"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect is the Postgres flavour of the metering schema.
var Dialect = sqlstore.Dialect{
	Name:        "postgres",
	Bind:        func(n int) string { return fmt.Sprintf("$%d", n) },
	PayloadType: "JSONB",
	FloatType:   "DOUBLE PRECISION",
}

// Open connects through the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// NewStore constructs a metering store backed by Postgres.
func NewStore(db *sql.DB, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	return sqlstore.New(db, Dialect, opts...)
}
