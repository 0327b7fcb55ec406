package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	metering "home-energy/internal/metering/domain"
	"home-energy/internal/metering/infrastructure/memory"
	"home-energy/internal/metering/infrastructure/postgres"
	"home-energy/internal/metering/infrastructure/sqlite"
	"home-energy/internal/metering/infrastructure/sqlstore"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// ErrUnknownDriver is returned for an unsupported driver name.
var ErrUnknownDriver = errors.New("storage: unknown driver")

// Config selects and configures the storage backend.
type Config struct {
	Driver         string
	DatabaseURL    string
	SQLitePath     string
	ReadingsTable  string
	SummariesTable string
}

// Backend is an opened storage backend.
type Backend struct {
	Driver string
	Store  metering.Store
	// DB is nil for the memory driver.
	DB             *sql.DB
	ReadingsTable  string
	SummariesTable string
}

// Close releases the database handle, if any.
func (b *Backend) Close() error {
	if b == nil || b.DB == nil {
		return nil
	}
	return b.DB.Close()
}

// Open opens the configured backend and ensures its schema.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverPostgres
	}

	if driver == DriverMemory {
		return &Backend{Driver: driver, Store: memory.NewStore()}, nil
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("storage: DATABASE_URL is required for postgres")
		}
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
	case DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "home-energy.db"
		}
		db, err = sqlite.Open(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	opts := []sqlstore.Option{
		sqlstore.WithReadingsTable(cfg.ReadingsTable),
		sqlstore.WithSummariesTable(cfg.SummariesTable),
	}
	var store *sqlstore.Store
	if driver == DriverPostgres {
		store, err = postgres.NewStore(db, opts...)
	} else {
		store, err = sqlite.NewStore(db, opts...)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{
		Driver:         driver,
		Store:          store,
		DB:             db,
		ReadingsTable:  store.ReadingsTable(),
		SummariesTable: store.SummariesTable(),
	}, nil
}
