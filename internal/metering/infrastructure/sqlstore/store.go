package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"home-energy/internal/metering/domain"
)

const (
	defaultReadingsTable  = "meter_readings"
	defaultSummariesTable = "meter_daily_summaries"
)

// Dialect captures the SQL differences between drivers.
type Dialect struct {
	Name string
	// Bind returns the placeholder for the n-th (1-based) argument.
	Bind func(n int) string
	// PayloadType is the column type of the raw payload.
	PayloadType string
	// FloatType is the column type of kWh values.
	FloatType string
}

// Store is a database/sql implementation of the metering storage ports.
// Raw records are stored as JSON payloads keyed by (device_id, sortkey).
type Store struct {
	db             *sql.DB
	dialect        Dialect
	readingsTable  string
	summariesTable string
}

// Option configures the store.
type Option func(*Store)

// WithReadingsTable overrides the raw readings table name.
func WithReadingsTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.readingsTable = table
		}
	}
}

// WithSummariesTable overrides the daily summaries table name.
func WithSummariesTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.summariesTable = table
		}
	}
}

// New constructs a store.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	if dialect.Bind == nil {
		return nil, errors.New("sqlstore: dialect without placeholder binding")
	}
	s := &Store{
		db:             db,
		dialect:        dialect,
		readingsTable:  defaultReadingsTable,
		summariesTable: defaultSummariesTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ReadingsTable returns the raw readings table name.
func (s *Store) ReadingsTable() string {
	return s.readingsTable
}

// SummariesTable returns the daily summaries table name.
func (s *Store) SummariesTable() string {
	return s.summariesTable
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	device_id TEXT NOT NULL,
	sortkey BIGINT NOT NULL,
	payload %s NOT NULL,
	PRIMARY KEY (device_id, sortkey)
)`, s.readingsTable, s.dialect.PayloadType),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	device_id TEXT NOT NULL,
	day_start BIGINT NOT NULL,
	day_kwh %s NOT NULL,
	night_kwh %s NOT NULL,
	expires_at BIGINT NOT NULL,
	PRIMARY KEY (device_id, day_start)
)`, s.summariesTable, s.dialect.FloatType, s.dialect.FloatType),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: ensure schema: %w", err)
		}
	}
	return nil
}

// AppendRawRecords upserts items under their resolved sort key.
func (s *Store) AppendRawRecords(ctx context.Context, deviceID string, items []metering.RawItem) error {
	if deviceID == "" {
		return metering.ErrEmptyDeviceID
	}
	if len(items) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (device_id, sortkey, payload)
VALUES (%s, %s, %s)
ON CONFLICT (device_id, sortkey) DO UPDATE SET payload = excluded.payload`,
		s.readingsTable, s.dialect.Bind(1), s.dialect.Bind(2), s.dialect.Bind(3))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return metering.NewDataAccessError("append raw records", deviceID, 0, 0, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		record := metering.ParseRawItem(item)
		if record.Kind == metering.RecordInvalid {
			return fmt.Errorf("%w: item without sortkey/timestamp", metering.ErrValidation)
		}
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("%w: encode item: %v", metering.ErrValidation, err)
		}
		if _, err := tx.ExecContext(ctx, query, deviceID, record.BaseTimestamp, string(payload)); err != nil {
			return metering.NewDataAccessError("append raw records", deviceID, record.BaseTimestamp, record.BaseTimestamp, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return metering.NewDataAccessError("append raw records", deviceID, 0, 0, err)
	}
	return nil
}

// FetchRawRecords returns records with start <= sortkey <= end in ascending order.
func (s *Store) FetchRawRecords(ctx context.Context, deviceID string, start, end int64) ([]metering.RawRecord, error) {
	query := fmt.Sprintf(`
SELECT payload
FROM %s
WHERE device_id = %s
	AND sortkey BETWEEN %s AND %s
ORDER BY sortkey ASC`, s.readingsTable, s.dialect.Bind(1), s.dialect.Bind(2), s.dialect.Bind(3))

	rows, err := s.db.QueryContext(ctx, query, deviceID, start, end)
	if err != nil {
		return nil, metering.NewDataAccessError("fetch raw records", deviceID, start, end, err)
	}
	defer rows.Close()

	var records []metering.RawRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, metering.NewDataAccessError("fetch raw records", deviceID, start, end, err)
		}
		item, err := decodeItem(payload)
		if err != nil {
			// A corrupt payload is a data quality issue, not a storage failure.
			continue
		}
		records = append(records, metering.ParseRawItem(item))
	}
	if err := rows.Err(); err != nil {
		return nil, metering.NewDataAccessError("fetch raw records", deviceID, start, end, err)
	}
	return records, nil
}

// PersistDailySummary upserts a summary keyed by (device, day start).
func (s *Store) PersistDailySummary(ctx context.Context, summary metering.DailySummary) error {
	if summary.DeviceID == "" {
		return metering.ErrEmptyDeviceID
	}
	query := fmt.Sprintf(`
INSERT INTO %s (device_id, day_start, day_kwh, night_kwh, expires_at)
VALUES (%s, %s, %s, %s, %s)
ON CONFLICT (device_id, day_start) DO UPDATE SET
	day_kwh = excluded.day_kwh,
	night_kwh = excluded.night_kwh,
	expires_at = excluded.expires_at`,
		s.summariesTable,
		s.dialect.Bind(1), s.dialect.Bind(2), s.dialect.Bind(3), s.dialect.Bind(4), s.dialect.Bind(5))

	_, err := s.db.ExecContext(ctx, query,
		summary.DeviceID,
		summary.DayStart,
		summary.Usage.Day,
		summary.Usage.Night,
		summary.ExpiresAt,
	)
	return metering.NewDataAccessError("persist daily summary", summary.DeviceID, summary.DayStart, summary.DayStart, err)
}

// ListDailySummaries returns summaries with start <= day_start <= end in ascending order.
func (s *Store) ListDailySummaries(ctx context.Context, deviceID string, start, end int64) ([]metering.DailySummary, error) {
	query := fmt.Sprintf(`
SELECT day_start, day_kwh, night_kwh, expires_at
FROM %s
WHERE device_id = %s
	AND day_start BETWEEN %s AND %s
ORDER BY day_start ASC`, s.summariesTable, s.dialect.Bind(1), s.dialect.Bind(2), s.dialect.Bind(3))

	rows, err := s.db.QueryContext(ctx, query, deviceID, start, end)
	if err != nil {
		return nil, metering.NewDataAccessError("list daily summaries", deviceID, start, end, err)
	}
	defer rows.Close()

	var result []metering.DailySummary
	for rows.Next() {
		summary := metering.DailySummary{DeviceID: deviceID}
		if err := rows.Scan(&summary.DayStart, &summary.Usage.Day, &summary.Usage.Night, &summary.ExpiresAt); err != nil {
			return nil, metering.NewDataAccessError("list daily summaries", deviceID, start, end, err)
		}
		result = append(result, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, metering.NewDataAccessError("list daily summaries", deviceID, start, end, err)
	}
	return result, nil
}

// ListDeviceIDs returns the union of devices in both tables, sorted.
func (s *Store) ListDeviceIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
SELECT device_id FROM %s
UNION
SELECT device_id FROM %s`, s.summariesTable, s.readingsTable)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, metering.NewDataAccessError("list devices", "", 0, 0, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, metering.NewDataAccessError("list devices", "", 0, 0, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, metering.NewDataAccessError("list devices", "", 0, 0, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteExpiredSummaries removes summaries whose expiry is at or before now.
func (s *Store) DeleteExpiredSummaries(ctx context.Context, now int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= %s`, s.summariesTable, s.dialect.Bind(1))
	res, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, metering.NewDataAccessError("delete expired summaries", "", 0, now, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, metering.NewDataAccessError("delete expired summaries", "", 0, now, err)
	}
	return count, nil
}

func decodeItem(payload []byte) (metering.RawItem, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var item metering.RawItem
	if err := decoder.Decode(&item); err != nil {
		return nil, err
	}
	return item, nil
}
