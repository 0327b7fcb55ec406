package metering

import (
	"context"
	"time"
)

// Clock provides time for services.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RawRecordSource loads the stored records of a device whose sort key is in [start, end].
// An empty result is (nil, nil); failures are returned as errors.
type RawRecordSource interface {
	FetchRawRecords(ctx context.Context, deviceID string, start, end int64) ([]RawRecord, error)
}

// RawRecordWriter appends stored items for a device.
type RawRecordWriter interface {
	AppendRawRecords(ctx context.Context, deviceID string, items []RawItem) error
}

// SummaryStore persists and lists daily summaries keyed by (device, day start).
type SummaryStore interface {
	PersistDailySummary(ctx context.Context, summary DailySummary) error
	ListDailySummaries(ctx context.Context, deviceID string, start, end int64) ([]DailySummary, error)
}

// ArchiveSink stores archive files.
type ArchiveSink interface {
	WriteArchive(ctx context.Context, path string, content []byte) error
}

// DeviceCatalog enumerates devices known to either summaries or raw records.
type DeviceCatalog interface {
	ListDeviceIDs(ctx context.Context) ([]string, error)
}

// Store is implemented by the storage backends.
type Store interface {
	RawRecordSource
	RawRecordWriter
	SummaryStore
	DeviceCatalog
}
