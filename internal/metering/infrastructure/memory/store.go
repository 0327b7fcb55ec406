package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"home-energy/internal/metering/domain"
)

type rawEntry struct {
	sortKey int64
	item    metering.RawItem
}

// Store is an in-memory store for demo/testing.
// It implements the raw record, summary and device catalog ports.
type Store struct {
	mu        sync.RWMutex
	raw       map[string][]rawEntry
	summaries map[string]map[int64]metering.DailySummary
}

// NewStore constructs a store.
func NewStore() *Store {
	return &Store{
		raw:       make(map[string][]rawEntry),
		summaries: make(map[string]map[int64]metering.DailySummary),
	}
}

// AppendRawRecords upserts items under their sortkey/timestamp. An item
// whose key is already stored for the device replaces it.
func (s *Store) AppendRawRecords(ctx context.Context, deviceID string, items []metering.RawItem) error {
	_ = ctx
	if deviceID == "" {
		return metering.ErrEmptyDeviceID
	}

	entries := make([]rawEntry, 0, len(items))
	for _, item := range items {
		record := metering.ParseRawItem(item)
		if record.Kind == metering.RecordInvalid {
			return fmt.Errorf("%w: item without sortkey/timestamp", metering.ErrValidation)
		}
		entries = append(entries, rawEntry{sortKey: record.BaseTimestamp, item: item})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.raw[deviceID]
	for _, entry := range entries {
		i := sort.Search(len(stored), func(i int) bool { return stored[i].sortKey >= entry.sortKey })
		if i < len(stored) && stored[i].sortKey == entry.sortKey {
			// same (device, sortkey): last write wins
			stored[i] = entry
			continue
		}
		stored = append(stored, rawEntry{})
		copy(stored[i+1:], stored[i:])
		stored[i] = entry
	}
	s.raw[deviceID] = stored
	return nil
}

// FetchRawRecords returns records with start <= sortkey <= end in ascending order.
func (s *Store) FetchRawRecords(ctx context.Context, deviceID string, start, end int64) ([]metering.RawRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []metering.RawRecord
	for _, entry := range s.raw[deviceID] {
		if entry.sortKey < start || entry.sortKey > end {
			continue
		}
		records = append(records, metering.ParseRawItem(entry.item))
	}
	return records, nil
}

// PersistDailySummary upserts a summary.
func (s *Store) PersistDailySummary(ctx context.Context, summary metering.DailySummary) error {
	_ = ctx
	if summary.DeviceID == "" {
		return metering.ErrEmptyDeviceID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byDay := s.summaries[summary.DeviceID]
	if byDay == nil {
		byDay = make(map[int64]metering.DailySummary)
		s.summaries[summary.DeviceID] = byDay
	}
	byDay[summary.DayStart] = summary
	return nil
}

// ListDailySummaries returns summaries with start <= day <= end in ascending order.
func (s *Store) ListDailySummaries(ctx context.Context, deviceID string, start, end int64) ([]metering.DailySummary, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []metering.DailySummary
	for day, summary := range s.summaries[deviceID] {
		if day < start || day > end {
			continue
		}
		result = append(result, summary)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DayStart < result[j].DayStart })
	return result, nil
}

// ListDeviceIDs returns the union of devices with summaries or raw records.
func (s *Store) ListDeviceIDs(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.raw)+len(s.summaries))
	for id, entries := range s.raw {
		if len(entries) > 0 {
			seen[id] = struct{}{}
		}
	}
	for id, byDay := range s.summaries {
		if len(byDay) > 0 {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Summary returns a stored summary, for tests and tools.
func (s *Store) Summary(deviceID string, dayStart int64) (metering.DailySummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[deviceID][dayStart]
	return summary, ok
}
