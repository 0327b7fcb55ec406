package application

import (
	"context"
	"errors"
	"testing"
	"time"

	metering "home-energy/internal/metering/domain"
	"home-energy/internal/metering/infrastructure/memory"
)

type failingStore struct {
	*memory.Store
}

func (failingStore) FetchRawRecords(context.Context, string, int64, int64) ([]metering.RawRecord, error) {
	return nil, metering.NewDataAccessError("fetch raw records", "Room1", 0, 0, errors.New("timeout"))
}

func newQueryService(t *testing.T, store *memory.Store, now time.Time, opts ...QueryOption) *QueryService {
	t.Helper()
	opts = append([]QueryOption{WithQueryClock(fixedClock{now: now}), WithQueryLogger(quietLogger())}, opts...)
	svc, err := NewQueryService(store, store, store, metering.DefaultCalendar(time.UTC), opts...)
	if err != nil {
		t.Fatalf("new query service: %v", err)
	}
	return svc
}

func TestUsageDataMapsSummaries(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	day := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	for i, usage := range []metering.EnergySplit{{Day: 1, Night: 2}, {Day: 3, Night: 4}} {
		summary, _ := metering.NewDailySummary("Room1", day+int64(i)*86400, usage)
		if err := store.PersistDailySummary(ctx, summary); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}
	svc := newQueryService(t, store, time.Unix(day, 0).Add(72*time.Hour))

	points, err := svc.UsageData(ctx, "Room1", day, day+86400)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(points) != 2 || points[1].Timestamp != day+86400 || points[1].DayUse != 3 || points[1].NightUse != 4 {
		t.Fatalf("unexpected points %+v", points)
	}

	empty, err := svc.UsageData(ctx, "Other", day, day+86400)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil result, got %v err=%v", empty, err)
	}
}

func TestUsageDataValidation(t *testing.T) {
	svc := newQueryService(t, memory.NewStore(), time.Now())
	ctx := context.Background()
	if _, err := svc.UsageData(ctx, "", 0, 1); !errors.Is(err, metering.ErrEmptyDeviceID) {
		t.Fatalf("expected ErrEmptyDeviceID, got %v", err)
	}
	if _, err := svc.UsageData(ctx, "Room1", 10, 1); !errors.Is(err, metering.ErrInvertedRange) {
		t.Fatalf("expected ErrInvertedRange, got %v", err)
	}
	if _, err := svc.UsageData(ctx, "Room1", 0, 400*86400); !errors.Is(err, metering.ErrRangeTooLong) {
		t.Fatalf("expected ErrRangeTooLong, got %v", err)
	}
}

func TestRealtimeClampsSinceAndRendersReadings(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Date(2025, time.January, 2, 12, 0, 0, 0, time.UTC)
	items := []metering.RawItem{
		{"sortkey": now.Add(-30 * time.Hour).Unix(), "reading": 1.0},
		{"sortkey": now.Add(-time.Hour).Unix(), "readings": []any{120.9, "bad"}},
		{"sortkey": now.Add(-time.Minute).Unix(), "reading": "abc"},
	}
	if err := store.AppendRawRecords(ctx, "Room1", items); err != nil {
		t.Fatalf("append: %v", err)
	}
	svc := newQueryService(t, store, now)

	readings, err := svc.Realtime(ctx, "Room1", 0)
	if err != nil {
		t.Fatalf("realtime: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings within 24h, got %+v", readings)
	}
	if readings[0].Reading != 120 {
		t.Fatalf("expected truncated 120, got %d", readings[0].Reading)
	}
	if readings[1].Reading != 0 {
		t.Fatalf("expected invalid wattage rendered as 0, got %d", readings[1].Reading)
	}
}

func TestReadingsDownsampled(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	values := make([]any, ReadingsMaxPoints*2+1)
	for i := range values {
		values[i] = float64(i)
	}
	if err := store.AppendRawRecords(ctx, "Room1", []metering.RawItem{{"sortkey": 1000, "readings": values}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	svc := newQueryService(t, store, time.Unix(100000, 0))

	readings, err := svc.Readings(ctx, "Room1", 0, 100000)
	if err != nil {
		t.Fatalf("readings: %v", err)
	}
	if len(readings) > ReadingsMaxPoints || len(readings) == 0 {
		t.Fatalf("expected at most %d readings, got %d", ReadingsMaxPoints, len(readings))
	}
	if readings[0].Timestamp != 1000 {
		t.Fatalf("expected first sample kept, got %d", readings[0].Timestamp)
	}
}

func TestStatsUsesTodayInCalendarLocation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	items := []metering.RawItem{
		{"sortkey": now.Add(-13 * time.Hour).Unix(), "readings": []any{5000.0, 5000.0}},
		{"sortkey": now.Add(-2 * time.Hour).Unix(), "readings": []any{100.0, 100.0, 100.0}},
		{"sortkey": now.Add(-time.Hour).Unix(), "reading": 100.0},
	}
	if err := store.AppendRawRecords(ctx, "Room1", items); err != nil {
		t.Fatalf("append: %v", err)
	}
	svc := newQueryService(t, store, now)

	stats, err := svc.Stats(ctx, "Room1", metering.AllStats())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if *stats.StandbyWatts != 100 {
		t.Fatalf("expected standby 100, got %v", *stats.StandbyWatts)
	}
	if *stats.TodaySoFarKWh <= 0 || *stats.TodaySoFarKWh > 0.2 {
		t.Fatalf("expected only today's readings, got %v", *stats.TodaySoFarKWh)
	}
}

func TestQueryPropagatesDataAccessErrors(t *testing.T) {
	store := memory.NewStore()
	fs := failingStore{Store: store}
	svc, err := NewQueryService(fs, store, store, metering.DefaultCalendar(nil), WithQueryLogger(quietLogger()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = svc.Readings(context.Background(), "Room1", 0, 10)
	var dae *metering.DataAccessError
	if !errors.As(err, &dae) {
		t.Fatalf("expected DataAccessError, got %v", err)
	}
}

func TestListDevicesFallbackOnlyWhenEmpty(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	svc := newQueryService(t, store, time.Now(), WithFallbackDevices([]string{"Meter"}))

	ids, err := svc.ListDevices(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "Meter" {
		t.Fatalf("expected fallback, got %v err=%v", ids, err)
	}

	if err := store.AppendRawRecords(ctx, "Room2", []metering.RawItem{{"sortkey": 1, "reading": 1}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	ids, err = svc.ListDevices(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "Room2" {
		t.Fatalf("expected catalog devices, got %v err=%v", ids, err)
	}
}

func TestListDevicesDefaultFallback(t *testing.T) {
	svc := newQueryService(t, memory.NewStore(), time.Now())
	ids, err := svc.ListDevices(context.Background())
	if err != nil || len(ids) != 2 || ids[0] != "ESP32" || ids[1] != "Room1" {
		t.Fatalf("expected default fallback, got %v err=%v", ids, err)
	}
}
