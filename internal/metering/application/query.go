package application

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	metering "home-energy/internal/metering/domain"
	"home-energy/internal/observability/metrics"
)

// Point budgets of the reading queries.
const (
	RealtimeMaxPoints = 10000
	ReadingsMaxPoints = 5000
	RealtimeWindow    = 24 * time.Hour
)

// DefaultFallbackDevices is used when the catalog is empty and none are configured.
var DefaultFallbackDevices = []string{"ESP32", "Room1"}

// UsagePoint is one day of usage.
type UsagePoint struct {
	Timestamp int64   `json:"timestamp"`
	DayUse    float64 `json:"dayUse"`
	NightUse  float64 `json:"nightUse"`
}

// Reading is one sample rendered for clients.
type Reading struct {
	Timestamp int64 `json:"timestamp"`
	Reading   int64 `json:"reading"`
}

// QueryService answers read queries for the dashboard.
type QueryService struct {
	source   metering.RawRecordSource
	store    metering.SummaryStore
	catalog  metering.DeviceCatalog
	calendar metering.Calendar
	clock    metering.Clock
	logger   *log.Logger
	fallback []string
}

// QueryOption configures the service.
type QueryOption func(*QueryService)

// WithQueryClock overrides the clock.
func WithQueryClock(clock metering.Clock) QueryOption {
	return func(s *QueryService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithQueryLogger sets the logger.
func WithQueryLogger(logger *log.Logger) QueryOption {
	return func(s *QueryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFallbackDevices sets the device list returned when the catalog is empty.
func WithFallbackDevices(devices []string) QueryOption {
	return func(s *QueryService) {
		if len(devices) > 0 {
			s.fallback = append([]string(nil), devices...)
		}
	}
}

// NewQueryService constructs the service.
func NewQueryService(
	source metering.RawRecordSource,
	store metering.SummaryStore,
	catalog metering.DeviceCatalog,
	calendar metering.Calendar,
	opts ...QueryOption,
) (*QueryService, error) {
	if source == nil {
		return nil, errors.New("query service: nil record source")
	}
	if store == nil {
		return nil, errors.New("query service: nil summary store")
	}
	if catalog == nil {
		return nil, errors.New("query service: nil device catalog")
	}
	if err := calendar.Validate(); err != nil {
		return nil, err
	}
	s := &QueryService{
		source:   source,
		store:    store,
		catalog:  catalog,
		calendar: calendar,
		clock:    metering.SystemClock{},
		logger:   log.Default(),
		fallback: DefaultFallbackDevices,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Calendar returns the tariff calendar used by the service.
func (s *QueryService) Calendar() metering.Calendar {
	return s.calendar
}

// Now returns the service clock time.
func (s *QueryService) Now() time.Time {
	return s.clock.Now()
}

// UsageData returns daily summaries with start <= day start <= end.
func (s *QueryService) UsageData(ctx context.Context, deviceID string, start, end int64) (result []UsagePoint, err error) {
	defer observe("usage", time.Now(), &err)
	if err := metering.ValidateRange(deviceID, start, end); err != nil {
		return nil, err
	}
	summaries, err := s.store.ListDailySummaries(ctx, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	result = make([]UsagePoint, 0, len(summaries))
	for _, summary := range summaries {
		result = append(result, UsagePoint{
			Timestamp: summary.DayStart,
			DayUse:    summary.Usage.Day,
			NightUse:  summary.Usage.Night,
		})
	}
	return result, nil
}

// Summaries returns the raw daily summaries of a range, for reports.
func (s *QueryService) Summaries(ctx context.Context, deviceID string, start, end int64) (result []metering.DailySummary, err error) {
	defer observe("summaries", time.Now(), &err)
	if err := metering.ValidateRange(deviceID, start, end); err != nil {
		return nil, err
	}
	return s.store.ListDailySummaries(ctx, deviceID, start, end)
}

// Stats computes the requested live statistics over today's readings.
func (s *QueryService) Stats(ctx context.Context, deviceID string, opts metering.StatsOptions) (stats metering.Stats, err error) {
	defer observe("stats", time.Now(), &err)
	if err := metering.ValidateDeviceID(deviceID); err != nil {
		return metering.Stats{}, err
	}
	now := s.clock.Now()
	start := s.calendar.DayStart(now).Unix()
	records, err := s.source.FetchRawRecords(ctx, deviceID, start, now.Unix())
	if err != nil {
		return metering.Stats{}, err
	}
	return metering.ComputeStats(s.calendar, records, opts), nil
}

// Realtime returns readings from max(since, now-24h) to now.
func (s *QueryService) Realtime(ctx context.Context, deviceID string, since int64) (result []Reading, err error) {
	defer observe("realtime", time.Now(), &err)
	if err := metering.ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	floor := now.Add(-RealtimeWindow).Unix()
	if since < floor {
		since = floor
	}
	return s.readings(ctx, deviceID, since, now.Unix(), RealtimeMaxPoints)
}

// Readings returns readings with start <= timestamp <= end.
func (s *QueryService) Readings(ctx context.Context, deviceID string, start, end int64) (result []Reading, err error) {
	defer observe("readings", time.Now(), &err)
	if err := metering.ValidateRange(deviceID, start, end); err != nil {
		return nil, err
	}
	return s.readings(ctx, deviceID, start, end, ReadingsMaxPoints)
}

// Samples returns normalized samples with start <= timestamp <= end, for view models.
func (s *QueryService) Samples(ctx context.Context, deviceID string, start, end int64, maxPoints int) (result []metering.Sample, err error) {
	defer observe("samples", time.Now(), &err)
	if err := metering.ValidateRange(deviceID, start, end); err != nil {
		return nil, err
	}
	records, err := s.source.FetchRawRecords(ctx, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	return metering.Normalize(records, maxPoints), nil
}

// ListDevices returns the known devices, or the fallback list when none are known.
func (s *QueryService) ListDevices(ctx context.Context) (ids []string, err error) {
	defer observe("devices", time.Now(), &err)
	ids, err = s.catalog.ListDeviceIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		s.logger.Printf("query service: device catalog empty, using fallback devices=%v", s.fallback)
		return append([]string(nil), s.fallback...), nil
	}
	return ids, nil
}

func (s *QueryService) readings(ctx context.Context, deviceID string, start, end int64, maxPoints int) ([]Reading, error) {
	records, err := s.source.FetchRawRecords(ctx, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	samples := metering.Normalize(records, maxPoints)
	result := make([]Reading, 0, len(samples))
	for _, sample := range samples {
		result = append(result, Reading{Timestamp: sample.Timestamp, Reading: readingValue(sample)})
	}
	return result, nil
}

func readingValue(sample metering.Sample) int64 {
	if !sample.Valid || math.IsNaN(sample.Watts) || math.IsInf(sample.Watts, 0) {
		return 0
	}
	return int64(sample.Watts)
}

func observe(operation string, started time.Time, err *error) {
	var cause error
	if err != nil {
		cause = *err
	}
	metrics.ObserveQuery(operation, metrics.Result(cause), time.Since(started))
}
