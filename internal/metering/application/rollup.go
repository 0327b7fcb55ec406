package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	metering "home-energy/internal/metering/domain"
	"home-energy/internal/observability/metrics"
)

// Device outcome states of a rollup run.
const (
	StateDone          = "done"
	StateSkipped       = "skipped"
	StateFetchFailed   = "fetch_failed"
	StatePersistFailed = "persist_failed"
	StateExportFailed  = "export_failed"
)

// ErrDeviceEnumeration is returned when the device list cannot be loaded.
var ErrDeviceEnumeration = errors.New("daily rollup: device enumeration failed")

// DeviceOutcome is the result of rolling up one device.
type DeviceOutcome struct {
	DeviceID string               `json:"device_id"`
	State    string               `json:"state"`
	Usage    metering.EnergySplit `json:"usage"`
	Archive  string               `json:"archive,omitempty"`
	Err      error                `json:"-"`
}

// RunReport summarises a rollup run.
type RunReport struct {
	RunID   string          `json:"run_id"`
	Day     time.Time       `json:"day"`
	Devices []DeviceOutcome `json:"devices"`
}

// Count returns how many devices ended in state.
func (r RunReport) Count(state string) int {
	count := 0
	for _, outcome := range r.Devices {
		if outcome.State == state {
			count++
		}
	}
	return count
}

// Failed reports whether any device failed.
func (r RunReport) Failed() bool {
	for _, outcome := range r.Devices {
		if outcome.Err != nil {
			return true
		}
	}
	return false
}

// ExpiredSummaryPurger is implemented by stores that can drop expired summaries.
type ExpiredSummaryPurger interface {
	DeleteExpiredSummaries(ctx context.Context, now int64) (int64, error)
}

// DailyRollupJob integrates yesterday's readings of every device into a daily
// summary and archives the raw readings as CSV.
type DailyRollupJob struct {
	source   metering.RawRecordSource
	store    metering.SummaryStore
	archive  metering.ArchiveSink
	catalog  metering.DeviceCatalog
	calendar metering.Calendar
	clock    metering.Clock
	logger   *log.Logger
	devices  []string
}

// RollupOption configures the job.
type RollupOption func(*DailyRollupJob)

// WithRollupClock overrides the clock.
func WithRollupClock(clock metering.Clock) RollupOption {
	return func(j *DailyRollupJob) {
		if clock != nil {
			j.clock = clock
		}
	}
}

// WithRollupLogger sets the logger.
func WithRollupLogger(logger *log.Logger) RollupOption {
	return func(j *DailyRollupJob) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithRollupDevices restricts the run to the given devices instead of the catalog.
func WithRollupDevices(devices []string) RollupOption {
	return func(j *DailyRollupJob) {
		j.devices = append([]string(nil), devices...)
	}
}

// NewDailyRollupJob constructs the job.
func NewDailyRollupJob(
	source metering.RawRecordSource,
	store metering.SummaryStore,
	archive metering.ArchiveSink,
	catalog metering.DeviceCatalog,
	calendar metering.Calendar,
	opts ...RollupOption,
) (*DailyRollupJob, error) {
	if source == nil {
		return nil, errors.New("daily rollup: nil record source")
	}
	if store == nil {
		return nil, errors.New("daily rollup: nil summary store")
	}
	if archive == nil {
		return nil, errors.New("daily rollup: nil archive sink")
	}
	if catalog == nil {
		return nil, errors.New("daily rollup: nil device catalog")
	}
	if err := calendar.Validate(); err != nil {
		return nil, err
	}
	job := &DailyRollupJob{
		source:   source,
		store:    store,
		archive:  archive,
		catalog:  catalog,
		calendar: calendar,
		clock:    metering.SystemClock{},
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(job)
	}
	return job, nil
}

// Run rolls up the UTC day before the clock's current day.
func (j *DailyRollupJob) Run(ctx context.Context) (RunReport, error) {
	now := j.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return j.RunForDay(ctx, today.AddDate(0, 0, -1))
}

// RunForDay rolls up the UTC day containing day. Re-running a day overwrites
// its summaries and archives.
func (j *DailyRollupJob) RunForDay(ctx context.Context, day time.Time) (RunReport, error) {
	started := time.Now()
	day = day.UTC()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	report := RunReport{RunID: uuid.NewString(), Day: dayStart}

	devices, err := j.listDevices(ctx)
	if err != nil {
		metrics.ObserveRollupRun(metrics.ResultError, time.Since(started))
		return report, fmt.Errorf("%w: %v", ErrDeviceEnumeration, err)
	}

	j.logger.Printf("daily rollup: start run=%s day=%s devices=%d", report.RunID, dayStart.Format("2006-01-02"), len(devices))
	for _, deviceID := range devices {
		if err := ctx.Err(); err != nil {
			metrics.ObserveRollupRun(metrics.ResultError, time.Since(started))
			return report, err
		}
		outcome := j.rollupDevice(ctx, deviceID, dayStart)
		metrics.IncRollupDevice(outcome.State)
		if outcome.Err != nil {
			j.logger.Printf("daily rollup: device=%s state=%s err=%v", deviceID, outcome.State, outcome.Err)
		}
		report.Devices = append(report.Devices, outcome)
	}

	if purger, ok := j.store.(ExpiredSummaryPurger); ok {
		if deleted, err := purger.DeleteExpiredSummaries(ctx, j.clock.Now().Unix()); err != nil {
			j.logger.Printf("daily rollup: purge expired summaries err=%v", err)
		} else if deleted > 0 {
			j.logger.Printf("daily rollup: purged expired summaries count=%d", deleted)
		}
	}

	result := metrics.ResultSuccess
	if report.Failed() {
		result = metrics.ResultError
	}
	metrics.ObserveRollupRun(result, time.Since(started))
	j.logger.Printf("daily rollup: finish run=%s done=%d skipped=%d failed=%d",
		report.RunID, report.Count(StateDone), report.Count(StateSkipped),
		len(report.Devices)-report.Count(StateDone)-report.Count(StateSkipped))
	return report, nil
}

func (j *DailyRollupJob) listDevices(ctx context.Context) ([]string, error) {
	if len(j.devices) > 0 {
		return j.devices, nil
	}
	return j.catalog.ListDeviceIDs(ctx)
}

func (j *DailyRollupJob) rollupDevice(ctx context.Context, deviceID string, dayStart time.Time) DeviceOutcome {
	outcome := DeviceOutcome{DeviceID: deviceID}
	start := dayStart.Unix()
	end := dayStart.AddDate(0, 0, 1).Unix() - 1

	records, err := j.source.FetchRawRecords(ctx, deviceID, start, end)
	if err != nil {
		outcome.State = StateFetchFailed
		outcome.Err = err
		return outcome
	}

	samples := metering.ValidSamples(metering.Normalize(records, 0))
	if len(samples) == 0 {
		outcome.State = StateSkipped
		return outcome
	}
	outcome.Usage = metering.Integrate(j.calendar, samples)

	summary, err := metering.NewDailySummary(deviceID, start, outcome.Usage)
	if err == nil {
		err = j.store.PersistDailySummary(ctx, summary)
	}
	persistErr := err

	path := metering.ArchivePath(deviceID, start)
	exportErr := j.archive.WriteArchive(ctx, path, metering.ExportCSV(records))

	switch {
	case persistErr != nil:
		outcome.State = StatePersistFailed
		outcome.Err = persistErr
		if exportErr != nil {
			outcome.Err = errors.Join(persistErr, exportErr)
		} else {
			outcome.Archive = path
		}
	case exportErr != nil:
		outcome.State = StateExportFailed
		outcome.Err = exportErr
	default:
		outcome.State = StateDone
		outcome.Archive = path
	}
	return outcome
}
