package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "home_energy_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
	ingestItems    prometheus.Counter

	rollupRunsTotal  *prometheus.CounterVec
	rollupRunLatency *prometheus.HistogramVec
	rollupDevices    *prometheus.CounterVec
	rollupLastRun    prometheus.Gauge

	queryTotal   *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers metrics. When db is set, row-count gauges for the given
// readings and summaries tables are registered too.
func Init(db *sql.DB, readingsTable, summariesTable string, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ingestItems = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_items_total",
				Help: "Total raw items stored by ingest",
			},
		)

		rollupRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rollup_runs_total",
				Help: "Total daily rollup runs by result",
			},
			[]string{"result"},
		)
		rollupRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rollup_run_latency_seconds",
				Help:    "Daily rollup run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		rollupDevices = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rollup_devices_total",
				Help: "Total devices processed by the daily rollup by outcome",
			},
			[]string{"state"},
		)
		rollupLastRun = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "rollup_last_run_timestamp_seconds",
				Help: "Unix time of the last finished daily rollup",
			},
		)

		queryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "query_total",
				Help: "Total query operations by operation and result",
			},
			[]string{"operation", "result"},
		)
		queryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "query_latency_seconds",
				Help:    "Query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total usage report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Usage report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			ingestItems,
			rollupRunsTotal,
			rollupRunLatency,
			rollupDevices,
			rollupLastRun,
			queryTotal,
			queryLatency,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, readingsTable, summariesTable, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddIngestItems counts stored raw items.
func AddIngestItems(count int) {
	if count <= 0 {
		return
	}
	if ingestItems != nil {
		ingestItems.Add(float64(count))
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveRollupRun records a finished daily rollup run.
func ObserveRollupRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if rollupRunsTotal != nil {
		rollupRunsTotal.WithLabelValues(result).Inc()
	}
	if rollupRunLatency != nil {
		rollupRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if rollupLastRun != nil {
		rollupLastRun.SetToCurrentTime()
	}
}

// IncRollupDevice counts one device outcome of a rollup run.
func IncRollupDevice(state string) {
	if state == "" {
		state = "unknown"
	}
	if rollupDevices != nil {
		rollupDevices.WithLabelValues(state).Inc()
	}
}

// ObserveQuery records query latency and result.
func ObserveQuery(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if queryTotal != nil {
		queryTotal.WithLabelValues(operation, result).Inc()
	}
	if queryLatency != nil {
		queryLatency.WithLabelValues(operation, result).Observe(duration.Seconds())
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
