package metrics

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, readingsTable, summariesTable string, logger *log.Logger) {
	if readingsTable != "" {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", readingsTable)
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "raw_records",
				Help: "Stored raw reading records",
			},
			func() float64 {
				return queryCount(db, logger, query)
			},
		))
	}

	if summariesTable != "" {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", summariesTable)
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "daily_summaries",
				Help: "Stored daily summaries",
			},
			func() float64 {
				return queryCount(db, logger, query)
			},
		))
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open database connections",
		},
		func() float64 {
			return float64(db.Stats().OpenConnections)
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
