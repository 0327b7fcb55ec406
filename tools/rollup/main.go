package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"home-energy/internal/metering/application"
	"home-energy/internal/metering/infrastructure/archive"
	"home-energy/internal/metering/infrastructure/storage"
	"home-energy/internal/observability/metrics"

	"github.com/joho/godotenv"
)

type config struct {
	storage     storage.Config
	archiveRoot string
	day         time.Time
	hasDay      bool
	devices     []string
}

func parseFlags() (config, error) {
	var (
		cfg     config
		day     string
		devices string
	)
	flag.StringVar(&cfg.storage.Driver, "driver", getenvDefault("STORE_DRIVER", "postgres"), "storage driver: postgres|sqlite|memory")
	flag.StringVar(&cfg.storage.DatabaseURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "postgres DSN")
	flag.StringVar(&cfg.storage.SQLitePath, "sqlite", getenvDefault("SQLITE_PATH", "home-energy.db"), "sqlite database path")
	flag.StringVar(&cfg.archiveRoot, "archive", getenvDefault("ARCHIVE_ROOT", "archive"), "archive root directory")
	flag.StringVar(&day, "day", "", "UTC day to roll up (YYYY-MM-DD), default yesterday")
	flag.StringVar(&devices, "devices", "", "comma separated device ids, default all known devices")
	flag.Parse()

	cfg.storage.ReadingsTable = os.Getenv("READINGS_TABLE")
	cfg.storage.SummariesTable = os.Getenv("SUMMARIES_TABLE")

	if day != "" {
		parsed, err := time.ParseInLocation("2006-01-02", day, time.UTC)
		if err != nil {
			return cfg, fmt.Errorf("invalid -day %q: %w", day, err)
		}
		cfg.day = parsed
		cfg.hasDay = true
	}
	for _, id := range strings.Split(devices, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.devices = append(cfg.devices, id)
		}
	}
	return cfg, nil
}

func main() {
	_ = godotenv.Load()
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "rollup ", log.LstdFlags)
	ctx := context.Background()

	backend, err := storage.Open(ctx, cfg.storage)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storage:", err)
		os.Exit(2)
	}
	defer backend.Close()

	tariff, err := application.LoadTariffConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tariff:", err)
		os.Exit(2)
	}
	sink, err := archive.NewFileSink(cfg.archiveRoot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "archive:", err)
		os.Exit(2)
	}

	metrics.Init(nil, "", "", logger)

	opts := []application.RollupOption{application.WithRollupLogger(logger)}
	if len(cfg.devices) > 0 {
		opts = append(opts, application.WithRollupDevices(cfg.devices))
	}
	store := backend.Store
	job, err := application.NewDailyRollupJob(store, store, sink, store, tariff.Calendar, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rollup job:", err)
		os.Exit(2)
	}

	var report application.RunReport
	if cfg.hasDay {
		report, err = job.RunForDay(ctx, cfg.day)
	} else {
		report, err = job.Run(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "rollup:", err)
		if errors.Is(err, application.ErrDeviceEnumeration) {
			os.Exit(3)
		}
		os.Exit(1)
	}

	fmt.Printf("run %s day %s\n", report.RunID, report.Day.Format("2006-01-02"))
	for _, outcome := range report.Devices {
		line := fmt.Sprintf("%-20s %-15s day=%.3fkWh night=%.3fkWh", outcome.DeviceID, outcome.State, outcome.Usage.Day, outcome.Usage.Night)
		if outcome.Archive != "" {
			line += " archive=" + outcome.Archive
		}
		if outcome.Err != nil {
			line += " err=" + outcome.Err.Error()
		}
		fmt.Println(line)
	}
	if report.Failed() {
		os.Exit(1)
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
