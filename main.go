package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"home-energy/internal/auth"
	"home-energy/internal/dashboard"
	"home-energy/internal/metering/application"
	"home-energy/internal/metering/infrastructure/archive"
	"home-energy/internal/metering/infrastructure/storage"
	meteringhttp "home-energy/internal/metering/interfaces/http"
	"home-energy/internal/observability/metrics"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env file ignored: %v", err)
	}
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, storage.Config{
		Driver:         cfg.StoreDriver,
		DatabaseURL:    cfg.DatabaseURL,
		SQLitePath:     cfg.SQLitePath,
		ReadingsTable:  cfg.ReadingsTable,
		SummariesTable: cfg.SummariesTable,
	})
	if err != nil {
		logger.Fatalf("storage open error: %v", err)
	}
	defer backend.Close()
	logger.Printf("storage: driver=%s", backend.Driver)

	tariff, err := application.LoadTariffConfig()
	if err != nil {
		logger.Fatalf("tariff config error: %v", err)
	}
	logger.Printf("tariff: %s", tariff)

	metrics.Init(backend.DB, backend.ReadingsTable, backend.SummariesTable, logger)

	archiveSink, err := archive.NewFileSink(cfg.ArchiveRoot)
	if err != nil {
		logger.Fatalf("archive sink error: %v", err)
	}

	store := backend.Store
	queryService, err := application.NewQueryService(store, store, store, tariff.Calendar,
		application.WithQueryLogger(logger),
		application.WithFallbackDevices(cfg.DefaultDevices),
	)
	if err != nil {
		logger.Fatalf("query service error: %v", err)
	}
	ingestService, err := application.NewIngestService(store, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	rollupJob, err := application.NewDailyRollupJob(store, store, archiveSink, store, tariff.Calendar,
		application.WithRollupLogger(logger),
	)
	if err != nil {
		logger.Fatalf("daily rollup job error: %v", err)
	}

	if cfg.RollupEnabled {
		scheduler := application.NewScheduler(rollupJob, cfg.RollupDailyAt, logger)
		scheduler.Start(ctx)
		logger.Printf("daily rollup scheduled at %s UTC", cfg.RollupDailyAt)
	}

	devicesHandler, err := meteringhttp.NewDevicesHandler(queryService, tariff.Schedule, cfg.OfflineAfter, logger)
	if err != nil {
		logger.Fatalf("devices handler error: %v", err)
	}
	ingestHandler, err := meteringhttp.NewIngestHandler(ingestService, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	rollupHandler, err := meteringhttp.NewRollupHandler(rollupJob, logger)
	if err != nil {
		logger.Fatalf("rollup handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/devices", devicesHandler)
	mux.Handle("/api/v1/devices/", devicesHandler)
	mux.Handle("/api/v1/rollups", rollupHandler)

	var ingest http.Handler = ingestHandler
	deviceKeys, err := auth.ParseDeviceKeys(cfg.IngestDeviceKeys)
	if err != nil {
		logger.Fatalf("ingest device keys error: %v", err)
	}
	if cfg.IngestSecret != "" || len(deviceKeys) > 0 {
		keys := auth.DeviceKeys(deviceKeys, []byte(cfg.IngestSecret))
		ingest = auth.NewIngestAuthMiddleware(keys, time.Duration(cfg.IngestSkewSeconds)*time.Second).Wrap(ingest)
		logger.Printf("ingest signatures required: device_keys=%d shared=%t", len(deviceKeys), cfg.IngestSecret != "")
	} else {
		logger.Printf("ingest signature check disabled: INGEST_HMAC_SECRET and INGEST_DEVICE_KEYS not set")
	}
	mux.Handle("/ingest/readings", ingest)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if backend.DB != nil {
			if err := backend.DB.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(handler)
	} else {
		logger.Printf("api auth disabled: AUTH_JWT_SECRET not set")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http server listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server error: %v", err)
	}
}

type config struct {
	StoreDriver       string
	DatabaseURL       string
	SQLitePath        string
	ReadingsTable     string
	SummariesTable    string
	HTTPAddr          string
	ArchiveRoot       string
	RollupEnabled     bool
	RollupDailyAt     string
	DefaultDevices    []string
	OfflineAfter      time.Duration
	JWTSecret         string
	IngestSecret      string
	IngestDeviceKeys  string
	IngestSkewSeconds int
}

func loadConfig() config {
	cfg := config{
		StoreDriver:       getenvDefault("STORE_DRIVER", "postgres"),
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		SQLitePath:        getenvDefault("SQLITE_PATH", "home-energy.db"),
		ReadingsTable:     getenvDefault("READINGS_TABLE", ""),
		SummariesTable:    getenvDefault("SUMMARIES_TABLE", ""),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		ArchiveRoot:       getenvDefault("ARCHIVE_ROOT", "archive"),
		RollupEnabled:     getenvBoolDefault("ROLLUP_ENABLED", true),
		RollupDailyAt:     getenvDefault("ROLLUP_DAILY_AT", "00:10"),
		DefaultDevices:    getenvList("DEFAULT_DEVICES", application.DefaultFallbackDevices),
		OfflineAfter:      getenvDuration("OFFLINE_AFTER", dashboard.DefaultOfflineAfter),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestDeviceKeys:  getenvDefault("INGEST_DEVICE_KEYS", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if strings.EqualFold(cfg.StoreDriver, storage.DriverPostgres) && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required for STORE_DRIVER=postgres")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
