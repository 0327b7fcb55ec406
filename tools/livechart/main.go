package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"home-energy/internal/dashboard"
	"home-energy/internal/metering/application"
	metering "home-energy/internal/metering/domain"
	"home-energy/internal/metering/infrastructure/storage"
	"home-energy/internal/observability/metrics"

	"github.com/guptarohit/asciigraph"
	"github.com/joho/godotenv"
)

type config struct {
	storage  storage.Config
	deviceID string
	window   time.Duration
	width    int
	height   int
	refresh  time.Duration
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.storage.Driver, "driver", getenvDefault("STORE_DRIVER", "postgres"), "storage driver: postgres|sqlite")
	flag.StringVar(&cfg.storage.DatabaseURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "postgres DSN")
	flag.StringVar(&cfg.storage.SQLitePath, "sqlite", getenvDefault("SQLITE_PATH", "home-energy.db"), "sqlite database path")
	flag.StringVar(&cfg.deviceID, "device", "", "device id")
	flag.DurationVar(&cfg.window, "window", 6*time.Hour, "how far back to plot (max 24h)")
	flag.IntVar(&cfg.width, "width", 100, "chart width in columns")
	flag.IntVar(&cfg.height, "height", 15, "chart height in rows")
	flag.DurationVar(&cfg.refresh, "refresh", 0, "redraw interval, 0 draws once")
	flag.Parse()

	cfg.storage.ReadingsTable = os.Getenv("READINGS_TABLE")
	cfg.storage.SummariesTable = os.Getenv("SUMMARIES_TABLE")

	if cfg.deviceID == "" {
		return cfg, fmt.Errorf("-device is required")
	}
	if cfg.window <= 0 || cfg.window > application.RealtimeWindow {
		cfg.window = application.RealtimeWindow
	}
	if cfg.width < 20 {
		cfg.width = 20
	}
	if cfg.height < 3 {
		cfg.height = 3
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

	metrics.Init(nil, "", "", log.New(io.Discard, "", 0))
	store := backend.Store
	query, err := application.NewQueryService(store, store, store, tariff.Calendar,
		application.WithQueryLogger(log.New(os.Stderr, "livechart ", log.LstdFlags)),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query service:", err)
		os.Exit(2)
	}

	for {
		out, err := render(ctx, query, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "render:", err)
			os.Exit(1)
		}
		if cfg.refresh > 0 {
			// clear screen and home cursor
			fmt.Print("\033[H\033[2J")
		}
		fmt.Println(out)
		if cfg.refresh <= 0 {
			return
		}
		time.Sleep(cfg.refresh)
	}
}

func render(ctx context.Context, query *application.QueryService, cfg config) (string, error) {
	now := query.Now()
	start := now.Add(-cfg.window).Unix()
	samples, err := query.Samples(ctx, cfg.deviceID, start, now.Unix(), application.RealtimeMaxPoints)
	if err != nil {
		return "", err
	}
	stats, err := query.Stats(ctx, cfg.deviceID, metering.AllStats())
	if err != nil {
		return "", err
	}

	view := dashboard.BuildLiveView(cfg.deviceID, query.Calendar(), samples, &stats, now, dashboard.DefaultOfflineAfter)
	return renderView(view, cfg.width, cfg.height), nil
}

func renderView(view dashboard.LiveView, width, height int) string {
	if view.NoData || len(view.Series) == 0 {
		return fmt.Sprintf("%s: no data", view.DeviceID)
	}

	data := make([]float64, 0, len(view.Series))
	for _, point := range view.Series {
		data = append(data, point.Watts)
	}
	first := time.Unix(view.Series[0].Timestamp, 0).Format("15:04")
	last := time.Unix(view.Series[len(view.Series)-1].Timestamp, 0).Format("15:04")

	graph := asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("%s watts %s - %s", view.DeviceID, first, last)),
	)

	status := "online"
	if view.Offline {
		status = "offline"
	}
	return fmt.Sprintf("%s\n\nnow %.0f W (%s, %s)  today %.3f kWh  standby %.0f W  peak %.0f W",
		graph, view.CurrentWatts, status, view.TimeAgo, view.TodayKWh, view.StandbyWatts, view.MaxWatts)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
