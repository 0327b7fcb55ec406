package meteringhttp

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"home-energy/internal/metering/application"
)

// DayRunner re-runs the rollup of a given UTC day.
type DayRunner interface {
	RunForDay(ctx context.Context, day time.Time) (application.RunReport, error)
}

// RollupHandler triggers a rollup run:
//
//	POST /api/v1/rollups?day=YYYY-MM-DD
//
// Without day it rolls up yesterday (UTC).
type RollupHandler struct {
	runner DayRunner
	now    func() time.Time
	logger *log.Logger
}

// NewRollupHandler constructs the handler.
func NewRollupHandler(runner DayRunner, logger *log.Logger) (*RollupHandler, error) {
	if runner == nil {
		return nil, errors.New("rollup handler: nil runner")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RollupHandler{runner: runner, now: time.Now, logger: logger}, nil
}

type rollupOutcome struct {
	DeviceID string  `json:"device_id"`
	State    string  `json:"state"`
	DayKWh   float64 `json:"day_kwh"`
	NightKWh float64 `json:"night_kwh"`
	Archive  string  `json:"archive,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type rollupResponse struct {
	RunID   string          `json:"run_id"`
	Day     string          `json:"day"`
	Failed  bool            `json:"failed"`
	Devices []rollupOutcome `json:"devices"`
}

// ServeHTTP runs the rollup synchronously and reports per-device outcomes.
func (h *RollupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	day, err := h.resolveDay(r.URL.Query().Get("day"))
	if err != nil {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}

	report, err := h.runner.RunForDay(r.Context(), day)
	if err != nil {
		h.logger.Printf("rollup trigger: day=%s err=%v", day.Format("2006-01-02"), err)
		http.Error(w, "rollup error", http.StatusInternalServerError)
		return
	}

	resp := rollupResponse{
		RunID:   report.RunID,
		Day:     report.Day.Format("2006-01-02"),
		Failed:  report.Failed(),
		Devices: make([]rollupOutcome, 0, len(report.Devices)),
	}
	for _, outcome := range report.Devices {
		item := rollupOutcome{
			DeviceID: outcome.DeviceID,
			State:    outcome.State,
			DayKWh:   outcome.Usage.Day,
			NightKWh: outcome.Usage.Night,
			Archive:  outcome.Archive,
		}
		if outcome.Err != nil {
			item.Error = outcome.Err.Error()
		}
		resp.Devices = append(resp.Devices, item)
	}
	writeJSON(w, resp)
}

func (h *RollupHandler) resolveDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		now := h.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1), nil
	}
	return time.ParseInLocation("2006-01-02", value, time.UTC)
}
