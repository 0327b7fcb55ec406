package meteringhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	billing "home-energy/internal/billing/domain"
	reportexport "home-energy/internal/billing/interfaces"
	"home-energy/internal/dashboard"
	"home-energy/internal/metering/application"
	metering "home-energy/internal/metering/domain"
	"home-energy/internal/observability/metrics"
)

const devicesPath = "/api/v1/devices"

// DevicesHandler serves the device query API:
//
//	GET /api/v1/devices
//	GET /api/v1/devices/{id}/usage?start=&end=
//	GET /api/v1/devices/{id}/stats?fields=always_on,today_so_far
//	GET /api/v1/devices/{id}/realtime?since=
//	GET /api/v1/devices/{id}/readings?start=&end=
//	GET /api/v1/devices/{id}/report?start=&end=&format=csv|xlsx|pdf
//	GET /api/v1/devices/{id}/live?since=
type DevicesHandler struct {
	query        *application.QueryService
	schedule     billing.Schedule
	offlineAfter time.Duration
	logger       *log.Logger
}

// NewDevicesHandler constructs a DevicesHandler.
func NewDevicesHandler(query *application.QueryService, schedule billing.Schedule, offlineAfter time.Duration, logger *log.Logger) (*DevicesHandler, error) {
	if query == nil {
		return nil, errors.New("devices handler: nil query service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DevicesHandler{query: query, schedule: schedule, offlineAfter: offlineAfter, logger: logger}, nil
}

// ServeHTTP routes device requests.
func (h *DevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, devicesPath), "/")
	if rest == "" {
		h.listDevices(w, r)
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	deviceID, err := url.PathUnescape(parts[0])
	if err != nil || deviceID == "" {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "usage":
		h.usage(w, r, deviceID)
	case "stats":
		h.stats(w, r, deviceID)
	case "realtime":
		h.realtime(w, r, deviceID)
	case "readings":
		h.readings(w, r, deviceID)
	case "report":
		h.report(w, r, deviceID)
	case "live":
		h.live(w, r, deviceID)
	default:
		http.NotFound(w, r)
	}
}

func (h *DevicesHandler) listDevices(w http.ResponseWriter, r *http.Request) {
	ids, err := h.query.ListDevices(r.Context())
	if err != nil {
		h.writeError(w, "list devices", err)
		return
	}
	writeJSON(w, ids)
}

func (h *DevicesHandler) usage(w http.ResponseWriter, r *http.Request, deviceID string) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}
	points, err := h.query.UsageData(r.Context(), deviceID, start, end)
	if err != nil {
		h.writeError(w, "usage", err)
		return
	}
	writeJSON(w, points)
}

func (h *DevicesHandler) stats(w http.ResponseWriter, r *http.Request, deviceID string) {
	opts, err := parseStatsFields(r.URL.Query().Get("fields"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stats, err := h.query.Stats(r.Context(), deviceID, opts)
	if err != nil {
		h.writeError(w, "stats", err)
		return
	}
	writeJSON(w, stats)
}

func (h *DevicesHandler) realtime(w http.ResponseWriter, r *http.Request, deviceID string) {
	since, err := parseUnixQuery(r, "since", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	readings, err := h.query.Realtime(r.Context(), deviceID, since)
	if err != nil {
		h.writeError(w, "realtime", err)
		return
	}
	writeJSON(w, readings)
}

func (h *DevicesHandler) readings(w http.ResponseWriter, r *http.Request, deviceID string) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}
	readings, err := h.query.Readings(r.Context(), deviceID, start, end)
	if err != nil {
		h.writeError(w, "readings", err)
		return
	}
	writeJSON(w, readings)
}

func (h *DevicesHandler) report(w http.ResponseWriter, r *http.Request, deviceID string) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = reportexport.FormatCSV
	}
	started := time.Now()

	summaries, err := h.query.Summaries(r.Context(), deviceID, start, end)
	if err != nil {
		h.writeError(w, "report", err)
		return
	}
	report := billing.BuildReport(deviceID, summaries, h.schedule, h.query.Calendar().Location)

	if format == "json" {
		writeJSON(w, report)
		return
	}
	data, contentType, err := reportexport.Export(report, format, h.query.Now())
	metrics.ObserveReportExport(format, metrics.Result(err), time.Since(started))
	if err != nil {
		if errors.Is(err, reportexport.ErrUnsupportedFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Printf("report export error: device=%s format=%s err=%v", deviceID, format, err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportexport.FileName(deviceID, format)))
	_, _ = w.Write(data)
}

func (h *DevicesHandler) live(w http.ResponseWriter, r *http.Request, deviceID string) {
	since, err := parseUnixQuery(r, "since", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	now := h.query.Now()
	if floor := now.Add(-application.RealtimeWindow).Unix(); since < floor {
		since = floor
	}
	samples, err := h.query.Samples(r.Context(), deviceID, since, now.Unix(), application.RealtimeMaxPoints)
	if err != nil {
		h.writeError(w, "live", err)
		return
	}
	stats, err := h.query.Stats(r.Context(), deviceID, metering.AllStats())
	if err != nil {
		h.writeError(w, "live", err)
		return
	}
	writeJSON(w, dashboard.BuildLiveView(deviceID, h.query.Calendar(), samples, &stats, now, h.offlineAfter))
}

func (h *DevicesHandler) writeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, metering.ErrValidation) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Printf("%s query error: %v", op, err)
	http.Error(w, "query error", http.StatusInternalServerError)
}

func parseRange(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	start, err := parseUnixQuery(r, "start", -1)
	if err == nil && start < 0 {
		err = errors.New("start is required")
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	end, err := parseUnixQuery(r, "end", -1)
	if err == nil && end < 0 {
		err = errors.New("end is required")
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	return start, end, true
}

func parseUnixQuery(r *http.Request, key string, fallback int64) (int64, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("%s must be unix seconds", key)
	}
	return parsed, nil
}

func parseStatsFields(value string) (metering.StatsOptions, error) {
	if strings.TrimSpace(value) == "" {
		return metering.AllStats(), nil
	}
	var opts metering.StatsOptions
	for _, field := range strings.Split(value, ",") {
		switch strings.TrimSpace(field) {
		case "always_on":
			opts.Standby = true
		case "today_so_far":
			opts.TodaySoFar = true
		case "":
		default:
			return opts, fmt.Errorf("unknown stats field %q", field)
		}
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
