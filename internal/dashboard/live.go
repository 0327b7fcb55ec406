package dashboard

import (
	"fmt"
	"math"
	"time"

	metering "home-energy/internal/metering/domain"
)

// DefaultOfflineAfter is the age after which a device counts as offline.
const DefaultOfflineAfter = 5 * time.Minute

// ChartPoint is one point of the live chart.
type ChartPoint struct {
	Timestamp int64   `json:"timestamp"`
	Watts     float64 `json:"watts"`
	Night     bool    `json:"night"`
}

// LiveView is the presentation state of the live dashboard.
type LiveView struct {
	DeviceID     string       `json:"device_id"`
	NoData       bool         `json:"no_data"`
	CurrentWatts float64      `json:"current_watts"`
	LastReading  int64        `json:"last_reading,omitempty"`
	Offline      bool         `json:"offline"`
	TimeAgo      string       `json:"time_ago,omitempty"`
	TodayKWh     float64      `json:"today_kwh"`
	StandbyWatts float64      `json:"standby_watts"`
	MaxWatts     float64      `json:"max_watts"`
	StandbyKWh   float64      `json:"standby_kwh"`
	ActiveKWh    float64      `json:"active_kwh"`
	Series       []ChartPoint `json:"series"`
}

// BuildLiveView derives the live dashboard state from realtime samples.
// Unusable samples and samples older than their predecessor are ignored.
// Server stats, when given, take precedence over values computed from samples.
func BuildLiveView(deviceID string, cal metering.Calendar, samples []metering.Sample, stats *metering.Stats, now time.Time, offlineAfter time.Duration) LiveView {
	if offlineAfter <= 0 {
		offlineAfter = DefaultOfflineAfter
	}
	view := LiveView{DeviceID: deviceID, Series: []ChartPoint{}}

	series := make([]metering.Sample, 0, len(samples))
	for _, sample := range samples {
		if !sample.Usable() {
			continue
		}
		if n := len(series); n > 0 && sample.Timestamp < series[n-1].Timestamp {
			continue
		}
		series = append(series, sample)
	}
	if len(series) == 0 {
		view.NoData = true
		return view
	}

	for _, sample := range series {
		view.Series = append(view.Series, ChartPoint{
			Timestamp: sample.Timestamp,
			Watts:     sample.Watts,
			Night:     cal.IsNightUnix(sample.Timestamp),
		})
	}

	latest := series[len(series)-1]
	view.CurrentWatts = latest.Watts
	view.LastReading = latest.Timestamp
	age := now.Sub(latest.Time())
	if age > offlineAfter {
		view.Offline = true
		view.TimeAgo = FormatTimeAgo(age)
	}

	total := metering.Integrate(cal, series).Total()
	view.TodayKWh = round2(total)
	if stats != nil && stats.TodaySoFarKWh != nil {
		view.TodayKWh = round2(*stats.TodaySoFarKWh)
	}

	view.StandbyWatts = metering.StandbyWatts(series)
	if stats != nil && stats.StandbyWatts != nil {
		view.StandbyWatts = *stats.StandbyWatts
	}
	view.MaxWatts = metering.MaxWatts(series)

	hours := float64(latest.Timestamp-series[0].Timestamp) / 3600
	view.StandbyKWh = view.StandbyWatts / 1000 * hours
	view.ActiveKWh = math.Max(total-view.StandbyKWh, 0)
	return view
}

// FormatTimeAgo renders an age as "12 minutes ago", "2 hours 5 minutes ago" or "1 day 3 hours ago".
func FormatTimeAgo(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	minutes := int(age / time.Minute)
	switch {
	case minutes < 60:
		return fmt.Sprintf("%s ago", plural(minutes, "minute"))
	case minutes < 24*60:
		hours, mins := minutes/60, minutes%60
		if mins > 0 {
			return fmt.Sprintf("%s %s ago", plural(hours, "hour"), plural(mins, "minute"))
		}
		return fmt.Sprintf("%s ago", plural(hours, "hour"))
	default:
		days, hours := minutes/(24*60), (minutes%(24*60))/60
		if hours > 0 {
			return fmt.Sprintf("%s %s ago", plural(days, "day"), plural(hours, "hour"))
		}
		return fmt.Sprintf("%s ago", plural(days, "day"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
