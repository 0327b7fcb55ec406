package billing

import (
	"bytes"
	"math"
	"time"

	"github.com/shopspring/decimal"

	metering "home-energy/internal/metering/domain"
)

// ReportRow is one day of a usage report.
type ReportRow struct {
	Date     string  `json:"date"`
	DayKWh   float64 `json:"day_kwh"`
	NightKWh float64 `json:"night_kwh"`
	TotalKWh float64 `json:"total_kwh"`
	Cost     float64 `json:"cost"`
	Device   string  `json:"device"`
}

// ReportSummary holds the summary cards of a report.
type ReportSummary struct {
	TotalKWh  float64 `json:"total_kwh"`
	TotalCost float64 `json:"total_cost"`
	AvgKWh    float64 `json:"avg_kwh"`
	PeakKWh   float64 `json:"peak_kwh"`
	Days      int     `json:"days"`
}

// Report is a per-day usage and cost report of one device.
type Report struct {
	DeviceID string        `json:"device_id"`
	Currency string        `json:"currency"`
	Rows     []ReportRow   `json:"rows"`
	Summary  ReportSummary `json:"summary"`
}

// BuildReport prices each summary day with schedule. Dates are rendered in loc
// (UTC when nil). Money and energy card values are rounded to 2 decimals.
func BuildReport(deviceID string, summaries []metering.DailySummary, schedule Schedule, loc *time.Location) Report {
	if loc == nil {
		loc = time.UTC
	}
	report := Report{DeviceID: deviceID, Currency: schedule.Currency, Rows: make([]ReportRow, 0, len(summaries))}

	total := decimal.Zero
	cost := decimal.Zero
	peak := 0.0
	for i, summary := range summaries {
		kwh := summary.Usage.Total()
		row := ReportRow{
			Date:     time.Unix(summary.DayStart, 0).In(loc).Format("2006-01-02"),
			DayKWh:   summary.Usage.Day,
			NightKWh: summary.Usage.Night,
			TotalKWh: kwh,
			Cost:     schedule.EstimateCost(kwh),
			Device:   deviceID,
		}
		report.Rows = append(report.Rows, row)
		total = total.Add(finite(row.TotalKWh))
		cost = cost.Add(finite(row.Cost))
		if i == 0 || kwh > peak {
			peak = kwh
		}
	}

	days := len(report.Rows)
	report.Summary.Days = days
	if days == 0 {
		return report
	}
	report.Summary.TotalKWh = total.Round(2).InexactFloat64()
	report.Summary.TotalCost = cost.Round(2).InexactFloat64()
	report.Summary.AvgKWh = total.Div(decimal.NewFromInt(int64(days))).Round(2).InexactFloat64()
	report.Summary.PeakKWh = finite(peak).Round(2).InexactFloat64()
	return report
}

// CSVHeader is the header row of report CSV exports.
const CSVHeader = "Date,Day_kWh,Night_kWh,Total_kWh,Cost_THB,Device"

// CSV renders the report rows with 3 decimals and CRLF line endings.
func (r Report) CSV() []byte {
	var buf bytes.Buffer
	buf.WriteString(CSVHeader)
	buf.WriteString("\r\n")
	for _, row := range r.Rows {
		buf.WriteString(row.Date)
		buf.WriteByte(',')
		buf.WriteString(Fixed(row.DayKWh, 3))
		buf.WriteByte(',')
		buf.WriteString(Fixed(row.NightKWh, 3))
		buf.WriteByte(',')
		buf.WriteString(Fixed(row.TotalKWh, 3))
		buf.WriteByte(',')
		buf.WriteString(Fixed(row.Cost, 3))
		buf.WriteByte(',')
		buf.WriteString(row.Device)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// Fixed formats v with exactly places decimals, rounding half away from zero.
func Fixed(v float64, places int32) string {
	return finite(v).StringFixed(places)
}

func finite(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
