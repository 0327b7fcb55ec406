package metering

import (
	"math"
	"time"
)

// SummaryRetention is how long a daily summary is kept before it expires.
const SummaryRetention = 365 * 24 * time.Hour

// Sample is one (timestamp, watts) observation.
// Valid is false for the "undefined" sentinel emitted when a single-value
// record carries a wattage that does not resolve to a number.
type Sample struct {
	Timestamp int64
	Watts     float64
	Valid     bool
}

// Time returns the sample timestamp as UTC time.
func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// Usable reports whether the sample may be fed to the integrator.
func (s Sample) Usable() bool {
	return s.Valid && !math.IsNaN(s.Watts) && !math.IsInf(s.Watts, 0) && s.Watts >= 0
}

// EnergySplit is an amount of energy in kWh split by tariff.
type EnergySplit struct {
	Day   float64 `json:"day"`
	Night float64 `json:"night"`

	// SkippedIntervals counts intervals whose left sample had no usable wattage.
	SkippedIntervals int `json:"-"`
}

// Total returns day + night kWh.
func (e EnergySplit) Total() float64 {
	return e.Day + e.Night
}

// Add returns the pointwise sum of two splits.
func (e EnergySplit) Add(other EnergySplit) EnergySplit {
	return EnergySplit{
		Day:              e.Day + other.Day,
		Night:            e.Night + other.Night,
		SkippedIntervals: e.SkippedIntervals + other.SkippedIntervals,
	}
}

// DailySummary is the rolled-up usage of one device for one UTC day.
type DailySummary struct {
	DeviceID  string
	DayStart  int64
	Usage     EnergySplit
	ExpiresAt int64
}

// NewDailySummary builds a summary for the day starting at dayStart.
func NewDailySummary(deviceID string, dayStart int64, usage EnergySplit) (DailySummary, error) {
	if deviceID == "" {
		return DailySummary{}, ErrEmptyDeviceID
	}
	if dayStart <= 0 {
		return DailySummary{}, ErrInvalidDayStart
	}
	return DailySummary{
		DeviceID:  deviceID,
		DayStart:  dayStart,
		Usage:     usage,
		ExpiresAt: dayStart + int64(SummaryRetention/time.Second),
	}, nil
}

// Stats holds the live statistics of a device. Nil fields were not requested.
type Stats struct {
	StandbyWatts  *float64 `json:"always_on,omitempty"`
	TodaySoFarKWh *float64 `json:"today_so_far,omitempty"`
}

// StatsOptions selects which statistics are computed.
type StatsOptions struct {
	Standby    bool
	TodaySoFar bool
}

// AllStats requests every statistic.
func AllStats() StatsOptions {
	return StatsOptions{Standby: true, TodaySoFar: true}
}
