package metering

import "time"

// Calendar classifies instants into the day or night tariff.
//
// Hours in [NightFromHour, 23] and [0, NightUntilHour] are night on every day.
// When WeekendNight is set, Saturday and Sunday are night for all 24 hours.
// Hours and weekdays are read in Location, never in the host timezone.
type Calendar struct {
	Location       *time.Location
	NightFromHour  int
	NightUntilHour int
	WeekendNight   bool
}

// DefaultCalendar returns the 21:00-06:00 + weekend calendar in loc (UTC when nil).
func DefaultCalendar(loc *time.Location) Calendar {
	return Calendar{
		Location:       loc,
		NightFromHour:  21,
		NightUntilHour: 5,
		WeekendNight:   true,
	}
}

// Validate checks the hour bounds.
func (c Calendar) Validate() error {
	if c.NightFromHour < 0 || c.NightFromHour > 23 {
		return ErrInvalidCalendar
	}
	if c.NightUntilHour < -1 || c.NightUntilHour > 23 {
		return ErrInvalidCalendar
	}
	return nil
}

// IsNight reports whether t falls in the night tariff.
func (c Calendar) IsNight(t time.Time) bool {
	local := t.In(c.location())
	hour := local.Hour()
	if hour >= c.NightFromHour || hour <= c.NightUntilHour {
		return true
	}
	if c.WeekendNight {
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return true
		}
	}
	return false
}

// IsNightUnix reports whether the unix timestamp (seconds) falls in the night tariff.
func (c Calendar) IsNightUnix(sec int64) bool {
	return c.IsNight(time.Unix(sec, 0))
}

// DayStart returns midnight of t's calendar day in the calendar location.
func (c Calendar) DayStart(t time.Time) time.Time {
	local := t.In(c.location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
