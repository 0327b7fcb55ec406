package metering

import (
	"testing"
	"time"
)

func TestCalendarWeekdayHours(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	// 2025-01-01 is a Wednesday.
	for hour := 0; hour < 24; hour++ {
		at := time.Date(2025, time.January, 1, hour, 30, 0, 0, time.UTC)
		want := hour >= 21 || hour <= 5
		if got := cal.IsNight(at); got != want {
			t.Fatalf("hour %d: expected night=%v, got %v", hour, want, got)
		}
	}
}

func TestCalendarWeekendAllNight(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	for _, day := range []int{4, 5} { // Saturday, Sunday
		for hour := 0; hour < 24; hour++ {
			at := time.Date(2025, time.January, day, hour, 0, 0, 0, time.UTC)
			if !cal.IsNight(at) {
				t.Fatalf("%s %02d:00 expected night", at.Weekday(), hour)
			}
		}
	}
}

func TestCalendarUnixMatchesTime(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	wednesday2pm := time.Date(2025, time.January, 1, 14, 0, 0, 0, time.UTC)
	if cal.IsNightUnix(wednesday2pm.Unix()) {
		t.Fatalf("expected day tariff at %s", wednesday2pm)
	}
	if !cal.IsNightUnix(wednesday2pm.Add(9 * time.Hour).Unix()) {
		t.Fatalf("expected night tariff at 23:00")
	}
}

func TestCalendarUsesConfiguredLocation(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	cal := DefaultCalendar(bangkok)

	// 14:00 UTC on a Wednesday is 21:00 in UTC+7.
	at := time.Date(2025, time.January, 1, 14, 0, 0, 0, time.UTC)
	if !cal.IsNight(at) {
		t.Fatalf("expected night in UTC+7")
	}
	if DefaultCalendar(nil).IsNight(at) {
		t.Fatalf("expected day in UTC")
	}

	// Friday 20:00 UTC is Saturday 03:00 in UTC+7.
	friday := time.Date(2025, time.January, 3, 20, 0, 0, 0, time.UTC)
	if cal.location().String() != "ICT" || !cal.IsNight(friday) {
		t.Fatalf("expected weekend night in UTC+7")
	}
}

func TestCalendarWithoutWeekendNight(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	cal.WeekendNight = false
	saturdayNoon := time.Date(2025, time.January, 4, 12, 0, 0, 0, time.UTC)
	if cal.IsNight(saturdayNoon) {
		t.Fatalf("expected day tariff when weekend night is disabled")
	}
}

func TestCalendarValidate(t *testing.T) {
	if err := DefaultCalendar(nil).Validate(); err != nil {
		t.Fatalf("default calendar: %v", err)
	}
	bad := DefaultCalendar(nil)
	bad.NightFromHour = 24
	if err := bad.Validate(); err != ErrInvalidCalendar {
		t.Fatalf("expected ErrInvalidCalendar, got %v", err)
	}
}
