package metering

import (
	"math"
	"testing"
	"time"
)

const kwhTolerance = 1e-9

func at(year int, month time.Month, day, hour int) int64 {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC).Unix()
}

func sample(ts int64, watts float64) Sample {
	return Sample{Timestamp: ts, Watts: watts, Valid: true}
}

func assertSplit(t *testing.T, got EnergySplit, day, night float64) {
	t.Helper()
	if math.Abs(got.Day-day) > kwhTolerance || math.Abs(got.Night-night) > kwhTolerance {
		t.Fatalf("expected day=%v night=%v, got day=%v night=%v", day, night, got.Day, got.Night)
	}
}

func TestIntegrateEmptyAndSingle(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	assertSplit(t, Integrate(cal, nil), 0, 0)
	assertSplit(t, Integrate(cal, []Sample{sample(at(2025, 1, 1, 14), 1000)}), 0, 0)
}

func TestIntegrateDayExample(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	got := Integrate(cal, []Sample{
		sample(at(2025, 1, 1, 14), 1000),
		sample(at(2025, 1, 1, 15), 500),
	})
	assertSplit(t, got, 1.0, 0)
}

func TestIntegrateNightExample(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	got := Integrate(cal, []Sample{
		sample(at(2025, 1, 1, 23), 1000),
		sample(at(2025, 1, 2, 0), 1000),
	})
	assertSplit(t, got, 0, 1.0)
}

func TestIntegrateClassifiesByLeftEndpoint(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	// 20:00 is day even though the interval ends at night.
	got := Integrate(cal, []Sample{
		sample(at(2025, 1, 1, 20), 2000),
		sample(at(2025, 1, 1, 22), 0),
		sample(at(2025, 1, 1, 23), 0),
	})
	assertSplit(t, got, 4.0, 0)
}

func TestIntegrateIrregularIntervals(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	base := at(2025, 1, 1, 10)
	got := Integrate(cal, []Sample{
		sample(base, 3600),
		sample(base+1, 7200),
		sample(base+1801, 0),
	})
	// 3600 W for 1 s + 7200 W for 1800 s.
	assertSplit(t, got, 0.001+3.6, 0)
}

func TestIntegrateSkipsInvalidWatts(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	base := at(2025, 1, 1, 10)
	got := Integrate(cal, []Sample{
		sample(base, 1000),
		{Timestamp: base + 3600, Watts: math.NaN()},
		sample(base+7200, math.Inf(1)),
		sample(base+10800, 1000),
		sample(base+14400, 0),
	})
	assertSplit(t, got, 2.0, 0)
	if got.SkippedIntervals != 2 {
		t.Fatalf("expected 2 skipped intervals, got %d", got.SkippedIntervals)
	}
}

func TestIntegrateUnorderedInputIsNotSorted(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	got := Integrate(cal, []Sample{
		sample(at(2025, 1, 1, 15), 1000),
		sample(at(2025, 1, 1, 14), 1000),
	})
	assertSplit(t, got, -1.0, 0)

	dup := Integrate(cal, []Sample{
		sample(at(2025, 1, 1, 15), 1000),
		sample(at(2025, 1, 1, 15), 1000),
	})
	assertSplit(t, dup, 0, 0)
}

func TestIntegrateAdditivity(t *testing.T) {
	cal := DefaultCalendar(time.UTC)
	start := at(2025, 1, 3, 18) // Friday evening into Saturday.
	samples := make([]Sample, 0, 40)
	for i := 0; i < 40; i++ {
		samples = append(samples, sample(start+int64(i*i*97), float64(100+(i*37)%900)))
	}
	whole := Integrate(cal, samples)

	for split := 0; split < len(samples); split++ {
		left := Integrate(cal, samples[:split+1])
		right := Integrate(cal, samples[split:])
		sum := left.Add(right)
		if math.Abs(sum.Day-whole.Day) > 1e-9 || math.Abs(sum.Night-whole.Night) > 1e-9 {
			t.Fatalf("split %d: %v + %v != %v", split, left, right, whole)
		}
	}
}

func TestEnergySplitTotal(t *testing.T) {
	split := EnergySplit{Day: 1.25, Night: 0.5}
	if split.Total() != 1.75 {
		t.Fatalf("expected 1.75, got %v", split.Total())
	}
}
