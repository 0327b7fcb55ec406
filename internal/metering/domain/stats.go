package metering

import "math"

// ComputeStats derives the live statistics from raw records.
// Only the statistics selected in opts are computed; the others stay nil.
func ComputeStats(cal Calendar, records []RawRecord, opts StatsOptions) Stats {
	var stats Stats
	if !opts.Standby && !opts.TodaySoFar {
		return stats
	}

	samples := ValidSamples(Normalize(records, 0))

	if opts.Standby {
		standby := StandbyWatts(samples)
		stats.StandbyWatts = &standby
	}
	if opts.TodaySoFar {
		total := Integrate(cal, samples).Total()
		if len(samples) == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
			total = 0
		}
		stats.TodaySoFarKWh = &total
	}
	return stats
}

// StandbyWatts returns the most frequent integer-rounded wattage.
// Ties resolve to the smallest value; no usable samples yields 0.
func StandbyWatts(samples []Sample) float64 {
	counts := make(map[int64]int, len(samples))
	for _, s := range samples {
		if !s.Usable() {
			continue
		}
		counts[int64(math.Round(s.Watts))]++
	}
	if len(counts) == 0 {
		return 0
	}

	var mode int64
	best := 0
	for value, count := range counts {
		if count > best || (count == best && value < mode) {
			mode = value
			best = count
		}
	}
	return float64(mode)
}

// MaxWatts returns the largest usable wattage, 0 when there is none.
func MaxWatts(samples []Sample) float64 {
	max := 0.0
	for _, s := range samples {
		if s.Usable() && s.Watts > max {
			max = s.Watts
		}
	}
	return max
}
