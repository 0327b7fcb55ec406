package metering

import "math"

// Integrate converts an ordered sample sequence into day/night kWh.
//
// Each interval [s[i], s[i+1]] is charged at s[i].Watts held for the elapsed
// seconds and classified by the tariff at s[i]. Input is not sorted: unordered
// or duplicated timestamps produce negative or zero intervals. Intervals whose
// left sample is not usable are skipped and counted in SkippedIntervals.
func Integrate(cal Calendar, samples []Sample) EnergySplit {
	var out EnergySplit
	for i := 0; i+1 < len(samples); i++ {
		current := samples[i]
		if !current.Valid || math.IsNaN(current.Watts) || math.IsInf(current.Watts, 0) {
			out.SkippedIntervals++
			continue
		}

		elapsed := float64(samples[i+1].Timestamp - current.Timestamp)
		kwh := current.Watts * elapsed / 3600 / 1000

		if cal.IsNightUnix(current.Timestamp) {
			out.Night += kwh
		} else {
			out.Day += kwh
		}
	}
	return out
}
