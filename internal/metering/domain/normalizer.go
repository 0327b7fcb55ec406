package metering

import "math"

// Normalize flattens records into an ordered sample sequence.
// Records without a timestamp or wattage are dropped, batch elements that are
// not numbers are dropped, and a single value that is present but not numeric
// is kept as an invalid sample so exports can still show it.
// When maxPoints > 0 the result is stride-decimated to at most maxPoints samples.
func Normalize(records []RawRecord, maxPoints int) []Sample {
	samples := make([]Sample, 0, len(records))
	for _, record := range records {
		switch record.Kind {
		case RecordBatch:
			for i, reading := range record.Readings {
				if !reading.Valid {
					continue
				}
				samples = append(samples, Sample{
					Timestamp: record.BaseTimestamp + int64(i),
					Watts:     reading.Value,
					Valid:     true,
				})
			}
		case RecordSingle:
			if !record.Reading.Present {
				continue
			}
			if !record.Reading.Valid {
				samples = append(samples, Sample{Timestamp: record.BaseTimestamp, Watts: math.NaN()})
				continue
			}
			samples = append(samples, Sample{
				Timestamp: record.BaseTimestamp,
				Watts:     record.Reading.Value,
				Valid:     true,
			})
		}
	}
	return Downsample(samples, maxPoints)
}

// ValidSamples keeps the samples that can be integrated: valid, finite, non-negative.
func ValidSamples(samples []Sample) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Usable() {
			out = append(out, s)
		}
	}
	return out
}

// Downsample keeps every ceil(N/maxPoints)-th sample, starting with the first.
func Downsample(samples []Sample, maxPoints int) []Sample {
	if maxPoints <= 0 || len(samples) <= maxPoints {
		return samples
	}
	step := (len(samples) + maxPoints - 1) / maxPoints
	out := make([]Sample, 0, maxPoints)
	for i := 0; i < len(samples); i += step {
		out = append(out, samples[i])
	}
	return out
}
