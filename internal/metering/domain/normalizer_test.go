package metering

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseRawItemShapes(t *testing.T) {
	tests := []struct {
		name string
		item RawItem
		kind RecordKind
		base int64
	}{
		{name: "batch", item: RawItem{"sortkey": 1700000000.0, "readings": []any{1.0, 2.0}}, kind: RecordBatch, base: 1700000000},
		{name: "timestamp alias", item: RawItem{"timestamp": 1700000000.0, "watts": 5.0}, kind: RecordSingle, base: 1700000000},
		{name: "json number", item: RawItem{"sortkey": json.Number("1700000001"), "power": json.Number("7")}, kind: RecordSingle, base: 1700000001},
		{name: "missing timestamp", item: RawItem{"reading": 5.0}, kind: RecordInvalid},
		{name: "fractional timestamp", item: RawItem{"sortkey": 1700000000.5, "reading": 5.0}, kind: RecordInvalid},
		{name: "empty readings falls back to single", item: RawItem{"sortkey": 1700000000.0, "readings": []any{}}, kind: RecordSingle, base: 1700000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRawItem(tt.item)
			if got.Kind != tt.kind {
				t.Fatalf("expected kind %s, got %s", tt.kind, got.Kind)
			}
			if got.BaseTimestamp != tt.base {
				t.Fatalf("expected base %d, got %d", tt.base, got.BaseTimestamp)
			}
		})
	}
}

func TestParseRawItemAliasPriority(t *testing.T) {
	got := ParseRawItem(RawItem{"sortkey": 100.0, "timestamp": 200.0, "reading": nil, "watts": 3.0, "power": 4.0})
	if got.BaseTimestamp != 100 {
		t.Fatalf("expected sortkey to win, got %d", got.BaseTimestamp)
	}
	if !got.Reading.Valid || got.Reading.Value != 3 {
		t.Fatalf("expected watts alias after null reading, got %+v", got.Reading)
	}
}

func TestNormalizeBatchAndSingle(t *testing.T) {
	records := ParseRawItems([]RawItem{
		{"sortkey": 1000.0, "readings": []any{10.0, "20", "oops", nil, 40.0}},
		{"sortkey": 2000.0, "reading": "55.5"},
	})
	got := Normalize(records, 0)
	want := []Sample{
		{Timestamp: 1000, Watts: 10, Valid: true},
		{Timestamp: 1001, Watts: 20, Valid: true},
		{Timestamp: 1004, Watts: 40, Valid: true},
		{Timestamp: 2000, Watts: 55.5, Valid: true},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestNormalizeDropRules(t *testing.T) {
	records := ParseRawItems([]RawItem{
		{"sortkey": 1000.0, "readings": []any{}},
		{"reading": 10.0},
		{"sortkey": 1001.0},
	})
	if got := Normalize(records, 0); len(got) != 0 {
		t.Fatalf("expected no samples, got %+v", got)
	}
}

func TestNormalizeUnparseableSingleIsMarkedUndefined(t *testing.T) {
	records := ParseRawItems([]RawItem{{"sortkey": 1000.0, "reading": "abc"}})
	got := Normalize(records, 0)
	if len(got) != 1 {
		t.Fatalf("expected one undefined sample, got %+v", got)
	}
	if got[0].Valid || !math.IsNaN(got[0].Watts) || got[0].Timestamp != 1000 {
		t.Fatalf("expected invalid NaN sample at 1000, got %+v", got[0])
	}
	if valid := ValidSamples(got); len(valid) != 0 {
		t.Fatalf("expected undefined sample to be filtered, got %+v", valid)
	}
}

func TestValidSamplesDropsNegative(t *testing.T) {
	got := ValidSamples([]Sample{
		{Timestamp: 1, Watts: -5, Valid: true},
		{Timestamp: 2, Watts: 0, Valid: true},
		{Timestamp: 3, Watts: math.Inf(1), Valid: true},
	})
	if len(got) != 1 || got[0].Timestamp != 2 {
		t.Fatalf("expected only the zero-watt sample, got %+v", got)
	}
}

func TestDownsampleBoundAndDeterminism(t *testing.T) {
	samples := make([]Sample, 0, 10001)
	for i := 0; i < 10001; i++ {
		samples = append(samples, Sample{Timestamp: int64(i), Watts: float64(i), Valid: true})
	}
	for _, max := range []int{1, 3, 7, 5000, 10000} {
		first := Downsample(samples, max)
		second := Downsample(samples, max)
		if len(first) > max {
			t.Fatalf("max %d: got %d samples", max, len(first))
		}
		if first[0] != samples[0] {
			t.Fatalf("max %d: first sample not preserved", max)
		}
		step := int64((len(samples) + max - 1) / max)
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("max %d: not deterministic at %d", max, i)
			}
			if first[i].Timestamp != int64(i)*step {
				t.Fatalf("max %d: expected stride %d at %d, got %d", max, step, i, first[i].Timestamp)
			}
		}
	}
}

func TestDownsampleNoop(t *testing.T) {
	samples := []Sample{{Timestamp: 1}, {Timestamp: 2}}
	if got := Downsample(samples, 0); len(got) != 2 {
		t.Fatalf("expected no downsampling without a budget")
	}
	if got := Downsample(samples, 2); len(got) != 2 {
		t.Fatalf("expected no downsampling within budget")
	}
}

func TestNormalizeAppliesBudget(t *testing.T) {
	readings := make([]float64, 100)
	got := Normalize([]RawRecord{BatchRecord(500, readings...)}, 30)
	if len(got) != 25 {
		t.Fatalf("expected ceil stride 4 to keep 25 samples, got %d", len(got))
	}
}

func TestCoerceWattage(t *testing.T) {
	tests := []struct {
		in      any
		present bool
		valid   bool
		value   float64
	}{
		{in: nil},
		{in: 12.5, present: true, valid: true, value: 12.5},
		{in: int64(7), present: true, valid: true, value: 7},
		{in: " 42 ", present: true, valid: true, value: 42},
		{in: "", present: true},
		{in: "abc", present: true},
		{in: true, present: true},
		{in: math.NaN(), present: true},
		{in: map[string]any{}, present: true},
	}
	for _, tt := range tests {
		got := CoerceWattage(tt.in)
		if got.Present != tt.present || got.Valid != tt.valid || (tt.valid && got.Value != tt.value) {
			t.Fatalf("coerce %#v: got %+v", tt.in, got)
		}
	}
}
