package metering

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawItem is one storage item as decoded from the store: attribute name to value.
type RawItem map[string]any

// RecordKind tags the shape of a stored record.
type RecordKind uint8

const (
	// RecordInvalid has no resolvable timestamp.
	RecordInvalid RecordKind = iota
	// RecordBatch carries a readings array sampled at 1 Hz from the base timestamp.
	RecordBatch
	// RecordSingle carries one wattage at the base timestamp.
	RecordSingle
)

func (k RecordKind) String() string {
	switch k {
	case RecordBatch:
		return "batch"
	case RecordSingle:
		return "single"
	default:
		return "invalid"
	}
}

var (
	timestampKeys = []string{"sortkey", "timestamp"}
	wattageKeys   = []string{"reading", "watts", "power"}
)

// Wattage is a stored wattage value after coercion.
type Wattage struct {
	Value   float64
	Present bool
	Valid   bool
	Raw     string
}

// RawRecord is a stored record resolved into one of its shapes.
type RawRecord struct {
	Kind          RecordKind
	BaseTimestamp int64
	Readings      []Wattage
	Reading       Wattage
}

// BatchRecord builds a batch record from numeric readings.
func BatchRecord(base int64, readings ...float64) RawRecord {
	values := make([]Wattage, 0, len(readings))
	for _, r := range readings {
		values = append(values, CoerceWattage(r))
	}
	return RawRecord{Kind: RecordBatch, BaseTimestamp: base, Readings: values}
}

// SingleRecord builds a single-value record.
func SingleRecord(base int64, reading any) RawRecord {
	return RawRecord{Kind: RecordSingle, BaseTimestamp: base, Reading: CoerceWattage(reading)}
}

// ParseRawItem resolves a stored item into a RawRecord.
// A non-empty readings array wins over the single-value aliases.
func ParseRawItem(item RawItem) RawRecord {
	base, ok := resolveTimestamp(item)
	if !ok {
		return RawRecord{Kind: RecordInvalid}
	}

	if list, ok := item["readings"].([]any); ok && len(list) > 0 {
		readings := make([]Wattage, 0, len(list))
		for _, value := range list {
			readings = append(readings, CoerceWattage(value))
		}
		return RawRecord{Kind: RecordBatch, BaseTimestamp: base, Readings: readings}
	}

	record := RawRecord{Kind: RecordSingle, BaseTimestamp: base}
	for _, key := range wattageKeys {
		value, exists := item[key]
		if !exists || value == nil {
			continue
		}
		record.Reading = CoerceWattage(value)
		break
	}
	return record
}

// ParseRawItems resolves a slice of items, keeping the input order.
func ParseRawItems(items []RawItem) []RawRecord {
	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		records = append(records, ParseRawItem(item))
	}
	return records
}

func resolveTimestamp(item RawItem) (int64, bool) {
	for _, key := range timestampKeys {
		value, exists := item[key]
		if !exists || value == nil {
			continue
		}
		w := CoerceWattage(value)
		if !w.Valid || w.Value <= 0 || w.Value != math.Trunc(w.Value) {
			continue
		}
		return int64(w.Value), true
	}
	return 0, false
}

// CoerceWattage converts a stored value into a Wattage.
// Numbers and numeric strings are valid; NaN, Inf, booleans and blanks are not.
func CoerceWattage(value any) Wattage {
	if value == nil {
		return Wattage{}
	}
	w := Wattage{Present: true}
	switch v := value.(type) {
	case float64:
		w.Value = v
	case float32:
		w.Value = float64(v)
	case int:
		w.Value = float64(v)
	case int32:
		w.Value = float64(v)
	case int64:
		w.Value = float64(v)
	case uint32:
		w.Value = float64(v)
	case uint64:
		w.Value = float64(v)
	case json.Number:
		w.Raw = v.String()
		parsed, err := v.Float64()
		if err != nil {
			return w
		}
		w.Value = parsed
	case string:
		w.Raw = v
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return w
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return w
		}
		w.Value = parsed
	case bool:
		w.Raw = strconv.FormatBool(v)
		return w
	default:
		return w
	}
	if math.IsNaN(w.Value) || math.IsInf(w.Value, 0) {
		if w.Raw == "" {
			w.Raw = strconv.FormatFloat(w.Value, 'f', -1, 64)
		}
		return w
	}
	if w.Raw == "" {
		w.Raw = strconv.FormatFloat(w.Value, 'f', -1, 64)
	}
	w.Valid = true
	return w
}
