package metering

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

const undefinedWattage = "undefined"

// ExportCSV renders records as the archive CSV: header "Timestamp,Watts",
// one row per reading, "undefined" when a wattage cannot be resolved.
// Records without a timestamp are left out.
func ExportCSV(records []RawRecord) []byte {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"Timestamp", "Watts"})
	for _, record := range records {
		switch record.Kind {
		case RecordBatch:
			for i, reading := range record.Readings {
				_ = writer.Write([]string{
					strconv.FormatInt(record.BaseTimestamp+int64(i), 10),
					csvWattage(reading),
				})
			}
		case RecordSingle:
			_ = writer.Write([]string{
				strconv.FormatInt(record.BaseTimestamp, 10),
				csvWattage(record.Reading),
			})
		}
	}
	writer.Flush()
	return buf.Bytes()
}

func csvWattage(w Wattage) string {
	if !w.Present {
		return undefinedWattage
	}
	if w.Valid {
		return strconv.FormatFloat(w.Value, 'f', -1, 64)
	}
	return w.Raw
}

// ArchivePath returns archived-readings/<device>/<yyyy>/<mm>/<yyyymmdd>.csv for a UTC day.
func ArchivePath(deviceID string, dayStart int64) string {
	day := time.Unix(dayStart, 0).UTC()
	return fmt.Sprintf("archived-readings/%s/%04d/%02d/%s.csv",
		deviceID, day.Year(), int(day.Month()), day.Format("20060102"))
}
