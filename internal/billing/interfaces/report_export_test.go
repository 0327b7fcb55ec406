package interfaces

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	billing "home-energy/internal/billing/domain"
	metering "home-energy/internal/metering/domain"
)

func sampleReport() billing.Report {
	day := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	summaries := []metering.DailySummary{
		{DeviceID: "Room1", DayStart: day.Unix(), Usage: metering.EnergySplit{Day: 2, Night: 1}},
		{DeviceID: "Room1", DayStart: day.AddDate(0, 0, 1).Unix(), Usage: metering.EnergySplit{Day: 4, Night: 0.5}},
	}
	return billing.BuildReport("Room1", summaries, billing.DefaultSchedule(), time.UTC)
}

func TestExportXLSXRoundTrip(t *testing.T) {
	data, contentType, err := Export(sampleReport(), FormatXLSX, time.Now())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if contentType == "" {
		t.Fatalf("expected content type")
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	device, err := f.GetCellValue("summary", "B3")
	if err != nil || device != "Room1" {
		t.Fatalf("expected device Room1, got %q err=%v", device, err)
	}
	header, _ := f.GetCellValue("days", "E1")
	if header != "Cost_THB" {
		t.Fatalf("unexpected header %q", header)
	}
	date, _ := f.GetCellValue("days", "A3")
	if date != "2025-03-02" {
		t.Fatalf("unexpected date %q", date)
	}
}

func TestExportPDF(t *testing.T) {
	data, contentType, err := Export(sampleReport(), "PDF", time.Now())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if contentType != "application/pdf" || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf output, got %s", contentType)
	}
}

func TestExportCSVDefault(t *testing.T) {
	data, _, err := Export(sampleReport(), "", time.Now())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.HasPrefix(data, []byte(billing.CSVHeader+"\r\n")) {
		t.Fatalf("unexpected csv %q", data)
	}
}

func TestExportUnsupported(t *testing.T) {
	if _, _, err := Export(sampleReport(), "docx", time.Now()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if FileName("Room1", "") != "energy_report_Room1.csv" {
		t.Fatalf("unexpected file name")
	}
}
