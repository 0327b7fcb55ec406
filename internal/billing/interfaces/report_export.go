package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "home-energy/internal/billing/domain"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("report export: unsupported format")

// Export renders a report in format and returns the content type.
func Export(report billing.Report, format string, generatedAt time.Time) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return report.CSV(), "text/csv; charset=utf-8", nil
	case FormatXLSX:
		data, err := BuildReportXLSX(report)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	case FormatPDF:
		data, err := BuildReportPDF(report, generatedAt)
		return data, "application/pdf", err
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// FileName returns the download name of a report export.
func FileName(deviceID, format string) string {
	if format == "" {
		format = FormatCSV
	}
	return fmt.Sprintf("energy_report_%s.%s", deviceID, strings.ToLower(format))
}

// BuildReportPDF renders a one-page usage report.
func BuildReportPDF(report billing.Report, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Energy Usage Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", report.DeviceID))
	pdf.Ln(5)
	if len(report.Rows) > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", report.Rows[0].Date, report.Rows[len(report.Rows)-1].Date))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total Energy (kWh): %s", billing.Fixed(report.Summary.TotalKWh, 2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Estimated Cost (%s): %s", report.Currency, billing.Fixed(report.Summary.TotalCost, 2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average per Day (kWh): %s", billing.Fixed(report.Summary.AvgKWh, 2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Peak Day (kWh): %s", billing.Fixed(report.Summary.PeakKWh, 2)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Day (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Night (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Total (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Cost", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range report.Rows {
		pdf.CellFormat(30, 6, row.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, billing.Fixed(row.DayKWh, 2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, billing.Fixed(row.NightKWh, 2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, billing.Fixed(row.TotalKWh, 2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, billing.Fixed(row.Cost, 2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a workbook with a summary and a days sheet.
func BuildReportXLSX(report billing.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	summarySheet := "summary"
	daysSheet := "days"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(daysSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Energy Usage Report")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", report.DeviceID)
	_ = f.SetCellValue(summarySheet, "A4", "Days")
	_ = f.SetCellValue(summarySheet, "B4", report.Summary.Days)
	_ = f.SetCellValue(summarySheet, "A5", "Total Energy (kWh)")
	_ = f.SetCellValue(summarySheet, "B5", report.Summary.TotalKWh)
	_ = f.SetCellValue(summarySheet, "A6", "Estimated Cost")
	_ = f.SetCellValue(summarySheet, "B6", report.Summary.TotalCost)
	_ = f.SetCellValue(summarySheet, "A7", "Average per Day (kWh)")
	_ = f.SetCellValue(summarySheet, "B7", report.Summary.AvgKWh)
	_ = f.SetCellValue(summarySheet, "A8", "Peak Day (kWh)")
	_ = f.SetCellValue(summarySheet, "B8", report.Summary.PeakKWh)
	_ = f.SetCellValue(summarySheet, "A9", "Currency")
	_ = f.SetCellValue(summarySheet, "B9", report.Currency)

	headers := strings.Split(billing.CSVHeader, ",")
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(daysSheet, cell, header)
	}
	for i, row := range report.Rows {
		line := i + 2
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("A%d", line), row.Date)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("B%d", line), row.DayKWh)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("C%d", line), row.NightKWh)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("D%d", line), row.TotalKWh)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("E%d", line), row.Cost)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("F%d", line), row.Device)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
