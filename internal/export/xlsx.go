// Package export renders a doctor's day of appointments as a downloadable
// spreadsheet.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/clinicbridge/clinic-bot/internal/clinic"
)

// Workbook builds an .xlsx with one row per appointment, ascending by time,
// and returns the file bytes plus a suggested filename.
func Workbook(doctorName string, day time.Time, appts []clinic.DayAppointment) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := day.Format("2006-01-02")
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}

	f.SetCellValue(sheet, "A1", fmt.Sprintf("Appointments for Dr. %s", doctorName))
	f.SetCellValue(sheet, "A2", fmt.Sprintf("Date: %s", day.Format("Monday, January 02, 2006")))
	if err := f.MergeCell(sheet, "A1", "B1"); err != nil {
		return nil, "", fmt.Errorf("merge title: %w", err)
	}

	f.SetCellValue(sheet, "A4", "Appointment Time")
	f.SetCellValue(sheet, "B4", "Patient Name")

	for i, rec := range appts {
		row := i + 5
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.At.Format("03:04 PM"))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), rec.PatientName)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, "", fmt.Errorf("create style: %w", err)
	}
	f.SetCellStyle(sheet, "A1", "B1", bold)
	f.SetCellStyle(sheet, "A4", "B4", bold)

	f.SetColWidth(sheet, "A", "A", 20)
	f.SetColWidth(sheet, "B", "B", 30)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	name := fmt.Sprintf("Appointments_%s_%s.xlsx",
		strings.ReplaceAll(doctorName, " ", "_"), day.Format("2006-01-02"))
	return buf.Bytes(), name, nil
}
