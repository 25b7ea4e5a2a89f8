package roster

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	rosterSheet = "Roster"
	kpiSheet    = "KPIs"
)

var exportHeader = []string{
	"Hospital Number",
	"Name",
	"Ward",
	"Bed",
	"eGFR",
	"Diagnosis",
	"Active Courses",
	"Missed Doses",
	"Renal Alert",
	"Prolonged Therapy",
	"New Admission",
	"Nearing Stop",
}

var exportWidths = []float64{18, 28, 18, 8, 8, 30, 45, 14, 12, 18, 14, 14}

// WriteXLSX writes the roster rows and the KPI summary as a workbook.
func WriteXLSX(w io.Writer, filter string, entries []Entry, sum Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(rosterSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(rosterSheet, cell, header); err != nil {
			return fmt.Errorf("set header cell %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(rosterSheet, name, name, exportWidths[col]); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(rosterSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}

	for i, e := range entries {
		row := []interface{}{
			e.HospitalNumber,
			e.Name,
			e.Ward,
			e.Bed,
			e.EGFR,
			e.Diagnosis,
			strings.Join(e.ActiveCourses, "; "),
			yesNo(e.Flags.MissedDoses),
			yesNo(e.Flags.RenalAlert),
			yesNo(e.Flags.ProlongedTherapy),
			yesNo(e.IsNew),
			yesNo(e.NearingStop),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(rosterSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(rosterSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze panes: %w", err)
	}

	if _, err := f.NewSheet(kpiSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	kpis := [][]interface{}{
		{"Filter", filter},
		{"As of", sum.AsOf.Format("2006-01-02 15:04 MST")},
		{"Active", sum.ActiveCount},
		{"Red flag", sum.RedFlagCount},
		{"New (24h)", sum.NewCount},
		{"Nearing stop", sum.NearingStopCount},
	}
	for i, kv := range kpis {
		row := kv
		if err := f.SetSheetRow(kpiSheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("write KPI row: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
