package csvio

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/table"
)

// AllSheet is the workbook sheet holding every anomaly.
const AllSheet = "All"

// WriteAnomalyWorkbook writes an XLSX workbook with one sheet holding every
// anomaly and one sheet per reason that has rows. Values are written as text.
func WriteAnomalyWorkbook(w io.Writer, anomalies *cleaning.AnomalyTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AllSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSheet(f, AllSheet, anomalies.Table(), headerStyle); err != nil {
		return err
	}
	for _, reason := range cleaning.Reasons {
		if anomalies.Count(reason) == 0 {
			continue
		}
		name := reason.String()
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, anomalies.TableFor(reason), headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, t *table.Table, headerStyle int) error {
	for i, header := range t.Columns() {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range t.Rows() {
		for j, c := range row.Cells {
			cell, err := excelize.CoordinatesToCellName(j+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(sheet, cell, c.String()); err != nil {
				return err
			}
		}
	}

	for i := range t.Columns() {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, 20); err != nil {
			return err
		}
	}
	return nil
}
