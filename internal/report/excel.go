package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Boletim"

var columns = []string{"Subject", "P1", "P2", "T1", "T2", "T3", "P3", "Average", "Attendance %", "Situation"}

// XLSXRenderer renders the assembled report card as an xlsx workbook.
type XLSXRenderer struct{}

func NewXLSXRenderer() *XLSXRenderer {
	return &XLSXRenderer{}
}

func (r *XLSXRenderer) Render(studentName, studentID, className string, rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Report card: %s (%s)", studentName, studentID))
	if className != "" {
		f.SetCellValue(sheetName, "A2", fmt.Sprintf("Class: %s", className))
	}

	const headerRow = 4
	for i, column := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		f.SetCellValue(sheetName, cell, column)
	}

	for i, row := range rows {
		values := []interface{}{
			row.Subject,
			row.ExamOne,
			row.ExamTwo,
			row.AsgOne,
			row.AsgTwo,
			row.AsgThree,
			row.MakeUp,
			row.Average,
			row.Attendance,
			row.StatusLabel,
		}
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return nil, fmt.Errorf("failed to compute row cell: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
