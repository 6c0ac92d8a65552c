package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"frota/internal/nfe/models"
)

// SheetName is the worksheet that holds the report.
const SheetName = "Report"

// XLSXSink writes the report as an Excel workbook to a file path.
type XLSXSink struct {
	path string
}

// NewXLSXSink returns a sink that overwrites path on every Write.
func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{path: path}
}

// Path returns the destination file.
func (s *XLSXSink) Path() string {
	return s.path
}

func (s *XLSXSink) Write(_ context.Context, rows []models.Row) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	f, err := workbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save xlsx report: %w", err)
	}
	return nil
}

// WriteXLSX writes the workbook for rows to w.
func WriteXLSX(w io.Writer, rows []models.Row) error {
	f, err := workbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx report: %w", err)
	}
	return nil
}

func workbook(rows []models.Row) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(models.Columns))
	for i, c := range models.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(models.Columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("style xlsx header: %w", err)
	}

	for i, row := range rows {
		values := row.Values()
		line := make([]any, len(values))
		for j, v := range values {
			line[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &line); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write xlsx row %s: %w", row.AccessKey, err)
		}
	}
	return f, nil
}
