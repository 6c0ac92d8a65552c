package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"frota/internal/nfe/models"
)

// CSVSink writes the report as comma-separated values to a file path.
type CSVSink struct {
	path string
}

// NewCSVSink returns a sink that overwrites path on every Write.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the destination file.
func (s *CSVSink) Path() string {
	return s.path
}

func (s *CSVSink) Write(_ context.Context, rows []models.Row) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create csv report: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv report: %w", err)
	}
	return nil
}

// WriteCSV writes the header line and one line per row to w.
func WriteCSV(w io.Writer, rows []models.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.Values()); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.AccessKey, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv report: %w", err)
	}
	return nil
}
