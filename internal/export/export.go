// Package export writes extracted rows to the report destinations: CSV and
// XLSX files on disk and an optional Kafka topic.
package export

import (
	"context"
	"errors"

	"frota/internal/nfe/models"
)

// ErrNoRows is returned by file sinks asked to write an empty report.
var ErrNoRows = errors.New("no rows to export")

// Sink receives the rows of one batch run.
type Sink interface {
	Write(ctx context.Context, rows []models.Row) error
}

// Multi writes to every sink in order. A failing sink does not stop the
// others; all failures are joined.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Write(ctx context.Context, rows []models.Row) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
