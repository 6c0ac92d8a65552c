// Package batch runs document lookups for a list of access keys concurrently
// and collects the extracted rows in input order.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"frota/internal/nfe/models"
	"frota/pkg/domain"
	dErrors "frota/pkg/domain-errors"
	"frota/pkg/requestcontext"
)

const (
	DefaultConcurrency = 4
	DefaultKeyTimeout  = 45 * time.Second
)

// Looker resolves one access key into a record.
type Looker interface {
	Lookup(ctx context.Context, accessKey string) (models.Record, bool, error)
}

// Failure is a key whose lookup returned an error.
type Failure struct {
	AccessKey string
	Code      dErrors.Code
	Err       error
}

// Summary counts what happened to each key of a run.
type Summary struct {
	RunID     string
	Processed int
	Extracted int
	Absent    int
	Failed    int
	Duration  time.Duration
}

// Report is the outcome of a run. Rows and Failures follow input order.
type Report struct {
	Rows     []models.Row
	Failures []Failure
	Summary  Summary
}

// Runner processes keys through a Looker.
type Runner struct {
	looker      Looker
	station     string
	concurrency int
	keyTimeout  time.Duration
	logger      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency bounds the number of lookups in flight.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithKeyTimeout bounds each individual lookup.
func WithKeyTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.keyTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Runner that stamps every row with station.
func New(looker Looker, station string, opts ...Option) (*Runner, error) {
	if looker == nil {
		return nil, errors.New("looker is required")
	}
	r := &Runner{
		looker:      looker,
		station:     station,
		concurrency: DefaultConcurrency,
		keyTimeout:  DefaultKeyTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type result struct {
	done   bool
	record models.Record
	ok     bool
	err    error
}

// Run looks up every key. A failing key is recorded and the run continues;
// the returned error is non-nil only when ctx ends before all keys ran.
func (r *Runner) Run(ctx context.Context, keys []string) (Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = requestcontext.WithRunID(ctx, runID)

	r.logger.InfoContext(ctx, "batch started", "run_id", runID, "keys", len(keys), "concurrency", r.concurrency)

	results := make([]result, len(keys))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, key := range keys {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.lookup(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Summary: Summary{RunID: runID}}
	for i, key := range keys {
		res := results[i]
		if !res.done {
			continue
		}
		report.Summary.Processed++
		switch {
		case res.err != nil:
			report.Summary.Failed++
			report.Failures = append(report.Failures, Failure{
				AccessKey: key,
				Code:      dErrors.CodeOf(res.err),
				Err:       res.err,
			})
		case res.ok:
			report.Summary.Extracted++
			report.Rows = append(report.Rows, models.Row{
				AccessKey: domain.AccessKey(key),
				Station:   r.station,
				Record:    res.record,
			})
		default:
			report.Summary.Absent++
		}
	}
	report.Summary.Duration = time.Since(start)

	r.logger.InfoContext(ctx, "batch finished",
		"run_id", runID,
		"processed", report.Summary.Processed,
		"extracted", report.Summary.Extracted,
		"absent", report.Summary.Absent,
		"failed", report.Summary.Failed,
		"duration", report.Summary.Duration,
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) lookup(ctx context.Context, key string) result {
	ctx, cancel := context.WithTimeout(ctx, r.keyTimeout)
	defer cancel()

	record, ok, err := r.looker.Lookup(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "lookup failed",
			"run_id", requestcontext.RunID(ctx),
			"access_key", key,
			"code", dErrors.CodeOf(err),
			"error", err,
		)
		return result{done: true, err: err}
	}
	if !ok {
		r.logger.InfoContext(ctx, "document has no date or amount",
			"run_id", requestcontext.RunID(ctx),
			"access_key", key,
		)
	}
	return result{done: true, record: record, ok: ok}
}
