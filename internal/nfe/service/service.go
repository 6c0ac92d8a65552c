// Package service orchestrates one document lookup: validate the key, consult
// the cache, fetch on a miss, extract the record.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"frota/internal/nfe/extractor"
	"frota/internal/nfe/fetcher"
	"frota/internal/nfe/metrics"
	"frota/internal/nfe/models"
	"frota/pkg/domain"
	dErrors "frota/pkg/domain-errors"
	"frota/pkg/platform/sentinel"
	"frota/pkg/requestcontext"
)

// Fetcher retrieves raw document XML.
type Fetcher interface {
	Fetch(ctx context.Context, accessKey string) ([]byte, error)
}

// Extractor turns raw XML into a record.
type Extractor interface {
	Extract(raw []byte) (models.Record, bool, error)
}

// DocumentCache stores raw XML between runs.
type DocumentCache interface {
	FindDocument(ctx context.Context, key domain.AccessKey) ([]byte, error)
	SaveDocument(ctx context.Context, key domain.AccessKey, body []byte) error
}

// Lookup outcomes, used as metric labels and log fields.
const (
	OutcomeExtracted    = "extracted"
	OutcomeAbsent       = "absent"
	OutcomeInvalidInput = "invalid_input"
	OutcomeMalformed    = "malformed"
	OutcomeUpstream     = "upstream_error"
	OutcomeTimeout      = "timeout"
	OutcomeInternal     = "internal_error"
)

// Service coordinates document lookups with caching.
type Service struct {
	fetcher   Fetcher
	extractor Extractor
	cache     DocumentCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the document cache.
func WithCache(cache DocumentCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(f Fetcher, e Extractor, opts ...Option) (*Service, error) {
	if f == nil {
		return nil, errors.New("fetcher is required")
	}
	if e == nil {
		return nil, errors.New("extractor is required")
	}
	s := &Service{
		fetcher:   f,
		extractor: e,
		logger:    slog.Default(),
		tracer:    otel.Tracer("frota/internal/nfe/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lookup returns the record for accessKey. ok is false when the document
// exists but lacks a date or amount. Errors carry a domain-errors code:
// invalid_input, upstream_error, timeout or malformed_document.
func (s *Service) Lookup(ctx context.Context, accessKey string) (record models.Record, ok bool, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "nfe.lookup", trace.WithAttributes(attribute.String("nfe.access_key", accessKey)))
	defer span.End()

	outcome := OutcomeExtracted
	defer func() {
		s.metrics.IncrementOutcome(outcome)
		s.metrics.ObserveLookupLatency(time.Since(start))
		span.SetAttributes(attribute.String("nfe.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
	}()

	key, err := domain.ParseAccessKey(accessKey)
	if err != nil {
		outcome = OutcomeInvalidInput
		return models.Record{}, false, err
	}

	raw, cached, err := s.document(ctx, key)
	if err != nil {
		outcome, err = translateFetchError(err)
		return models.Record{}, false, err
	}
	span.SetAttributes(attribute.Bool("nfe.cache_hit", cached))

	record, ok, err = s.extractor.Extract(raw)
	if err != nil {
		if errors.Is(err, extractor.ErrMalformedDocument) {
			outcome = OutcomeMalformed
			return models.Record{}, false, dErrors.Wrap(err, dErrors.CodeMalformed, "document is not well-formed XML")
		}
		outcome = OutcomeInternal
		return models.Record{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "extract document")
	}
	if !cached {
		s.save(ctx, key, raw)
	}
	if !ok {
		outcome = OutcomeAbsent
		return models.Record{}, false, nil
	}
	return record, true, nil
}

// document returns the raw XML from cache when possible, fetching otherwise.
func (s *Service) document(ctx context.Context, key domain.AccessKey) ([]byte, bool, error) {
	if s.cache != nil {
		raw, err := s.cache.FindDocument(ctx, key)
		if err == nil {
			return raw, true, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "document cache lookup failed",
				"access_key", key,
				"run_id", requestcontext.RunID(ctx),
				"error", err,
			)
		}
	}
	raw, err := s.fetcher.Fetch(ctx, key.String())
	if err != nil {
		return nil, false, err
	}
	return raw, false, nil
}

func (s *Service) save(ctx context.Context, key domain.AccessKey, raw []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveDocument(ctx, key, raw); err != nil {
		s.logger.WarnContext(ctx, "document cache save failed",
			"access_key", key,
			"run_id", requestcontext.RunID(ctx),
			"error", err,
		)
	}
}

func translateFetchError(err error) (string, error) {
	var ue *fetcher.UpstreamError
	var ne net.Error
	switch {
	case dErrors.HasCode(err, dErrors.CodeInvalidInput):
		return OutcomeInvalidInput, err
	case errors.As(err, &ue):
		return OutcomeUpstream, dErrors.Wrap(err, dErrors.CodeUpstream, ue.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return OutcomeTimeout, dErrors.Wrap(err, dErrors.CodeTimeout, "document service timed out")
	default:
		return OutcomeUpstream, dErrors.Wrap(err, dErrors.CodeUpstream, "document service unreachable")
	}
}
