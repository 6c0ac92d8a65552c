package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Fetcher,Extractor,DocumentCache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"frota/internal/nfe/extractor"
	"frota/internal/nfe/fetcher"
	"frota/internal/nfe/metrics"
	"frota/internal/nfe/models"
	"frota/internal/nfe/service/mocks"
	"frota/pkg/domain"
	dErrors "frota/pkg/domain-errors"
	"frota/pkg/platform/sentinel"
)

var (
	testKey    = strings.Repeat("7", 44)
	testRecord = models.Record{Date: "30/11/2024", Amount: "425,01", Plate: "ABC-1234", KM: "62876"}
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	fetcher   *mocks.MockFetcher
	extractor *mocks.MockExtractor
	cache     *mocks.MockDocumentCache
	metrics   *metrics.Metrics
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fetcher = mocks.NewMockFetcher(s.ctrl)
	s.extractor = mocks.NewMockExtractor(s.ctrl)
	s.cache = mocks.NewMockDocumentCache(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.service, err = New(s.fetcher, s.extractor,
		WithCache(s.cache),
		WithLogger(logger),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) outcomes(outcome string) float64 {
	return testutil.ToFloat64(s.metrics.LookupOutcome.WithLabelValues(outcome))
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil fetcher returns error", func() {
		_, err := New(nil, s.extractor)
		s.ErrorContains(err, "fetcher is required")
	})

	s.Run("nil extractor returns error", func() {
		_, err := New(s.fetcher, nil)
		s.ErrorContains(err, "extractor is required")
	})

	s.Run("cache is optional", func() {
		svc, err := New(s.fetcher, s.extractor)
		s.NoError(err)
		s.NotNil(svc)
	})
}

func (s *ServiceSuite) TestInvalidKeyTouchesNothing() {
	_, ok, err := s.service.Lookup(context.Background(), "123")
	s.Require().Error(err)
	s.False(ok)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.ErrorIs(err, domain.ErrInvalidAccessKey)
	s.Equal(1.0, s.outcomes(OutcomeInvalidInput))
}

func (s *ServiceSuite) TestCacheMissFetchesExtractsAndSaves() {
	raw := []byte("<nfeProc/>")
	gomock.InOrder(
		s.cache.EXPECT().FindDocument(gomock.Any(), domain.AccessKey(testKey)).Return(nil, sentinel.ErrNotFound),
		s.fetcher.EXPECT().Fetch(gomock.Any(), testKey).Return(raw, nil),
		s.extractor.EXPECT().Extract(raw).Return(testRecord, true, nil),
		s.cache.EXPECT().SaveDocument(gomock.Any(), domain.AccessKey(testKey), raw).Return(nil),
	)

	record, ok, err := s.service.Lookup(context.Background(), testKey)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(testRecord, record)
	s.Equal(1.0, s.outcomes(OutcomeExtracted))
}

func (s *ServiceSuite) TestCacheHitSkipsFetch() {
	raw := []byte("<cached/>")
	s.cache.EXPECT().FindDocument(gomock.Any(), domain.AccessKey(testKey)).Return(raw, nil)
	s.extractor.EXPECT().Extract(raw).Return(testRecord, true, nil)

	record, ok, err := s.service.Lookup(context.Background(), testKey)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(testRecord, record)
}

func (s *ServiceSuite) TestCacheFailuresDoNotFailLookup() {
	raw := []byte("<nfeProc/>")
	s.cache.EXPECT().FindDocument(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
	s.fetcher.EXPECT().Fetch(gomock.Any(), testKey).Return(raw, nil)
	s.extractor.EXPECT().Extract(raw).Return(testRecord, true, nil)
	s.cache.EXPECT().SaveDocument(gomock.Any(), gomock.Any(), raw).Return(errors.New("redis down"))

	_, ok, err := s.service.Lookup(context.Background(), testKey)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ServiceSuite) TestAbsentRecordIsNotAnError() {
	raw := []byte("<nfeProc/>")
	s.cache.EXPECT().FindDocument(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
	s.fetcher.EXPECT().Fetch(gomock.Any(), testKey).Return(raw, nil)
	s.extractor.EXPECT().Extract(raw).Return(models.Record{}, false, nil)
	s.cache.EXPECT().SaveDocument(gomock.Any(), gomock.Any(), raw).Return(nil)

	_, ok, err := s.service.Lookup(context.Background(), testKey)
	s.NoError(err)
	s.False(ok)
	s.Equal(1.0, s.outcomes(OutcomeAbsent))
}

func (s *ServiceSuite) TestMalformedDocumentIsNotCached() {
	raw := []byte("<<broken")
	s.cache.EXPECT().FindDocument(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
	s.fetcher.EXPECT().Fetch(gomock.Any(), testKey).Return(raw, nil)
	s.extractor.EXPECT().Extract(raw).Return(models.Record{}, false, fmt.Errorf("%w: bad", extractor.ErrMalformedDocument))

	_, ok, err := s.service.Lookup(context.Background(), testKey)
	s.Require().Error(err)
	s.False(ok)
	s.True(dErrors.HasCode(err, dErrors.CodeMalformed))
	s.ErrorIs(err, extractor.ErrMalformedDocument)
	s.Equal(1.0, s.outcomes(OutcomeMalformed))
}

func (s *ServiceSuite) TestFetchErrorsAreTranslated() {
	tests := []struct {
		name    string
		err     error
		code    dErrors.Code
		outcome string
	}{
		{
			name:    "upstream status",
			err:     &fetcher.UpstreamError{Endpoint: fetcher.EndpointXML, Status: http.StatusNotFound},
			code:    dErrors.CodeUpstream,
			outcome: OutcomeUpstream,
		},
		{
			name:    "deadline",
			err:     &fetcher.TransportError{Endpoint: fetcher.EndpointXML, Err: context.DeadlineExceeded},
			code:    dErrors.CodeTimeout,
			outcome: OutcomeTimeout,
		},
		{
			name:    "connection refused",
			err:     &fetcher.TransportError{Endpoint: fetcher.EndpointData, Err: errors.New("connection refused")},
			code:    dErrors.CodeUpstream,
			outcome: OutcomeUpstream,
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.cache.EXPECT().FindDocument(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
			s.fetcher.EXPECT().Fetch(gomock.Any(), testKey).Return(nil, tt.err)

			_, ok, err := s.service.Lookup(context.Background(), testKey)
			s.Require().Error(err)
			s.False(ok)
			s.True(dErrors.HasCode(err, tt.code), "got %v", err)
			s.ErrorIs(err, tt.err)
		})
	}
	s.Equal(2.0, s.outcomes(OutcomeUpstream))
	s.Equal(1.0, s.outcomes(OutcomeTimeout))
}

func (s *ServiceSuite) TestUpstreamStatusSurvivesTranslation() {
	s.cache.EXPECT().FindDocument(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
	s.fetcher.EXPECT().Fetch(gomock.Any(), testKey).
		Return(nil, &fetcher.UpstreamError{Endpoint: fetcher.EndpointXML, Status: http.StatusForbidden})

	_, _, err := s.service.Lookup(context.Background(), testKey)
	s.Equal(http.StatusForbidden, fetcher.UpstreamStatus(err))
}
