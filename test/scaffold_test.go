package test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"frota/internal/platform/metrics"
	httptransport "frota/internal/transport/http"
	"frota/pkg/platform/middleware/requestid"
	"frota/pkg/testutil"
)

type pingRoute struct{}

func (pingRoute) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func newRouter(checks map[string]httptransport.HealthCheck) http.Handler {
	reg := prometheus.NewRegistry()
	return httptransport.NewRouter(httptransport.Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  metrics.NewWithRegisterer(reg),
		Gatherer: reg,
		Checks:   checks,
		Routes:   []httptransport.Registrar{pingRoute{}},
	})
}

func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "the HTTP router with healthy dependencies", func(t *testing.T) {
		router := newRouter(map[string]httptransport.HealthCheck{
			"cache": func(context.Context) error { return nil },
		})

		testutil.When(t, "calling GET /health", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

			testutil.Then(t, "it should report ok", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusOK)
				testutil.AssertJSONContains(t, rec, "status", "ok")
			})
		})

		testutil.When(t, "calling a registered route", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ping"))

			testutil.Then(t, "it should reach the route and echo a request ID", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusNoContent)
				if rec.Header().Get(requestid.Header) == "" {
					t.Fatalf("expected %s header", requestid.Header)
				}
			})
		})

		testutil.When(t, "calling GET /metrics after traffic", func(t *testing.T) {
			testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ping"))
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "it should expose request counters by route pattern", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusOK)
				body := string(testutil.ReadBody(t, rec))
				if !strings.Contains(body, `frota_http_requests_total{method="GET",route="/ping",status="204"}`) {
					t.Fatalf("metrics output missing request counter:\n%s", body)
				}
			})
		})
	})

	testutil.Given(t, "the HTTP router with a failing dependency", func(t *testing.T) {
		router := newRouter(map[string]httptransport.HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})

		testutil.When(t, "calling GET /health", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

			testutil.Then(t, "it should report degraded", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
				testutil.AssertJSONContains(t, rec, "status", "degraded")
			})
		})
	})
}
