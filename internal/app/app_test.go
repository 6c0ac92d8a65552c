package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frota/internal/platform/config"
)

func testConfig(baseURL, backend string) config.Config {
	return config.Config{
		Station: "deluca",
		Upstream: config.UpstreamConfig{
			BaseURL:       baseURL,
			Timeout:       5 * time.Second,
			PrimeStatuses: []int{400, 500},
			MaxBodyBytes:  1 << 20,
		},
		Cache: config.CacheConfig{Backend: backend, TTL: time.Hour},
	}
}

func TestBuildWiresMemoryCache(t *testing.T) {
	var xmlCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/xml/") {
			xmlCalls.Add(1)
		}
		_, _ = w.Write([]byte(`<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe"><NFe><infNFe>
<ide><dhEmi>2024-11-30T13:23:32-03:00</dhEmi></ide>
<pag><detPag><vPag>10.5</vPag></detPag></pag>
</infNFe></NFe></nfeProc>`))
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Build(context.Background(), testConfig(upstream.URL, config.CacheMemory), logger, prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	key := strings.Repeat("5", 44)
	for range 2 {
		record, ok, err := a.Service.Lookup(context.Background(), key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "10,5", record.Amount)
		assert.Equal(t, "N/A", record.Plate)
	}
	assert.Equal(t, int32(1), xmlCalls.Load())
	assert.Empty(t, a.Checks)
}

func TestBuildWithoutCacheAlwaysFetches(t *testing.T) {
	var xmlCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlCalls.Add(1)
		_, _ = w.Write([]byte(`<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe"/>`))
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Build(context.Background(), testConfig(upstream.URL, config.CacheNone), logger, prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	key := strings.Repeat("6", 44)
	for range 2 {
		_, ok, err := a.Service.Lookup(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, int32(2), xmlCalls.Load())
}

func TestBuildRejectsBadUpstream(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := Build(context.Background(), testConfig("ftp://example.com", config.CacheMemory), logger, prometheus.NewRegistry())
	assert.Error(t, err)
}
