package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskextract/internal/cache"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
)

type fakeStats struct{}

func (fakeStats) CacheStats() cache.Stats {
	return cache.Stats{Hits: 3, Misses: 1, Size: 1, Capacity: 8}
}

func (fakeStats) IntentCacheStats() cache.Stats {
	return cache.Stats{Hits: 5, Evictions: 2, Size: 4, Capacity: 4}
}

func (fakeStats) Threshold() float64 { return 0.8 }

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskextract_test_total",
		Help: "test counter",
	}))
	s, err := NewServer(fakeStats{}, logging.NewNop(), Config{Addr: "127.0.0.1:0", Gatherer: reg, Version: "v1.2.3"})
	require.NoError(t, err)
	return s
}

func TestNewServer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := NewServer(fakeStats{}, logging.NewNop(), Config{})
		require.NoError(t, err)
		assert.Equal(t, "localhost:9464", s.Addr())
	})

	t.Run("requires stats source", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), Config{})
		assert.ErrorContains(t, err, "stats source")
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := NewServer(fakeStats{}, nil, Config{})
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("rejects malformed addr", func(t *testing.T) {
		_, err := NewServer(fakeStats{}, logging.NewNop(), Config{Addr: "9464"})
		assert.ErrorContains(t, err, "invalid addr")
	})
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleMetrics(t *testing.T) {
	s := setupTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taskextract_test_total")
}

func TestHandleStats(t *testing.T) {
	s := setupTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.8, resp.Threshold)
	assert.Equal(t, uint64(3), resp.ExtractionCache.Hits)
	assert.Equal(t, 8, resp.ExtractionCache.Capacity)
	assert.Equal(t, uint64(2), resp.IntentCache.Evictions)
}

func TestNoExtractionAPI(t *testing.T) {
	s := setupTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/extract", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &HTTPMetrics{meter: mp.Meter(httpInstrumentationName), logger: zap.NewNop()}
	m.init()

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "no") })

	for _, path := range []string{"/healthz", "/healthz", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	statuses := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "taskextract.ops.requests_total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				ep, _ := dp.Attributes.Value("endpoint")
				st, _ := dp.Attributes.Value("status")
				counts[ep.AsString()] += dp.Value
				statuses[ep.AsString()] = st.AsInt64()
			}
		}
	}
	assert.Equal(t, int64(2), counts["/healthz"])
	assert.Equal(t, int64(1), counts["/boom"])
	assert.Equal(t, int64(http.StatusTeapot), statuses["/boom"])
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "unmatched", normalizePath(""))
	assert.Equal(t, "/api/v1/stats", normalizePath("/api/v1/stats"))
}
