package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/letably/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newMetricsRouter wires the middleware onto a router backed by a manual
// reader so tests can collect recorded data points synchronously.
func newMetricsRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(provider.Meter("http.server.test"), true))
	return router, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not collected", name)
	return metricdata.Metrics{}
}

func attrValue(set attribute.Set, key attribute.Key) (string, bool) {
	v, ok := set.Value(key)
	if !ok {
		return "", false
	}
	return v.Emit(), true
}

func TestHTTPMetrics_RequestCount(t *testing.T) {
	router, reader := newMetricsRouter(t)
	router.GET("/api/v1/schedules/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	for range 3 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedules/abc123", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	m := findMetric(t, reader, "http_server_request_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	dp := sum.DataPoints[0]
	assert.Equal(t, int64(3), dp.Value)

	// The route label is the pattern, never the concrete path.
	route, found := attrValue(dp.Attributes, telemetry.AttrHTTPRoute)
	require.True(t, found)
	assert.Equal(t, "/api/v1/schedules/:id", route)

	method, found := attrValue(dp.Attributes, telemetry.AttrHTTPMethod)
	require.True(t, found)
	assert.Equal(t, http.MethodGet, method)

	status, found := attrValue(dp.Attributes, telemetry.AttrHTTPStatusCode)
	require.True(t, found)
	assert.Equal(t, "200", status)
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	router, reader := newMetricsRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	m := findMetric(t, reader, "http_server_request_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	route, found := attrValue(sum.DataPoints[0].Attributes, telemetry.AttrHTTPRoute)
	require.True(t, found)
	assert.Equal(t, "unknown", route)
}

func TestHTTPMetrics_Duration(t *testing.T) {
	router, reader := newMetricsRouter(t)
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	m := findMetric(t, reader, "http_server_request_duration_seconds")
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)
	assert.Equal(t, telemetry.HTTPDurationBuckets, dp.Bounds)

	// Duration labels omit the status code.
	_, found := attrValue(dp.Attributes, telemetry.AttrHTTPStatusCode)
	assert.False(t, found)
}

func TestHTTPMetrics_BodySizes(t *testing.T) {
	router, reader := newMetricsRouter(t)
	router.POST("/api/v1/payments", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
	})

	body := strings.NewReader(`{"amount":"450.00","payment_type":"rent"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	reqSize := findMetric(t, reader, "http_server_request_size_bytes")
	reqHist, ok := reqSize.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, reqHist.DataPoints, 1)
	assert.Equal(t, float64(41), reqHist.DataPoints[0].Sum)

	respSize := findMetric(t, reader, "http_server_response_size_bytes")
	respHist, ok := respSize.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, respHist.DataPoints, 1)
	assert.Greater(t, respHist.DataPoints[0].Sum, float64(0))
}

func TestHTTPMetrics_AgencyLabel(t *testing.T) {
	router, reader := newMetricsRouter(t)
	// Simulates the JWT middleware having authenticated the request.
	router.GET("/api/v1/tenancies",
		func(c *gin.Context) { c.Set(JWTAgencyIDKey, "agency-42") },
		func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/tenancies", nil))

	m := findMetric(t, reader, "http_server_request_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	agencyID, found := attrValue(sum.DataPoints[0].Attributes, telemetry.AttrAgencyID)
	require.True(t, found)
	assert.Equal(t, "agency-42", agencyID)
}

func TestHTTPMetrics_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_NilProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: true, MeterProvider: nil}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDefaultHTTPMetricsConfig(t *testing.T) {
	cfg := DefaultHTTPMetricsConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "letably-backend", cfg.ServiceName)
}
