package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, requestID(c))
	})

	t.Run("Generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Len(t, w.Body.String(), 36)
		assert.Equal(t, w.Body.String(), w.Header().Get(requestIDHeader))
	})

	t.Run("Propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Body.String())
		assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	})
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := observability.NewLoggerWithWriter("api", observability.LoggingConfig{Level: "info"}, &buf)

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger(logger))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(requestIDHeader, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "Request served", entry["message"])
	assert.Equal(t, "/test", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := observability.NewPrometheusMetricsClient("mw")

	router := gin.New()
	router.Use(MetricsMiddleware(metrics))
	router.GET("/items/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	for _, path := range []string{"/items/1", "/items/2", "/unknown"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(metrics.Registry(), "mw_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per route template plus one for unmatched paths")
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORSMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	t.Run("Preflight Request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "http://example.com")
		req.Header.Set("Access-Control-Request-Method", "GET")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})

	t.Run("Simple Request", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	storage := NewRateLimiterStorage(RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2})
	router := gin.New()
	router.Use(RateLimiter(storage))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "error", response.Status)
			assert.Equal(t, "Rate limit exceeded", response.Message)
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterStorage_Expiry(t *testing.T) {
	storage := NewRateLimiterStorage(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Expiration: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	storage.now = func() time.Time { return now }

	first := storage.GetLimiter("a")
	assert.Same(t, first, storage.GetLimiter("a"))
	storage.GetLimiter("b")
	assert.Equal(t, 2, storage.Len())

	now = now.Add(2 * time.Minute)
	assert.NotSame(t, first, storage.GetLimiter("a"))
	assert.Equal(t, 1, storage.Len(), "expired clients are swept")
}

func TestTracingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	observability.SetTracerProvider(provider)
	t.Cleanup(func() { observability.SetTracerProvider(noop.NewTracerProvider()) })

	router := gin.New()
	router.Use(RequestID())
	router.Use(TracingMiddleware())
	router.GET("/items/:id", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "fail")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /items/:id", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())

	found := false
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "http.status_code" {
			found = true
			assert.EqualValues(t, 500, attr.Value.AsInt64())
		}
	}
	assert.True(t, found)
}
