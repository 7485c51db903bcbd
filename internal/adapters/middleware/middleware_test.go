package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLogger_Middleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		path            string
		statusCode      int
		requestID       string
		logHealthChecks bool
		wantLevel       string
	}{
		{name: "success logs info", path: "/metrics", statusCode: http.StatusOK, wantLevel: "info"},
		{name: "client error logs warn", path: "/nope", statusCode: http.StatusNotFound, wantLevel: "warn"},
		{name: "server error logs error", path: "/health", statusCode: http.StatusServiceUnavailable, logHealthChecks: true, wantLevel: "error"},
		{name: "request id is logged", path: "/metrics", statusCode: http.StatusOK, requestID: "req-1", wantLevel: "info"},
		{name: "health checks are skipped", path: "/health", statusCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewAccessLogger(zerolog.New(&buf), tt.logHealthChecks)

			handler := logger.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte("body"))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.requestID != "" {
				req.Header.Set("X-Request-ID", tt.requestID)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.statusCode, rec.Code)

			if tt.wantLevel == "" {
				assert.Empty(t, buf.String())

				return
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.path, entry["path"])
			assert.Equal(t, float64(tt.statusCode), entry["status_code"])
			assert.Equal(t, float64(4), entry["response_size_bytes"])
			assert.Equal(t, "http_access", entry["component"])

			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, entry["request_id"])
			} else {
				assert.NotContains(t, entry, "request_id")
			}
		})
	}
}

type recordedRequest struct {
	method     string
	path       string
	statusCode int
}

type fakeMetrics struct {
	requests []recordedRequest
}

func (f *fakeMetrics) RecordHTTPRequest(_ context.Context, method, path string, statusCode int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method: method, path: path, statusCode: statusCode})
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	t.Parallel()

	metrics := &fakeMetrics{}

	router := chi.NewRouter()
	router.Use(NewMetricsMiddleware(metrics).Middleware)
	router.Get("/queues/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/queues/a", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/queues/b", nil))

	require.Len(t, metrics.requests, 2)
	assert.Equal(t, recordedRequest{method: http.MethodGet, path: "/queues/{id}", statusCode: http.StatusAccepted}, metrics.requests[0])
	assert.Equal(t, "/queues/{id}", metrics.requests[1].path)
}

func TestMetricsMiddleware_FallsBackToPath(t *testing.T) {
	t.Parallel()

	metrics := &fakeMetrics{}
	handler := NewMetricsMiddleware(metrics).Middleware(http.NotFoundHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/unknown", nil))

	require.Len(t, metrics.requests, 1)
	assert.Equal(t, recordedRequest{method: http.MethodPost, path: "/unknown", statusCode: http.StatusNotFound}, metrics.requests[0])
}

func TestStatusRecorder(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	recorder := newStatusRecorder(rec)

	assert.Equal(t, http.StatusOK, recorder.statusCode)

	n, err := recorder.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), recorder.bytesWritten)
	assert.Same(t, rec, recorder.Unwrap())

	recorder.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, recorder.statusCode)
}
