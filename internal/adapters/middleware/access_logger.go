package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

var healthEndpoints = []string{"/health", "/healthz", "/ready", "/readyz", "/live", "/livez"}

// AccessLogger logs one line per request. Health checks are not logged unless asked for.
type AccessLogger struct {
	logger          zerolog.Logger
	logHealthChecks bool
}

func NewAccessLogger(logger zerolog.Logger, logHealthChecks bool) *AccessLogger {
	return &AccessLogger{
		logger:          logger.With().Str("component", "http_access").Logger(),
		logHealthChecks: logHealthChecks,
	}
}

func (a *AccessLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.logHealthChecks && slices.Contains(healthEndpoints, r.URL.Path) {
			next.ServeHTTP(w, r)

			return
		}

		startTime := time.Now()
		recorder := newStatusRecorder(w)

		next.ServeHTTP(recorder, r)

		duration := time.Since(startTime)

		var event *zerolog.Event
		switch status := recorder.statusCode; {
		case status >= http.StatusInternalServerError:
			event = a.logger.Error()
		case status >= http.StatusBadRequest:
			event = a.logger.Warn()
		default:
			event = a.logger.Info()
		}

		event = event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Int("status_code", recorder.statusCode).
			Int64("response_size_bytes", recorder.bytesWritten).
			Dur("duration", duration)

		if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
			event = event.Str("request_id", requestID)
		}

		event.Msg("HTTP request completed")
	})
}
