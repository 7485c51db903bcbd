package middleware

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"

	"github.com/architeacher/svc-msg-queue/internal/adapters/http/handlers"
	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/internal/infrastructure"
)

const senderHeader = "X-Sender-ID"

// ThrottledRateLimitingMiddleware applies a GCRA quota per client address and sender.
type ThrottledRateLimitingMiddleware struct {
	limiter   *throttled.HTTPRateLimiterCtx
	skipPaths []string
	logger    infrastructure.Logger
}

func NewThrottledRateLimitingMiddleware(
	cfg config.ThrottledRateLimitingConfig,
	logger infrastructure.Logger,
) *ThrottledRateLimitingMiddleware {
	m := &ThrottledRateLimitingMiddleware{
		skipPaths: cfg.SkipPaths,
		logger:    logger.Component("rate_limiter"),
	}

	store, err := memstore.NewCtx(cfg.MaxKeys)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to create rate limiting store, rate limiting disabled")

		return m
	}

	quota := throttled.RateQuota{
		MaxRate:  throttled.PerSec(max(cfg.RequestsPerSecond, 1)),
		MaxBurst: max(cfg.BurstSize-1, 0),
	}

	rateLimiter, err := throttled.NewGCRARateLimiterCtx(store, quota)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to create rate limiter, rate limiting disabled")

		return m
	}

	varyBy := &throttled.VaryBy{RemoteAddr: cfg.EnableIPLimiting}
	if cfg.EnableSenderLimiting {
		varyBy.Headers = []string{senderHeader}
	}

	m.limiter = &throttled.HTTPRateLimiterCtx{
		RateLimiter:   rateLimiter,
		VaryBy:        varyBy,
		DeniedHandler: http.HandlerFunc(m.denied),
		Error:         m.failed,
	}

	return m
}

func (m *ThrottledRateLimitingMiddleware) Middleware(next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}

	limited := m.limiter.RateLimit(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(m.skipPaths, r.URL.Path) {
			next.ServeHTTP(w, r)

			return
		}

		limited.ServeHTTP(w, r)
	})
}

func (m *ThrottledRateLimitingMiddleware) denied(w http.ResponseWriter, r *http.Request) {
	m.logger.Warn().
		Str("remote_addr", r.RemoteAddr).
		Str("sender_id", r.Header.Get(senderHeader)).
		Str("path", r.URL.Path).
		Msg("rate limit exceeded")

	if w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", "1")
	}

	writeError(w, http.StatusTooManyRequests, "too_many_requests", "Rate limit exceeded", "")
}

// failed answers when the store cannot tell whether the request fits the quota.
func (m *ThrottledRateLimitingMiddleware) failed(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Error().Err(err).Str("path", r.URL.Path).Msg("rate limiter failed")

	writeError(w, http.StatusInternalServerError, "internal_server_error", "Rate limiter failed", err.Error())
}

func writeError(w http.ResponseWriter, statusCode int, errorType, message, details string) {
	resp := handlers.ErrorResponse{
		Error:      errorType,
		Message:    message,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}

	if details != "" {
		resp.Details = &details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(resp)
}
