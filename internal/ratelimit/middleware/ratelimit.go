// Package middleware applies per-client-IP rate limits to HTTP routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"kycproxy/internal/platform/privacy"
	"kycproxy/internal/ratelimit/models"
	"kycproxy/pkg/platform/httputil"
	"kycproxy/pkg/requestcontext"
)

// Store consumes one request from a keyed window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// Middleware limits each client IP to limit requests per window. A limit of
// zero or less disables it.
type Middleware struct {
	store  Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

func New(store Store, limit int, window time.Duration, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// RateLimit returns middleware counting requests per IP under class. Store
// errors fail open.
func (m *Middleware) RateLimit(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil || m.store == nil || m.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = "unknown"
			}

			result, err := m.store.Allow(ctx, class+":"+ip, m.limit, m.window)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"class", class,
					"ip_prefix", privacy.AnonymizeIP(ip),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", class,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
