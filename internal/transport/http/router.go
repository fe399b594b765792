// Package httptransport assembles the public HTTP surface: middleware, probes,
// metrics exposition and the domain routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kycproxy/pkg/platform/middleware/request"
)

// RouteRegistrar mounts a group of routes on a chi router.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	HTTPMetrics    *request.Metrics
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// Probes are mounted outside the timeout and body limit.
	Probes RouteRegistrar
	// APIs are mounted behind the timeout and body limit.
	APIs []RouteRegistrar
}

// NewRouter wires the middleware stack and mounts every registrar.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(request.ClientMetadata)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Instrument(cfg.HTTPMetrics, routePattern))

	if cfg.Probes != nil {
		cfg.Probes.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(request.Timeout(cfg.RequestTimeout))
		}
		if cfg.MaxBodyBytes > 0 {
			r.Use(request.BodyLimit(cfg.MaxBodyBytes))
		}
		for _, api := range cfg.APIs {
			api.Register(r)
		}
	})

	return r
}

// routePattern returns the matched chi pattern, e.g. /v1/sessions/{sessionID}/decision.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
