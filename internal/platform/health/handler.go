// Package health serves the liveness, readiness and status probes.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"kycproxy/pkg/platform/httputil"
)

// Version is stamped at build time with -ldflags "-X kycproxy/internal/platform/health.Version=...".
var Version = "dev"

const checkTimeout = 2 * time.Second

// CheckFunc returns nil while the dependency is usable.
type CheckFunc func(ctx context.Context) error

type Handler struct {
	started     time.Time
	environment string
	logger      *slog.Logger
	draining    atomic.Bool

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

type Option func(*Handler)

// WithLogger logs failing checks. Probe responses only say "down".
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

func New(environment string, opts ...Option) *Handler {
	h := &Handler{
		started:     time.Now(),
		environment: environment,
		checks:      map[string]CheckFunc{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterCheck adds or replaces a readiness check.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Drain makes readiness fail from now on so load balancers stop routing
// here while in-flight requests finish.
func (h *Handler) Drain() {
	h.draining.Store(true)
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

type CheckResult struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// HandleReadiness runs all checks in parallel, each under its own timeout,
// and answers 503 if any fails or the server is draining.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, ReadinessResponse{Status: "draining", Checks: []CheckResult{}})
		return
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	fns := make([]CheckFunc, 0, len(h.checks))
	for name, fn := range h.checks {
		names = append(names, name)
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	results := make([]CheckResult, len(names))
	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			start := time.Now()
			err := fns[i](ctx)
			results[i] = CheckResult{Name: names[i], Status: "up", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				results[i].Status = "down"
				if h.logger != nil {
					h.logger.WarnContext(r.Context(), "readiness check failed", "check", names[i], "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].Name < results[b].Name })

	resp := ReadinessResponse{Status: "ready", Checks: results}
	status := http.StatusOK
	for _, res := range results {
		if res.Status != "up" {
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			break
		}
	}
	httputil.WriteJSON(w, status, resp)
}

type StatusResponse struct {
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Draining      bool   `json:"draining"`
	Time          string `json:"time"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Draining:      h.draining.Load(),
		Time:          time.Now().UTC().Format(time.RFC3339),
	})
}
