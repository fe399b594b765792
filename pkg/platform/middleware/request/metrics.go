package request

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP server instruments.
type Metrics struct {
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "kycproxy_http_request_duration_seconds",
			Help: "HTTP request latency by route pattern, method and status code.",
			// Document uploads wait on the vendor, so the tail reaches tens of seconds.
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route", "method", "status"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycproxy_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
	}
}

func (m *Metrics) observe(route, method string, status int, d time.Duration) {
	m.Duration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Instrument records latency and in-flight requests. route resolves the
// matched pattern after the handler ran; an empty result falls back to
// "unmatched" so raw paths never become labels.
func Instrument(m *Metrics, route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.InFlight.Inc()
			defer m.InFlight.Dec()

			start := time.Now()
			rw := wrapWriter(w)
			next.ServeHTTP(rw, r)

			pattern := ""
			if route != nil {
				pattern = route(r)
			}
			if pattern == "" {
				pattern = "unmatched"
			}
			m.observe(pattern, r.Method, rw.statusCode, time.Since(start))
		})
	}
}
