// Package metrics provides Prometheus metrics for the verification pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the verification pipeline metrics.
type Metrics struct {
	// Pipeline outcomes (verified, ineligible, or a failure code)
	VerificationsTotal *prometheus.CounterVec

	// Vendor call latency by provider and result
	ProviderDurationSeconds *prometheus.HistogramVec

	// Lookup cache
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheErrorsTotal prometheus.Counter

	HandleCollisionsTotal prometheus.Counter
	OrphanUploadsSwept    prometheus.Counter
}

// New creates the verification metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycproxy_document_verifications_total",
			Help: "Document verifications by outcome",
		}, []string{"outcome"}),

		ProviderDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycproxy_provider_request_duration_seconds",
			Help:    "Duration of vendor API calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "result"}),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_lookup_cache_hits_total",
			Help: "Record lookups served from cache",
		}),

		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_lookup_cache_misses_total",
			Help: "Record lookups that fell through to the database",
		}),

		CacheErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_lookup_cache_errors_total",
			Help: "Cache read or write failures",
		}),

		HandleCollisionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_handle_collisions_total",
			Help: "Handle inserts rejected by the uniqueness constraint",
		}),

		OrphanUploadsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_orphan_uploads_swept_total",
			Help: "Stale upload files removed by the sweeper",
		}),
	}
}

// RecordOutcome counts a finished verification.
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProvider records the latency of a vendor call.
func (m *Metrics) ObserveProvider(provider, result string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ProviderDurationSeconds.WithLabelValues(provider, result).Observe(durationSeconds)
}

func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordCacheError() {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.Inc()
}

func (m *Metrics) RecordHandleCollision() {
	if m == nil {
		return
	}
	m.HandleCollisionsTotal.Inc()
}

// AddSwept counts removed orphan uploads.
func (m *Metrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrphanUploadsSwept.Add(float64(n))
}
