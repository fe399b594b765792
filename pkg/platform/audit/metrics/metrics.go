package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit publisher.
type Metrics struct {
	QueueDepth      prometheus.Gauge
	EventsEnqueued  prometheus.Counter
	EventsDropped   prometheus.Counter
	EventsProcessed prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// New registers the audit publisher metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycproxy_audit_queue_depth",
			Help: "Current number of events in the audit publisher queue",
		}),
		EventsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_audit_events_enqueued_total",
			Help: "Total number of audit events successfully enqueued",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_audit_events_dropped_total",
			Help: "Total number of audit events dropped due to full buffer",
		}),
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_audit_events_processed_total",
			Help: "Total number of audit events written to the sink",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycproxy_audit_persist_failures_total",
			Help: "Total number of audit sink write failures",
		}),
		PersistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kycproxy_audit_persist_duration_seconds",
			Help:    "Time taken to write an audit event to the sink",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

// Enqueued counts an accepted event and records the queue depth. All
// recording methods are no-ops on a nil *Metrics.
func (m *Metrics) Enqueued(depth int) {
	if m == nil {
		return
	}
	m.EventsEnqueued.Inc()
	m.QueueDepth.Set(float64(depth))
}

// Dropped counts an event refused because the queue was full.
func (m *Metrics) Dropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

// Persisted records one sink write.
func (m *Metrics) Persisted(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(d.Seconds())
	if err != nil {
		m.PersistFailures.Inc()
		return
	}
	m.EventsProcessed.Inc()
}
