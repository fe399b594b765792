package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DBStatsSource is satisfied by database.Pool.
type DBStatsSource interface {
	Stats() sql.DBStats
}

// Metrics holds process-level Prometheus metrics.
type Metrics struct {
	BuildInfo      *prometheus.GaugeVec
	DBOpenConns    prometheus.Gauge
	DBInUseConns   prometheus.Gauge
	DBIdleConns    prometheus.Gauge
	DBWaitCount    prometheus.Gauge
	DBWaitDuration prometheus.Gauge
}

// New creates and registers the process metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BuildInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kycproxy_build_info",
			Help: "Build and environment information; value is always 1",
		}, []string{"version", "environment"}),
		DBOpenConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycproxy_db_open_connections",
			Help: "Established database connections, in use and idle",
		}),
		DBInUseConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycproxy_db_in_use_connections",
			Help: "Database connections currently in use",
		}),
		DBIdleConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycproxy_db_idle_connections",
			Help: "Idle database connections",
		}),
		DBWaitCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycproxy_db_wait_count",
			Help: "Cumulative number of connections waited for",
		}),
		DBWaitDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycproxy_db_wait_duration_seconds",
			Help: "Cumulative time blocked waiting for a new connection",
		}),
	}
}

// SetBuildInfo publishes the running version.
func (m *Metrics) SetBuildInfo(version, environment string) {
	m.BuildInfo.WithLabelValues(version, environment).Set(1)
}

// RecordDBStats copies a database pool snapshot into the gauges.
func (m *Metrics) RecordDBStats(src DBStatsSource) {
	stats := src.Stats()
	m.DBOpenConns.Set(float64(stats.OpenConnections))
	m.DBInUseConns.Set(float64(stats.InUse))
	m.DBIdleConns.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
	m.DBWaitDuration.Set(stats.WaitDuration.Seconds())
}

// RunDBStats records pool statistics every interval until ctx is cancelled.
func (m *Metrics) RunDBStats(ctx context.Context, src DBStatsSource, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.RecordDBStats(src)
		}
	}
}
