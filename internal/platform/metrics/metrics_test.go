package metrics

import (
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fixedStats sql.DBStats

func (f fixedStats) Stats() sql.DBStats { return sql.DBStats(f) }

func TestRecordDBStats(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordDBStats(fixedStats{
		OpenConnections: 7,
		InUse:           3,
		Idle:            4,
		WaitCount:       11,
		WaitDuration:    1500 * time.Millisecond,
	})

	assert.Equal(t, float64(7), testutil.ToFloat64(m.DBOpenConns))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBInUseConns))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.DBIdleConns))
	assert.Equal(t, float64(11), testutil.ToFloat64(m.DBWaitCount))
	assert.InDelta(t, 1.5, testutil.ToFloat64(m.DBWaitDuration), 0.001)
}

func TestSetBuildInfo(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetBuildInfo("v1.2.3", "production")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BuildInfo.WithLabelValues("v1.2.3", "production")))
}
