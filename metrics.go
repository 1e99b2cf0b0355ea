package oblsm

import (
	"sync"
	"sync/atomic"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters and a latency histogram for one DB
// instance. The Prometheus counters are handed out by Collectors for
// registration with a caller's own registry; the HdrHistogram backs GetLatencyPercentile, which needs
// precise quantile queries client_golang's own histogram type doesn't
// expose directly.
type Metrics struct {
	PutCount        atomic.Int64
	GetCount        atomic.Int64
	FlushCount      atomic.Int64
	CompactionCount atomic.Int64

	latencyMu  sync.Mutex
	getLatency *hdrhistogram.Histogram

	PromPutTotal prometheus.Counter
	PromGetTotal prometheus.Counter

	// Sublevels is the current run count under Tiered compaction, a
	// stand-in for Leveled's sublevel count since Tiered has no levels
	// of its own. Zero under Leveled compaction.
	Sublevels atomic.Int32
}

func newMetrics() *Metrics {
	return &Metrics{
		getLatency: hdrhistogram.New(1, 10_000_000, 3),
		PromPutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oblsm_put_total",
			Help: "Total Put/Apply operations committed.",
		}),
		PromGetTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oblsm_get_total",
			Help: "Total Get operations served.",
		}),
	}
}

// RecordGetLatency records one Get call's duration in microseconds.
func (m *Metrics) RecordGetLatency(micros int64) {
	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()
	_ = m.getLatency.RecordValue(micros)
	m.PromGetTotal.Inc()
}

// GetLatencyPercentile returns the p-th percentile (0-100) of recorded
// Get latencies in microseconds.
func (m *Metrics) GetLatencyPercentile(p float64) int64 {
	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()
	return m.getLatency.ValueAtQuantile(p)
}

// Collectors returns the Prometheus collectors callers should register
// against their own registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.PromPutTotal, m.PromGetTotal}
}
