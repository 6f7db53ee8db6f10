package exec

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus-backed observability surface for an Engine,
// the direct generalization of the teacher's PrometheusMetrics: the same
// six-metric shape, relabeled from "node"/"run" to "module"/"execution" and
// with merge-conflict tracking replaced by per-module result-cache
// counters (this engine has no concurrent-state-merge step).
//
// Metrics exposed (namespaced "constellation_"):
//  1. inflight_modules (gauge): modules currently firing. No labels.
//  2. queue_depth (gauge): runnable modules waiting for a worker slot.
//  3. module_latency_ms (histogram): per-module firing duration.
//     Labels: module, status.
//  4. retries_total (counter): retry attempts across all modules.
//     Labels: module.
//  5. cache_events_total (counter): per-module result-cache hits/misses.
//     Labels: kind (hit/miss/eviction).
//  6. backpressure_events_total (counter): worker-pool saturation events.
//     Labels: reason.
type Metrics struct {
	inflightModules prometheus.Gauge
	queueDepth      prometheus.Gauge
	moduleLatency   *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	cacheEvents     *prometheus.CounterVec
	backpressure    *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics creates and registers all engine metrics with reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		enabled: true,
		inflightModules: factory.NewGauge(prometheus.GaugeOpts{
			Name: "constellation_inflight_modules",
			Help: "Current number of module nodes executing concurrently.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "constellation_queue_depth",
			Help: "Number of runnable module nodes waiting for a worker slot.",
		}),
		moduleLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "constellation_module_latency_ms",
			Help:    "Module firing duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"module", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "constellation_retries_total",
			Help: "Cumulative retry attempts across all module nodes.",
		}, []string{"module"}),
		cacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "constellation_cache_events_total",
			Help: "Per-module result-cache hit/miss/eviction counts.",
		}, []string{"kind"}),
		backpressure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "constellation_backpressure_events_total",
			Help: "Worker-pool saturation events.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) incInflight() {
	if m == nil {
		return
	}
	m.inflightModules.Inc()
}

func (m *Metrics) decInflight() {
	if m == nil {
		return
	}
	m.inflightModules.Dec()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) observeLatency(module, status string, ms float64) {
	if m == nil {
		return
	}
	m.moduleLatency.WithLabelValues(module, status).Observe(ms)
}

func (m *Metrics) incRetry(module string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(module).Inc()
}

func (m *Metrics) incCacheEvent(kind string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) incBackpressure(reason string) {
	if m == nil {
		return
	}
	m.backpressure.WithLabelValues(reason).Inc()
}
