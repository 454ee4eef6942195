// Package prom adapts cache.Metrics to Prometheus collectors.
package prom

import (
	"github.com/doubleshift/wtinylfu/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	evicts        *prometheus.CounterVec
	loadSuccesses prometheus.Counter
	loadFailures  prometheus.Counter
	loadNanos     prometheus.Histogram
	sizeWeight    prometheus.Gauge
	sizeEntries   prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "hits_total",
			Help: "Cache hits", ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "misses_total",
			Help: "Cache misses", ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "evictions_total",
			Help: "Cache evictions by cause", ConstLabels: constLabels,
		}, []string{"cause"}),
		loadSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "load_success_total",
			Help: "Successful loader invocations", ConstLabels: constLabels,
		}),
		loadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "load_failure_total",
			Help: "Failed loader invocations", ConstLabels: constLabels,
		}),
		loadNanos: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub, Name: "load_duration_seconds",
			Help: "Loader latency", ConstLabels: constLabels,
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		sizeWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "size_weight",
			Help: "Total resident weight", ConstLabels: constLabels,
		}),
		sizeEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "size_entries",
			Help: "Number of resident entries", ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.loadSuccesses, a.loadFailures, a.loadNanos, a.sizeWeight, a.sizeEntries)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a cause label.
func (a *Adapter) Evict(cause cache.RemovalCause) {
	a.evicts.WithLabelValues(cause.String()).Inc()
}

// Load records a loader invocation's outcome and latency.
func (a *Adapter) Load(success bool, nanos int64) {
	if success {
		a.loadSuccesses.Inc()
	} else {
		a.loadFailures.Inc()
	}
	a.loadNanos.Observe(float64(nanos) / 1e9)
}

// Size updates gauges for total resident weight and entry count.
func (a *Adapter) Size(weightedSize int64, entries int) {
	a.sizeWeight.Set(float64(weightedSize))
	a.sizeEntries.Set(float64(entries))
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
