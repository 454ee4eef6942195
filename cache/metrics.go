package cache

// Metrics exposes low-level observability hooks, fired on the hot path.
// A NoopMetrics implementation is provided and used by default; plug an
// adapter (see metrics/prom) to export them. This is distinct from Stats
// (cache/stats.go), which are the named, queryable counters of spec.md §6.
type Metrics interface {
	Hit()
	Miss()
	Evict(cause RemovalCause)
	Load(success bool, nanos int64)
	Size(weightedSize int64, entries int)
}

// NoopMetrics discards every signal. It is safe for concurrent use and is
// the default when no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                                 {}
func (NoopMetrics) Miss()                                {}
func (NoopMetrics) Evict(RemovalCause)                   {}
func (NoopMetrics) Load(bool, int64)                     {}
func (NoopMetrics) Size(weightedSize int64, entries int) {}

var _ Metrics = NoopMetrics{}
