package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Clock provides monotonic nanoseconds; calls must be cheap and
// non-faulting, since the hot path consults it on every TTL-bearing read.
type Clock interface{ NowNano() int64 }

// systemClock is the default Clock, backed by time.Now().
type systemClock struct{}

func (systemClock) NowNano() int64 { return time.Now().UnixNano() }

// CacheWriter is an optional write-through sink consulted synchronously
// from Put/Invalidate. A Write or Delete failure aborts the originating
// operation and leaves the cache unchanged, per spec.md §7.
type CacheWriter[K comparable, V any] interface {
	Write(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) error
}

// Options configures a Cache. The zero value is usable: an unbounded-TTL,
// strongly-held, unweighted cache with MaximumWeight entries of weight 1
// each admitted by straight W-TinyLFU.
type Options[K comparable, V any] struct {
	// MaximumWeight bounds total resident weight. 0 means the cache is
	// disabled but observable: nothing is retained, yet Get/Put/Stats all
	// still function (per spec.md §6).
	MaximumWeight int64

	// Weigher computes a non-negative weight for a value. Nil means every
	// entry has weight 1.
	Weigher func(key K, value V) int

	// ExpireAfterAccess resets an entry's access deadline to now+d on every
	// read. Zero disables it.
	ExpireAfterAccess time.Duration
	// ExpireAfterWrite sets an entry's write deadline to now+d on insertion
	// and replacement; reads never extend it. Zero disables it.
	ExpireAfterWrite time.Duration
	// RefreshAfterWrite triggers an asynchronous reload via Loader the
	// first time an entry is read past now-d from its last write, while
	// still returning the stale value to that caller. Zero disables it.
	RefreshAfterWrite time.Duration

	// KeyReferenceStrength and ValueReferenceStrength select how keys and
	// values are retained. Weak keys are not implemented by this engine
	// (keys are always strong; see DESIGN.md); ValueReferenceStrength may
	// be Strong, Weak, or Soft (Soft degrades to Strong — Go has no
	// soft-reference primitive).
	KeyReferenceStrength   refStrength
	ValueReferenceStrength refStrength

	// RemovalListener is notified, fire-and-forget by default, whenever a
	// mapping transitions from present to absent.
	RemovalListener func(key K, value V, cause RemovalCause)
	// SynchronousRemovalListener runs RemovalListener inline on the
	// goroutine executing the drain cycle (after the cache state has
	// committed) instead of dispatching it via Executor or a new goroutine.
	// In both modes a panic from the listener is recovered and logged; it
	// does not propagate to the caller.
	SynchronousRemovalListener bool

	// Writer is an optional write-through sink.
	Writer CacheWriter[K, V]

	// Loader fetches a value on a Get(key, mappingFunction)-style miss and
	// on a refresh-after-write trigger.
	Loader func(ctx context.Context, key K) (V, error)
	// BulkLoader fetches a batch of values for GetAll. A key missing from
	// the returned map is treated as "no mapping" for that key only; it
	// does not fail the rest of the batch.
	BulkLoader func(ctx context.Context, keys []K) (map[K]V, error)

	// Executor runs refresh-after-write reloads, scheduled maintenance
	// drains, and (when not synchronous) listener dispatch. Get and GetAll
	// load on the calling goroutine. Nil means "spawn a goroutine per task".
	Executor func(func())
	// Clock is the monotonic time source. Nil means time.Now().
	Clock Clock

	// Metrics receives low-level Hit/Miss/Evict/Load/Size signals. Nil
	// means NoopMetrics.
	Metrics Metrics

	// StatisticsEnabled turns on the counters returned by Cache.Stats.
	StatisticsEnabled bool

	// Shards controls Entry Store lock striping only (not the replacement
	// policy, which is global to the Cache); <=0 picks a default based on
	// GOMAXPROCS.
	Shards int

	// Logger receives structured diagnostics for caught user-callback
	// errors during a drain. Nil means a no-op logger.
	Logger *zap.Logger
}

func (o Options[K, V]) clockOrDefault() Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return systemClock{}
}

func (o Options[K, V]) loggerOrDefault() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o Options[K, V]) metricsOrDefault() Metrics {
	if o.Metrics != nil {
		return o.Metrics
	}
	return NoopMetrics{}
}

func (o Options[K, V]) weightOf(k K, v V) int32 {
	if o.Weigher == nil {
		return 1
	}
	w := o.Weigher(k, v)
	if w < 0 {
		w = 0
	}
	return int32(w)
}
