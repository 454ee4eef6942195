package cache

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/doubleshift/wtinylfu/internal/singleflight"
	"github.com/doubleshift/wtinylfu/internal/util"
	"github.com/doubleshift/wtinylfu/sketch"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// cacheImpl is the concrete Cache[K,V]: a thin façade over the Entry Store
// plus a Maintenance Coordinator that owns the replacement policy.
type cacheImpl[K comparable, V any] struct {
	opt   Options[K, V]
	store *store[K, V]
	coord *coordinator[K, V]

	clock   Clock
	logger  *zap.Logger
	metrics Metrics
	stats   *statCounters

	sf         singleflight.Group[K, V]
	refreshSem *semaphore.Weighted

	closed atomic.Bool
}

// New builds a Cache from opt.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	shards := opt.Shards
	if shards <= 0 {
		shards = util.ReasonableShardCount()
	}

	st := newStore[K, V](shards)
	coord := newCoordinator[K, V](opt.MaximumWeight, randomSalt())
	coord.store = st
	coord.readBuf = newReadBuffer[K, V](runtime.GOMAXPROCS(0))
	coord.writeBuf = newWriteBuffer[K, V](4 * shards)

	sketchSize := int(opt.MaximumWeight)
	if sketchSize < 1 {
		sketchSize = 1
	}
	coord.sketch = sketch.New(sketchSize)
	coord.clock = opt.clockOrDefault()
	coord.logger = opt.loggerOrDefault()
	coord.metrics = opt.metricsOrDefault()
	coord.removalListener = opt.RemovalListener
	coord.synchronousRemoval = opt.SynchronousRemovalListener
	coord.executor = opt.Executor
	coord.weakValues = opt.ValueReferenceStrength == Weak

	stats := &statCounters{enabled: opt.StatisticsEnabled}
	coord.stats = stats

	c := &cacheImpl[K, V]{
		opt:     opt,
		store:   st,
		coord:   coord,
		clock:   coord.clock,
		logger:  coord.logger,
		metrics: coord.metrics,
		stats:   stats,
	}
	if opt.RefreshAfterWrite > 0 {
		c.refreshSem = semaphore.NewWeighted(int64(shards))
	}
	return c
}

func randomSalt() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0x9e3779b97f4a7c15 // fallback: a fixed odd constant, still usable as a coin-flip salt
	}
	return binary.LittleEndian.Uint64(b[:])
}

// pushWrite enqueues t and opportunistically attempts a non-blocking drain.
func (c *cacheImpl[K, V]) pushWrite(t writeTask[K, V]) {
	c.coord.writeBuf.Push(t)
	c.coord.tryDrain()
}

func (c *cacheImpl[K, V]) armDeadlines(e *Entry[K, V], now int64) {
	if c.opt.ExpireAfterWrite > 0 {
		e.writeDeadline.Store(now + int64(c.opt.ExpireAfterWrite))
	}
	if c.opt.ExpireAfterAccess > 0 {
		e.accessDeadline.Store(now + int64(c.opt.ExpireAfterAccess))
	}
	if c.opt.RefreshAfterWrite > 0 {
		e.refreshDeadline.Store(now + int64(c.opt.RefreshAfterWrite))
	}
}

// writeValueInto stores value into e's holder in place, swaps in weight,
// and re-arms e's deadlines, returning the weight and value it displaced.
// Shared by Put's in-place update path and the refresh-after-write
// write-back, so both go through the identical value-replacement sequence.
func (c *cacheImpl[K, V]) writeValueInto(e *Entry[K, V], value V, weight int32, now int64) (oldWeight int32, replacedValue V, hasReplaced bool) {
	replacedValue, hasReplaced = e.Value()
	if c.opt.ValueReferenceStrength == Weak {
		e.box.Store(newWeakHolder(value))
	} else {
		e.box.Store(newStrongHolder(value))
	}
	oldWeight = e.weight.Swap(weight)
	c.armDeadlines(e, now)
	return oldWeight, replacedValue, hasReplaced
}

func (c *cacheImpl[K, V]) recordAccess(e *Entry[K, V], now int64) {
	if c.opt.ExpireAfterAccess > 0 {
		e.accessDeadline.Store(now + int64(c.opt.ExpireAfterAccess))
		c.pushWrite(writeTask[K, V]{kind: taskExpireReorder, entry: e})
	}
	if c.coord.readBuf.Offer(e) == readOfferFull {
		c.coord.tryDrain()
	}
}

// GetIfPresent implements Cache.
func (c *cacheImpl[K, V]) GetIfPresent(key K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	hash := util.Hash(key)
	e, ok := c.store.Get(key, hash)
	if !ok || e.IsDead() {
		c.stats.recordMiss()
		c.metrics.Miss()
		return zero, false
	}
	now := c.clock.NowNano()
	if isExpired(e, now) {
		c.stats.recordMiss()
		c.metrics.Miss()
		c.expireNow(e)
		return zero, false
	}
	v, present := e.Value()
	if !present {
		c.stats.recordMiss()
		c.metrics.Miss()
		return zero, false
	}
	c.recordAccess(e, now)
	c.stats.recordHit()
	c.metrics.Hit()
	c.maybeScheduleRefresh(e, key)
	return v, true
}

// expireNow removes an entry found past its deadline on the read path: it
// unlinks it from the store immediately (so subsequent reads never observe
// it) and defers queue/weight bookkeeping to the coordinator.
func (c *cacheImpl[K, V]) expireNow(e *Entry[K, V]) {
	c.store.RemoveIfSame(e.Key(), e.Hash(), e)
	e.markRetired()
	c.pushWrite(writeTask[K, V]{kind: taskRemoval, entry: e, cause: Expired})
}

// Get implements Cache.
func (c *cacheImpl[K, V]) Get(ctx context.Context, key K, mappingFunction func(context.Context, K) (V, error)) (V, error) {
	var zero V
	if v, ok := c.GetIfPresent(key); ok {
		return v, nil
	}
	fn := mappingFunction
	if fn == nil {
		fn = c.opt.Loader
	}
	if fn == nil {
		return zero, ErrNoLoader
	}
	start := c.clock.NowNano()
	v, err := c.sf.Do(ctx, key, func() (V, error) { return fn(ctx, key) })
	nanos := c.clock.NowNano() - start
	c.stats.recordLoad(err == nil, nanos)
	c.metrics.Load(err == nil, nanos)
	if err != nil {
		return zero, err
	}
	c.Put(key, v)
	return v, nil
}

// GetAll implements Cache.
func (c *cacheImpl[K, V]) GetAll(ctx context.Context, keys []K, bulkLoader func(context.Context, []K) (map[K]V, error)) (map[K]V, error) {
	result := make(map[K]V, len(keys))
	var missing []K
	for _, k := range keys {
		if v, ok := c.GetIfPresent(k); ok {
			result[k] = v
		} else {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}
	loader := bulkLoader
	if loader == nil {
		loader = c.opt.BulkLoader
	}
	if loader != nil {
		start := c.clock.NowNano()
		loaded, err := loader(ctx, missing)
		nanos := c.clock.NowNano() - start
		c.stats.recordLoad(err == nil, nanos)
		c.metrics.Load(err == nil, nanos)
		if err != nil {
			return result, err
		}
		for k, v := range loaded {
			c.Put(k, v)
			result[k] = v
		}
		return result, nil
	}

	if c.opt.Loader == nil {
		return result, ErrNoLoader
	}
	// No bulk loader configured: fall back to one coalesced per-key load per
	// missing key, keeping whatever partial results succeed and combining
	// every failure into a single error rather than discarding the batch.
	var mu sync.Mutex
	var errs error
	var wg sync.WaitGroup
	wg.Add(len(missing))
	for _, k := range missing {
		go func(k K) {
			defer wg.Done()
			start := c.clock.NowNano()
			v, err := c.sf.Do(ctx, k, func() (V, error) { return c.opt.Loader(ctx, k) })
			nanos := c.clock.NowNano() - start
			c.stats.recordLoad(err == nil, nanos)
			c.metrics.Load(err == nil, nanos)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err)
				return
			}
			c.Put(k, v)
			result[k] = v
		}(k)
	}
	wg.Wait()
	return result, errs
}

// Put implements Cache. A key already resident is updated in place — its
// value, weight, and deadlines change but it keeps its current queue tag
// and position (an UpdateTask), rather than being demoted back to the
// Window region the way a remove-then-add would. A new key is inserted
// fresh (an AddTask). Both branches of the decision happen under one
// Entry Store shard lock via computeLocked, so a concurrent Put/Invalidate
// for the same key can't race the presence check.
func (c *cacheImpl[K, V]) Put(key K, value V) {
	if c.closed.Load() {
		return
	}
	hash := util.Hash(key)
	weight := c.opt.weightOf(key, value)

	if c.opt.Writer != nil {
		if err := c.opt.Writer.Write(context.Background(), key, value); err != nil {
			return
		}
	}

	now := c.clock.NowNano()
	var oldWeight int32
	var replacedValue V
	var hasReplaced, created bool

	entry, _ := c.store.computeLocked(key, hash, func(cur *Entry[K, V], present bool) (*Entry[K, V], ComputeOp) {
		if present && !cur.IsDead() {
			oldWeight, replacedValue, hasReplaced = c.writeValueInto(cur, value, weight, now)
			return cur, ComputeNoop
		}
		e := newEntry(key, hash, value, weight)
		if c.opt.ValueReferenceStrength == Weak {
			e.box.Store(newWeakHolder(value))
		}
		c.armDeadlines(e, now)
		created = true
		return e, ComputeSet
	})

	if created {
		c.pushWrite(writeTask[K, V]{kind: taskAdd, entry: entry, newWeight: weight})
		return
	}
	task := writeTask[K, V]{kind: taskUpdate, entry: entry, oldWeight: oldWeight, newWeight: weight}
	if hasReplaced {
		task.replaced, task.hasReplaced = replacedValue, true
	}
	c.pushWrite(task)
}

// PutAll implements Cache.
func (c *cacheImpl[K, V]) PutAll(values map[K]V) {
	for k, v := range values {
		c.Put(k, v)
	}
}

// Invalidate implements Cache.
func (c *cacheImpl[K, V]) Invalidate(key K) {
	if c.closed.Load() {
		return
	}
	hash := util.Hash(key)
	if c.opt.Writer != nil {
		if _, ok := c.store.Get(key, hash); !ok {
			return
		}
		if err := c.opt.Writer.Delete(context.Background(), key); err != nil {
			return
		}
	}
	e, ok := c.store.Remove(key, hash)
	if !ok {
		return
	}
	e.markRetired()
	c.pushWrite(writeTask[K, V]{kind: taskRemoval, entry: e, cause: Explicit})
}

// InvalidateAll implements Cache.
func (c *cacheImpl[K, V]) InvalidateAll(keys []K) {
	if keys == nil {
		var all []K
		c.store.Each(func(k K, _ *Entry[K, V]) bool {
			all = append(all, k)
			return true
		})
		keys = all
	}
	for _, k := range keys {
		c.Invalidate(k)
	}
}

// EstimatedSize implements Cache.
func (c *cacheImpl[K, V]) EstimatedSize() int64 {
	return int64(c.store.Len())
}

// Stats implements Cache.
func (c *cacheImpl[K, V]) Stats() Stats {
	return c.stats.snapshot()
}

// CleanUp implements Cache.
func (c *cacheImpl[K, V]) CleanUp() {
	c.coord.forceDrain()
}

// AsMap implements Cache.
func (c *cacheImpl[K, V]) AsMap() map[K]V {
	result := make(map[K]V)
	now := c.clock.NowNano()
	c.store.Each(func(k K, e *Entry[K, V]) bool {
		if e.IsDead() || isExpired(e, now) {
			return true
		}
		if v, ok := e.Value(); ok {
			result[k] = v
		}
		return true
	})
	return result
}

// Policy implements Cache.
func (c *cacheImpl[K, V]) Policy() Policy[K, V] {
	return &policyView[K, V]{c: c}
}

// Close implements Cache.
func (c *cacheImpl[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// maybeScheduleRefresh triggers at most one in-flight asynchronous reload
// per key once its refresh deadline has passed; the caller that observed
// the stale deadline still gets the stale value back immediately. The
// write-back uses MutateIfSame rather than Put so a reload that completes
// after the key was invalidated or replaced in the meantime is discarded
// instead of resurrecting it.
func (c *cacheImpl[K, V]) maybeScheduleRefresh(e *Entry[K, V], key K) {
	if c.opt.RefreshAfterWrite <= 0 || c.opt.Loader == nil {
		return
	}
	rd := e.refreshDeadline.Load()
	if rd == 0 || c.clock.NowNano() < rd {
		return
	}
	if !e.refreshing.CompareAndSwap(false, true) {
		return
	}
	run := func() {
		defer e.refreshing.Store(false)
		if c.refreshSem != nil {
			if err := c.refreshSem.Acquire(context.Background(), 1); err != nil {
				return
			}
			defer c.refreshSem.Release(1)
		}
		start := c.clock.NowNano()
		nv, err := c.opt.Loader(context.Background(), key)
		nanos := c.clock.NowNano() - start
		c.stats.recordLoad(err == nil, nanos)
		c.metrics.Load(err == nil, nanos)
		if err != nil {
			return
		}

		weight := c.opt.weightOf(key, nv)
		now := c.clock.NowNano()
		var oldWeight int32
		var replacedValue V
		var hasReplaced bool
		applied := c.store.MutateIfSame(key, e.Hash(), e, func(cur *Entry[K, V]) {
			oldWeight, replacedValue, hasReplaced = c.writeValueInto(cur, nv, weight, now)
		})
		if !applied {
			return
		}
		task := writeTask[K, V]{kind: taskUpdate, entry: e, oldWeight: oldWeight, newWeight: weight}
		if hasReplaced {
			task.replaced, task.hasReplaced = replacedValue, true
		}
		c.pushWrite(task)
	}
	if c.opt.Executor != nil {
		c.opt.Executor(run)
	} else {
		go run()
	}
}
