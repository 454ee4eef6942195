package cache

import (
	"runtime"
	"sync/atomic"

	"github.com/doubleshift/wtinylfu/queue"
	"github.com/doubleshift/wtinylfu/sketch"
	"go.uber.org/zap"
)

// readDrainQuantum bounds how many read-buffer entries a single drain cycle
// consumes per stripe, so one cycle can't be monopolized by a single very
// hot stripe.
const readDrainQuantum = 16

// coordinator is the Maintenance Coordinator: the single place that ever
// mutates the W/P/M queues, the frequency sketch, and the weight total. All
// of that state is reachable only while drainLock has been won via
// CompareAndSwap, which is this type's only form of mutual exclusion — a
// non-blocking, non-reentrant spinlock rather than a sync.Mutex, so that a
// caller who loses the race simply moves on instead of queueing behind one.
type coordinator[K comparable, V any] struct {
	store    *store[K, V]
	readBuf  *readBuffer[K, V]
	writeBuf *writeBuffer[K, V]
	sketch   *sketch.Sketch
	expirer  expirer[K, V]

	window    queue.List[*Entry[K, V]]
	probation queue.List[*Entry[K, V]]
	protected queue.List[*Entry[K, V]]

	maxWeight   atomic.Int64
	weightTotal atomic.Int64
	windowMax   atomic.Int64
	protectedMax atomic.Int64

	drainLock atomic.Bool
	scheduled atomic.Bool

	salt uint64 // per-cache admission tie-break salt

	// weakValues mirrors Options.ValueReferenceStrength == Weak; gates
	// whether runDrain bothers scanning for GC-collected values at all.
	weakValues bool

	clock   Clock
	logger  *zap.Logger
	metrics Metrics
	stats   *statCounters

	removalListener func(K, V, RemovalCause)
	synchronousRemoval bool
	executor           func(func())
}

func newCoordinator[K comparable, V any](maxWeight int64, salt uint64) *coordinator[K, V] {
	c := &coordinator[K, V]{salt: salt}
	c.maxWeight.Store(maxWeight)
	c.recomputeTargets(maxWeight)
	return c
}

// recomputeTargets derives the Window/Protected/Probation size budgets from
// a total weight budget, per spec.md's ~1%/80%/rest split.
func (c *coordinator[K, V]) recomputeTargets(maxWeight int64) {
	wmax := maxWeight / 100
	if wmax < 1 && maxWeight > 0 {
		wmax = 1
	}
	main := maxWeight - wmax
	mmax := (main * 80) / 100
	c.windowMax.Store(wmax)
	c.protectedMax.Store(mmax)
}

func (c *coordinator[K, V]) listFor(tag queue.Tag) *queue.List[*Entry[K, V]] {
	switch tag {
	case queue.Window:
		return &c.window
	case queue.Probation:
		return &c.probation
	case queue.Protected:
		return &c.protected
	default:
		return nil
	}
}

// tryDrain attempts the non-blocking drain used from hot paths: if another
// goroutine already holds the lock, it returns immediately and trusts that
// holder to absorb the pending work.
func (c *coordinator[K, V]) tryDrain() {
	if !c.drainLock.CompareAndSwap(false, true) {
		return
	}
	c.runDrain()
	c.drainLock.Store(false)
}

// forceDrain spins until it wins the lock, for synchronous operations
// (CleanUp, Policy snapshots) that need a consistent view and can afford to
// block briefly. It is never called from the hot Get/Put path.
func (c *coordinator[K, V]) forceDrain() {
	for !c.drainLock.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	c.runDrain()
	c.drainLock.Store(false)
}

// withLock runs f with the drain lock held, without also running a drain
// cycle; used by Policy snapshots that only need a consistent read.
func (c *coordinator[K, V]) withLock(f func()) {
	for !c.drainLock.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	defer c.drainLock.Store(false)
	f()
}

// runDrain executes one pass of the six-step cycle from spec.md §4.6. The
// caller must already hold drainLock.
func (c *coordinator[K, V]) runDrain() {
	c.readBuf.DrainAll(readDrainQuantum, c.onAccess)
	c.writeBuf.DrainAll(c.applyTask)
	c.evictEntries()
	c.expirer.sweep(c.clock.NowNano(), func(e *Entry[K, V]) { c.evict(e, Expired) })
	if c.weakValues {
		c.sweepCollected()
	}
	c.metrics.Size(c.weightTotal.Load(), c.store.Len())

	if c.writeBuf.Len() > 0 {
		c.scheduleDrain()
	}
}

// scheduleDrain ensures at most one pending asynchronous drain is queued.
func (c *coordinator[K, V]) scheduleDrain() {
	if !c.scheduled.CompareAndSwap(false, true) {
		return
	}
	run := func() {
		defer c.scheduled.Store(false)
		c.tryDrain()
	}
	if c.executor != nil {
		c.executor(run)
	} else {
		go run()
	}
}

// onAccess is invoked once per read-buffer entry drained: it records the
// read against the frequency sketch and re-files the entry's position per
// its current region, promoting Probation -> Protected on a hit there.
func (c *coordinator[K, V]) onAccess(e *Entry[K, V]) {
	if e.IsDead() {
		return
	}
	c.sketch.Increment(e.Hash())
	switch e.tag {
	case queue.Window:
		c.window.MoveToTail(e)
	case queue.Probation:
		c.promote(e)
	case queue.Protected:
		c.protected.MoveToTail(e)
	}
}

// promote moves e from Probation to Protected, demoting the Protected head
// back to Probation if that pushes Protected over its budget.
func (c *coordinator[K, V]) promote(e *Entry[K, V]) {
	c.probation.Remove(e, e.Weight())
	e.tag = queue.Protected
	c.protected.PushTail(e, e.Weight())

	for c.protected.Weight() > c.protectedMax.Load() {
		demoted := c.protected.Head()
		if isZero(demoted) {
			break
		}
		c.protected.Remove(demoted, demoted.Weight())
		demoted.tag = queue.Probation
		c.probation.PushTail(demoted, demoted.Weight())
	}
}

// applyTask folds one write-buffer task into queue/weight state.
func (c *coordinator[K, V]) applyTask(t writeTask[K, V]) {
	switch t.kind {
	case taskAdd:
		e := t.entry
		if e.IsDead() {
			return
		}
		e.tag = queue.Window
		c.window.PushTail(e, e.Weight())
		c.weightTotal.Add(int64(e.Weight()))
		c.armExpiry(e)
	case taskUpdate:
		e := t.entry
		if e.IsDead() {
			return
		}
		delta := int64(t.newWeight) - int64(t.oldWeight)
		c.weightTotal.Add(delta)
		if lst := c.listFor(e.tag); lst != nil {
			lst.AdjustWeight(delta)
			lst.MoveToTail(e)
		}
		c.armExpiry(e)
		if t.hasReplaced {
			c.notify(e, t.replaced, Replaced)
		}
	case taskRemoval:
		e := t.entry
		if lst := c.listFor(e.tag); lst != nil {
			lst.Remove(e, e.Weight())
		}
		c.weightTotal.Add(-int64(e.Weight()))
		e.tag = queue.Dead
		e.markDead()
		v, _ := e.Value()
		c.notify(e, v, t.cause)
	case taskExpireReorder:
		e := t.entry
		if e.IsDead() {
			return
		}
		c.armExpiry(e)
	}
}

// armExpiry (re)schedules e into the access/write expiration heaps per its
// currently armed deadlines. Called whenever an entry is added, updated in
// place, or has a deadline explicitly reset (expire-after-access on read),
// so spec.md §4.7's "evaluated eagerly during drain cycles" holds for
// every deadline kind, not just the read-triggered one.
func (c *coordinator[K, V]) armExpiry(e *Entry[K, V]) {
	if d := e.accessDeadline.Load(); d != 0 {
		c.expirer.scheduleAccess(e, d)
	}
	if d := e.writeDeadline.Load(); d != 0 {
		c.expirer.scheduleWrite(e, d)
	}
}

// evictEntries runs the size-eviction phases: first rebalance any Window
// overflow into Probation, then evict from the main region (Probation +
// Protected) down to budget, admission-testing at most one candidate per
// drain cycle — the first entry demoted out of Window this cycle — against
// the current Probation head.
func (c *coordinator[K, V]) evictEntries() {
	candidate := c.evictFromWindow()
	c.evictFromMain(candidate)
}

func (c *coordinator[K, V]) evictFromWindow() *Entry[K, V] {
	var first *Entry[K, V]
	for c.window.Weight() > c.windowMax.Load() {
		e := c.window.Head()
		if isZero(e) {
			break
		}
		c.window.Remove(e, e.Weight())
		e.tag = queue.Probation
		c.probation.PushTail(e, e.Weight())
		if first == nil {
			first = e
		}
	}
	return first
}

func (c *coordinator[K, V]) evictFromMain(candidate *Entry[K, V]) {
	mainBudget := c.maxWeight.Load() - c.windowMax.Load()
	for c.weightTotal.Load() > c.maxWeight.Load() &&
		c.probation.Weight()+c.protected.Weight() > mainBudget {
		victim := c.probation.Head()
		if isZero(victim) {
			victim = c.protected.Head()
			if isZero(victim) {
				return
			}
		}
		if candidate != nil && candidate != victim {
			loser := c.admit(candidate, victim)
			candidate = nil
			c.evict(loser, Size)
			continue
		}
		c.evict(victim, Size)
	}
}

// admit runs the TinyLFU admission test between a Window-overflow candidate
// and the current Probation victim, returning whichever should be evicted.
func (c *coordinator[K, V]) admit(candidate, victim *Entry[K, V]) *Entry[K, V] {
	const admissionFloor = 5
	fc := c.sketch.Frequency(candidate.Hash())
	fv := c.sketch.Frequency(victim.Hash())
	if fc > fv {
		return victim
	}
	if fc <= admissionFloor {
		return candidate
	}
	if c.admissionCoin(candidate, victim) {
		return candidate
	}
	return victim
}

// admissionCoin is a deterministic, hash-derived tie-break: stable within a
// process for a given pair of keys, varying cache-to-cache via salt so no
// single key shape is permanently favored across every cache instance.
func (c *coordinator[K, V]) admissionCoin(a, b *Entry[K, V]) bool {
	h := a.Hash() ^ b.Hash() ^ c.salt
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return h&1 == 1
}

// evict unlinks e from its region, removes it from the store (only if it is
// still the resident entry for its key, so a concurrent replace always
// wins), and fires the removal notification.
func (c *coordinator[K, V]) evict(e *Entry[K, V], cause RemovalCause) {
	if lst := c.listFor(e.tag); lst != nil {
		lst.Remove(e, e.Weight())
	}
	c.weightTotal.Add(-int64(e.Weight()))
	if c.weightTotal.Load() < 0 {
		c.weightTotal.Store(0)
	}
	e.tag = queue.Dead
	e.markRetired()
	e.markDead()
	c.store.RemoveIfSame(e.Key(), e.Hash(), e)
	c.stats.recordEviction(e.Weight())
	c.metrics.Evict(cause)
	v, _ := e.Value()
	c.notify(e, v, cause)
}

// sweepCollected scans all three regions for entries whose weak-held value
// has already been reclaimed by the GC, evicting each with cause Collected.
// Only called when the cache was built with ValueReferenceStrength Weak, so
// a strong-value cache pays no cost walking queues that can never satisfy
// this condition (spec.md §4.7).
func (c *coordinator[K, V]) sweepCollected() {
	var dead []*Entry[K, V]
	collect := func(e *Entry[K, V]) bool {
		if e.box.Load().collected() {
			dead = append(dead, e)
		}
		return true
	}
	c.window.Each(collect)
	c.probation.Each(collect)
	c.protected.Each(collect)
	for _, e := range dead {
		if e.IsDead() {
			continue
		}
		c.evict(e, Collected)
	}
}

func (c *coordinator[K, V]) notify(e *Entry[K, V], v V, cause RemovalCause) {
	if c.removalListener == nil {
		return
	}
	fire := func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("removal listener panicked",
					zap.Any("panic", r), zap.String("cause", cause.String()))
			}
		}()
		c.removalListener(e.Key(), v, cause)
	}
	if c.synchronousRemoval {
		fire()
		return
	}
	if c.executor != nil {
		c.executor(fire)
	} else {
		go fire()
	}
}

// isZero reports whether a queue node pointer is the zero value, used in
// place of a direct nil comparison so this file stays agnostic to the
// concrete node type beyond *Entry[K,V].
func isZero[K comparable, V any](e *Entry[K, V]) bool { return e == nil }
