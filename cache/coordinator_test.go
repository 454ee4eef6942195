package cache

import (
	"testing"

	"github.com/doubleshift/wtinylfu/queue"
	"github.com/doubleshift/wtinylfu/sketch"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCoordinator(maxWeight int64) *coordinator[int, int] {
	c := newCoordinator[int, int](maxWeight, 0)
	c.store = newStore[int, int](1)
	c.readBuf = newReadBuffer[int, int](1)
	c.writeBuf = newWriteBuffer[int, int](16)
	c.sketch = sketch.New(int(maxWeight))
	c.clock = systemClock{}
	c.logger = zap.NewNop()
	c.metrics = NoopMetrics{}
	c.stats = &statCounters{}
	return c
}

func addEntry(c *coordinator[int, int], key int, hash uint64, value int, weight int32) *Entry[int, int] {
	e := newEntry(key, hash, value, weight)
	c.store.Put(key, hash, e)
	c.writeBuf.Push(writeTask[int, int]{kind: taskAdd, entry: e, newWeight: weight})
	return e
}

func TestCoordinator_NewEntriesLandInWindow(t *testing.T) {
	c := newTestCoordinator(100)
	e := addEntry(c, 1, 1, 1, 1)
	c.runDrain()

	require.Equal(t, queue.Window, e.tag)
	require.Equal(t, int64(1), c.window.Weight())
}

func TestCoordinator_WindowOverflowDemotesToProbation(t *testing.T) {
	c := newTestCoordinator(100)
	c.windowMax.Store(1) // force overflow after the second insert

	e1 := addEntry(c, 1, 1, 1, 1)
	e2 := addEntry(c, 2, 2, 2, 1)
	c.runDrain()

	require.Equal(t, queue.Probation, e1.tag, "oldest window entry should be demoted first")
	require.Equal(t, queue.Window, e2.tag)
}

func TestCoordinator_PromoteMovesProbationHitToProtected(t *testing.T) {
	c := newTestCoordinator(100)
	c.windowMax.Store(1)
	c.protectedMax.Store(10)

	e1 := addEntry(c, 1, 1, 1, 1)
	e2 := addEntry(c, 2, 2, 2, 1)
	c.runDrain() // e1 demoted into probation

	c.readBuf.Offer(e1)
	c.runDrain()

	require.Equal(t, queue.Protected, e1.tag)
	require.Equal(t, queue.Window, e2.tag)
}

func TestCoordinator_EvictionPrefersHigherFrequencyCandidate(t *testing.T) {
	c := newTestCoordinator(2)
	c.windowMax.Store(1) // mainBudget = maxWeight(2) - windowMax(1) = 1

	addEntry(c, 1, 1, 1, 1)
	c.runDrain() // key1 alone: window=1, fits exactly, nothing demoted yet

	addEntry(c, 2, 2, 2, 1)
	c.runDrain() // window overflow demotes key1 into probation; still within budget

	// Warm key2's hash heavily before it ever competes as a candidate, so
	// its sketch frequency dominates key1's untouched (zero) frequency.
	for i := 0; i < 20; i++ {
		c.sketch.Increment(2)
	}

	addEntry(c, 3, 3, 3, 1)
	c.runDrain() // window overflow demotes key2 into probation as this cycle's candidate, now over budget

	if _, ok := c.store.Get(1, 1); ok {
		t.Fatal("expected the cold victim (key 1) to be evicted in favor of the warmed candidate (key 2)")
	}
	if _, ok := c.store.Get(2, 2); !ok {
		t.Fatal("expected the warmed candidate (key 2) to be admitted")
	}
}

func TestCoordinator_BelowFloorCandidateLosesToEqualFrequencyVictim(t *testing.T) {
	c := newTestCoordinator(2)
	c.windowMax.Store(0) // every add demotes straight through Window into Probation as the cycle's candidate

	addEntry(c, 1, 1, 1, 1)
	c.runDrain()
	addEntry(c, 2, 2, 2, 1)
	c.runDrain()
	// A third, untouched key competes against the untouched head (key 1) at
	// tied zero frequency, both at/under the admission floor: per spec.md's
	// admission test the candidate loses ties, protecting resident entries
	// from one-hit-wonder churn.
	addEntry(c, 3, 3, 3, 1)
	c.runDrain()

	if _, ok := c.store.Get(3, 3); ok {
		t.Fatal("a same-frequency new candidate should lose the admission tie to the resident victim")
	}
	if _, ok := c.store.Get(1, 1); !ok {
		t.Fatal("the resident victim should have survived the admission test")
	}
}

func TestCoordinator_UpdateTaskPreservesQueuePosition(t *testing.T) {
	c := newTestCoordinator(100)
	c.windowMax.Store(1)
	c.protectedMax.Store(10)

	e1 := addEntry(c, 1, 1, 1, 1)
	e2 := addEntry(c, 2, 2, 2, 1)
	c.runDrain() // e1 demoted into probation

	c.readBuf.Offer(e1)
	c.runDrain() // e1 promoted into protected
	require.Equal(t, queue.Protected, e1.tag)

	// An overwrite of an already-resident key must stay an UpdateTask, not
	// a remove+add, so it keeps its current region instead of resetting to
	// Window.
	c.writeBuf.Push(writeTask[int, int]{kind: taskUpdate, entry: e1, oldWeight: 1, newWeight: 1})
	c.runDrain()

	require.Equal(t, queue.Protected, e1.tag, "an UpdateTask overwrite must not demote a Protected entry back to Window")
	require.Equal(t, queue.Window, e2.tag)
}

func TestCoordinator_UpdateTaskFiresReplacedNotification(t *testing.T) {
	c := newTestCoordinator(100)
	var got struct {
		key   int
		value int
		cause RemovalCause
	}
	c.synchronousRemoval = true
	c.removalListener = func(k, v int, cause RemovalCause) {
		got.key, got.value, got.cause = k, v, cause
	}

	e := addEntry(c, 1, 1, 10, 1)
	c.runDrain()

	c.writeBuf.Push(writeTask[int, int]{kind: taskUpdate, entry: e, oldWeight: 1, newWeight: 1, replaced: 10, hasReplaced: true})
	c.runDrain()

	require.Equal(t, 1, got.key)
	require.Equal(t, 10, got.value)
	require.Equal(t, Replaced, got.cause)
}

func TestCoordinator_TaskAddArmsWriteDeadline(t *testing.T) {
	c := newTestCoordinator(100)
	// Pin the drain's own sweep at t=0 so it cannot consume the deadline
	// before the explicit sweep below.
	c.clock = &fakeClock{}
	e := newEntry(1, 1, 1, 1)
	e.writeDeadline.Store(100)
	c.store.Put(1, 1, e)
	c.writeBuf.Push(writeTask[int, int]{kind: taskAdd, entry: e, newWeight: 1})
	c.runDrain()

	evicted := false
	c.expirer.sweep(200, func(*Entry[int, int]) { evicted = true })
	require.True(t, evicted, "a write-only entry's deadline must be armed eagerly from its AddTask, not only on a later read")
}

func TestCoordinator_SweepCollectedEvictsReclaimedWeakValues(t *testing.T) {
	c := newTestCoordinator(100)
	c.weakValues = true

	e := addEntry(c, 1, 1, 1, 1)
	c.runDrain()
	e.box.Store(newWeakHolder(1))
	// Simulate GC reclamation directly: store a holder whose weak pointer
	// already reports collected, since forcing an actual GC pass in a unit
	// test would be flaky.
	e.box.Store(&holder[int]{kind: kindWeak})

	c.sweepCollected()

	if _, ok := c.store.Get(1, 1); ok {
		t.Fatal("expected the GC-reclaimed entry to be evicted by sweepCollected")
	}
}
