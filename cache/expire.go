package cache

import "container/heap"

// expireEntry is one scheduled deadline in an expireQueue.
type expireEntry[K comparable, V any] struct {
	deadline int64
	entry    *Entry[K, V]
}

// expireQueue is a deadline-ordered priority queue: a single-tier
// simplification of spec.md §4.7's "timer wheels keyed by deadline". Unlike
// a true hierarchical wheel it does not support removing a specific
// scheduling in O(1); instead, Schedule is called every time a deadline
// changes (e.g. on every read, for expire-after-access) and Sweep lazily
// discards any popped entry whose recorded deadline no longer matches the
// entry's current one — the entry was rescheduled since, and a fresher
// heap entry for it exists (or the deadline was disabled). This trades
// heap growth under heavy expire-after-access churn for an O(log n)
// Schedule with no reverse index; documented in DESIGN.md.
type expireQueue[K comparable, V any] struct {
	items []expireEntry[K, V]
}

func (q *expireQueue[K, V]) Len() int            { return len(q.items) }
func (q *expireQueue[K, V]) Less(i, j int) bool  { return q.items[i].deadline < q.items[j].deadline }
func (q *expireQueue[K, V]) Swap(i, j int)       { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *expireQueue[K, V]) Push(x any)          { q.items = append(q.items, x.(expireEntry[K, V])) }
func (q *expireQueue[K, V]) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

// Schedule records that e should be reconsidered for expiration at deadline.
func (q *expireQueue[K, V]) Schedule(e *Entry[K, V], deadline int64) {
	if deadline == 0 {
		return
	}
	heap.Push(q, expireEntry[K, V]{deadline: deadline, entry: e})
}

// Sweep pops every scheduled deadline <= now, invoking f for entries whose
// currentDeadline still matches what was scheduled (i.e. not stale) and
// that are still alive. currentDeadline should return 0 if this kind of
// expiration is no longer armed for the entry.
func (q *expireQueue[K, V]) Sweep(now int64, currentDeadline func(*Entry[K, V]) int64, f func(*Entry[K, V])) {
	for q.Len() > 0 {
		top := q.items[0]
		if top.deadline > now {
			return
		}
		heap.Pop(q)
		if top.entry.IsDead() {
			continue
		}
		if currentDeadline(top.entry) != top.deadline {
			continue // stale: entry was rescheduled or had expiry disabled since
		}
		f(top.entry)
	}
}

// expirer bundles the access- and write-deadline queues the coordinator
// sweeps each drain cycle.
type expirer[K comparable, V any] struct {
	access expireQueue[K, V]
	write  expireQueue[K, V]
}

func (x *expirer[K, V]) scheduleAccess(e *Entry[K, V], deadline int64) {
	x.access.Schedule(e, deadline)
}

func (x *expirer[K, V]) scheduleWrite(e *Entry[K, V], deadline int64) {
	x.write.Schedule(e, deadline)
}

func (x *expirer[K, V]) sweep(now int64, evict func(*Entry[K, V])) {
	x.access.Sweep(now, func(e *Entry[K, V]) int64 { return e.accessDeadline.Load() }, evict)
	x.write.Sweep(now, func(e *Entry[K, V]) int64 { return e.writeDeadline.Load() }, evict)
}

// isExpired reports whether e is past either of its deadlines as of now.
// Used by the lazy check on the hot read path (spec.md §4.1).
func isExpired[K comparable, V any](e *Entry[K, V], now int64) bool {
	if d := e.accessDeadline.Load(); d != 0 && now > d {
		return true
	}
	if d := e.writeDeadline.Load(); d != 0 && now > d {
		return true
	}
	return false
}
