package cache

import (
	"sync/atomic"

	"github.com/doubleshift/wtinylfu/queue"
)

// Entry is the unit the store, queues, and buffers all operate on. Its
// value is reached through an atomically-swapped holder so readers never
// need the maintenance lock; its queue membership (tag, prev/next) is
// mutated only by the coordinator under that lock.
type Entry[K comparable, V any] struct {
	key     K
	keyHash uint64

	box atomic.Pointer[holder[V]]

	weight atomic.Int32

	// Guarded by the maintenance lock.
	tag         queue.Tag
	qprev, qnext *Entry[K, V]

	// Deadlines are absolute monotonic nanoseconds; 0 means disabled.
	accessDeadline  atomic.Int64
	writeDeadline   atomic.Int64
	refreshDeadline atomic.Int64

	// retired: unlinked from queues but possibly still visible in the
	// store until its write-buffer event drains. dead: fully removed.
	retired atomic.Bool
	dead    atomic.Bool

	// refreshing dedups concurrent refresh-after-write triggers.
	refreshing atomic.Bool
}

func newEntry[K comparable, V any](key K, hash uint64, v V, weight int32) *Entry[K, V] {
	e := &Entry[K, V]{key: key, keyHash: hash}
	e.box.Store(newStrongHolder(v))
	e.weight.Store(weight)
	return e
}

// Key returns the entry's immutable key.
func (e *Entry[K, V]) Key() K { return e.key }

// Hash returns the entry's cached key hash, used by the sketch and the
// admission tie-break.
func (e *Entry[K, V]) Hash() uint64 { return e.keyHash }

// Weight returns the entry's current weight.
func (e *Entry[K, V]) Weight() int32 { return e.weight.Load() }

// Value returns the currently visible value, or (zero, false) if the slot
// holds a collected weak reference.
func (e *Entry[K, V]) Value() (V, bool) {
	return e.box.Load().value()
}

// IsDead reports whether the entry has been fully removed from the store.
func (e *Entry[K, V]) IsDead() bool { return e.dead.Load() }

// IsRetired reports whether the entry has been unlinked from the queues but
// may still be visible in the store pending a write-buffer drain.
func (e *Entry[K, V]) IsRetired() bool { return e.retired.Load() }

func (e *Entry[K, V]) markRetired() { e.retired.Store(true) }
func (e *Entry[K, V]) markDead()    { e.dead.Store(true) }

// QueuePrev/QueueNext/SetQueuePrev/SetQueueNext implement queue.Node so an
// *Entry[K,V] can live directly in a queue.List without a wrapper type.
func (e *Entry[K, V]) QueuePrev() *Entry[K, V] { return e.qprev }
func (e *Entry[K, V]) QueueNext() *Entry[K, V] { return e.qnext }
func (e *Entry[K, V]) SetQueuePrev(p *Entry[K, V]) { e.qprev = p }
func (e *Entry[K, V]) SetQueueNext(n *Entry[K, V]) { e.qnext = n }
