package cache

import (
	"sync/atomic"

	"github.com/doubleshift/wtinylfu/internal/util"
)

// readOfferResult reports the outcome of an attempted read-buffer offer.
// Losses are by design: the read buffer is a hint for the maintenance
// coordinator, not a ledger, so callers never retry on FAILED/FULL.
type readOfferResult uint8

const (
	readOfferSuccess readOfferResult = iota
	readOfferFull
	readOfferFailed
)

const stripeCapacity = 16 // power of two

// readStripe is a single lock-free, bounded, lossy ring. Many producers
// call offer concurrently; exactly one consumer (the coordinator, under the
// drain lock) calls drain.
type readStripe[K comparable, V any] struct {
	_            util.CacheLinePad
	writeCounter atomic.Uint64
	readCounter  atomic.Uint64
	buffer       [stripeCapacity]atomic.Pointer[Entry[K, V]]
	_2           util.CacheLinePad
}

func (s *readStripe[K, V]) offer(e *Entry[K, V]) readOfferResult {
	w := s.writeCounter.Load()
	r := s.readCounter.Load()
	if w-r >= stripeCapacity {
		return readOfferFull
	}
	if !s.writeCounter.CompareAndSwap(w, w+1) {
		return readOfferFailed
	}
	s.buffer[w&(stripeCapacity-1)].Store(e)
	return readOfferSuccess
}

// drain consumes up to quantum entries, in order, calling f for each. It
// stops early (without losing correctness) if it catches up to a producer
// that has reserved a slot but not yet stored into it; that slot will be
// picked up by the next drain cycle.
func (s *readStripe[K, V]) drain(quantum int, f func(*Entry[K, V])) {
	r := s.readCounter.Load()
	w := s.writeCounter.Load()
	n := int(w - r)
	if n > quantum {
		n = quantum
	}
	consumed := 0
	for i := 0; i < n; i++ {
		slot := &s.buffer[(r+uint64(i))&(stripeCapacity-1)]
		e := slot.Swap(nil)
		if e == nil {
			break
		}
		f(e)
		consumed++
	}
	if consumed > 0 {
		s.readCounter.Add(uint64(consumed))
	}
}

// readBuffer stripes recently-read Entry references across nStripes rings
// so concurrent readers rarely contend with each other. Per spec.md §4.4,
// stripe count defaults to the next power of two >= 4x available hardware
// parallelism.
type readBuffer[K comparable, V any] struct {
	stripes []*readStripe[K, V]
	mask    uint64
	probe   atomic.Uint64
}

func newReadBuffer[K comparable, V any](parallelism int) *readBuffer[K, V] {
	n := int(util.NextPow2(uint64(4 * parallelism)))
	if n < 1 {
		n = 1
	}
	rb := &readBuffer[K, V]{
		stripes: make([]*readStripe[K, V], n),
		mask:    uint64(n - 1),
	}
	for i := range rb.stripes {
		rb.stripes[i] = &readStripe[K, V]{}
	}
	return rb
}

// Offer records e as recently read. Stripe choice mixes the entry's key
// hash with a shared, per-buffer atomic probe so that repeated reads of a
// single very hot key still spread across stripes instead of hammering one
// (Go has no cheap goroutine-local identity to shard on, unlike a
// thread-local probe; the shared probe is the substitute).
func (rb *readBuffer[K, V]) Offer(e *Entry[K, V]) readOfferResult {
	p := rb.probe.Add(1)
	idx := (e.Hash() ^ p) & rb.mask
	return rb.stripes[idx].offer(e)
}

// DrainAll drains every stripe, in stripe order, up to quantum entries each.
func (rb *readBuffer[K, V]) DrainAll(quantum int, f func(*Entry[K, V])) {
	for _, s := range rb.stripes {
		s.drain(quantum, f)
	}
}
