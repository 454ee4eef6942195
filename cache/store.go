package cache

import (
	"sync"

	"github.com/doubleshift/wtinylfu/internal/util"
)

// store is the Entry Store: a hash-striped concurrent map from key to
// *Entry. Striping exists purely to reduce map-lookup contention; it has no
// bearing on the replacement policy, whose W/P/M queues and frequency
// sketch live once per Cache under the coordinator's single lock. Mutating
// operations are linearizable per key; reads observe either the pre- or
// post-state of a concurrent write on the same key, never a torn value.
type store[K comparable, V any] struct {
	shards []*storeShard[K, V]
	mask   uint64
}

type storeShard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]*Entry[K, V]
}

func newStore[K comparable, V any](shardCount int) *store[K, V] {
	n := int(util.NextPow2(uint64(shardCount)))
	if n < 1 {
		n = 1
	}
	s := &store[K, V]{
		shards: make([]*storeShard[K, V], n),
		mask:   uint64(n - 1),
	}
	for i := range s.shards {
		s.shards[i] = &storeShard[K, V]{m: make(map[K]*Entry[K, V])}
	}
	return s
}

func (s *store[K, V]) shardFor(hash uint64) *storeShard[K, V] {
	return s.shards[hash&s.mask]
}

// Get returns the live entry for k, if present.
func (s *store[K, V]) Get(k K, hash uint64) (*Entry[K, V], bool) {
	sh := s.shardFor(hash)
	sh.mu.RLock()
	e, ok := sh.m[k]
	sh.mu.RUnlock()
	return e, ok
}

// PutIfAbsent inserts e under k only if no live entry exists yet; it
// returns the entry that ends up resident for k (e, or the one already
// there) and whether e was the one inserted.
func (s *store[K, V]) PutIfAbsent(k K, hash uint64, e *Entry[K, V]) (*Entry[K, V], bool) {
	sh := s.shardFor(hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if existing, ok := sh.m[k]; ok {
		return existing, false
	}
	sh.m[k] = e
	return e, true
}

// Put unconditionally associates k with e, returning the entry it
// displaced, if any.
func (s *store[K, V]) Put(k K, hash uint64, e *Entry[K, V]) (old *Entry[K, V]) {
	sh := s.shardFor(hash)
	sh.mu.Lock()
	old = sh.m[k]
	sh.m[k] = e
	sh.mu.Unlock()
	return old
}

// RemoveIfSame deletes k only if the currently resident entry is
// identical (by pointer) to e. Used by the coordinator so a concurrent
// replace can't have its winner evicted by a stale eviction decision.
func (s *store[K, V]) RemoveIfSame(k K, hash uint64, e *Entry[K, V]) bool {
	sh := s.shardFor(hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.m[k]; ok && cur == e {
		delete(sh.m, k)
		return true
	}
	return false
}

// Remove unconditionally deletes k, returning the removed entry if any.
func (s *store[K, V]) Remove(k K, hash uint64) (*Entry[K, V], bool) {
	sh := s.shardFor(hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.m[k]
	if ok {
		delete(sh.m, k)
	}
	return e, ok
}

// ComputeOp selects what computeLocked does with the outcome of its
// closure once the closure returns.
type ComputeOp uint8

const (
	// ComputeNoop leaves k's map entry exactly as it was. Use this when
	// the closure only mutated fields reachable through the resident
	// entry's own pointer (its box/weight/deadlines), so no structural
	// change to the map is needed.
	ComputeNoop ComputeOp = iota
	// ComputeSet installs the returned entry as k's mapping, inserting if
	// k was absent or swapping the pointer if it was present.
	ComputeSet
	// ComputeRemove deletes k's mapping if one exists.
	ComputeRemove
)

// computeLocked runs fn while holding k's shard lock, so an
// inspect-then-replace-or-remove sequence is atomic with respect to every
// other store operation on the same key. fn receives the currently
// resident entry (nil, false if absent) and selects the outcome via the
// returned ComputeOp. This is the store's general atomic transformer;
// Replace, ReplaceIfSame, RemoveIf, and MutateIfSame below are all
// expressed in terms of it, and cacheImpl.Put uses it directly to decide
// between an in-place update and a fresh insertion under one lock
// acquisition.
func (s *store[K, V]) computeLocked(k K, hash uint64, fn func(cur *Entry[K, V], present bool) (*Entry[K, V], ComputeOp)) (result *Entry[K, V], present bool) {
	sh := s.shardFor(hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur, ok := sh.m[k]
	next, op := fn(cur, ok)
	switch op {
	case ComputeSet:
		sh.m[k] = next
		return next, true
	case ComputeRemove:
		if ok {
			delete(sh.m, k)
		}
		return nil, false
	default:
		return cur, ok
	}
}

// Replace swaps k's mapping to newEntry only if a live mapping already
// exists for k, returning the entry it displaced.
func (s *store[K, V]) Replace(k K, hash uint64, newEntry *Entry[K, V]) (old *Entry[K, V], replaced bool) {
	s.computeLocked(k, hash, func(cur *Entry[K, V], present bool) (*Entry[K, V], ComputeOp) {
		if !present {
			return cur, ComputeNoop
		}
		old, replaced = cur, true
		return newEntry, ComputeSet
	})
	return old, replaced
}

// ReplaceIfSame swaps k's mapping to newEntry only if the currently
// resident entry is, by pointer, oldEntry — a compare-and-swap replace at
// entry granularity, the insertion-side counterpart to RemoveIfSame.
func (s *store[K, V]) ReplaceIfSame(k K, hash uint64, oldEntry, newEntry *Entry[K, V]) (swapped bool) {
	s.computeLocked(k, hash, func(cur *Entry[K, V], present bool) (*Entry[K, V], ComputeOp) {
		if !present || cur != oldEntry {
			return cur, ComputeNoop
		}
		swapped = true
		return newEntry, ComputeSet
	})
	return swapped
}

// RemoveIf deletes k only if a live mapping exists and its current value
// satisfies pred, returning the removed entry.
func (s *store[K, V]) RemoveIf(k K, hash uint64, pred func(V) bool) (removed *Entry[K, V], ok bool) {
	s.computeLocked(k, hash, func(cur *Entry[K, V], present bool) (*Entry[K, V], ComputeOp) {
		if !present {
			return cur, ComputeNoop
		}
		v, has := cur.Value()
		if !has || !pred(v) {
			return cur, ComputeNoop
		}
		removed, ok = cur, true
		return nil, ComputeRemove
	})
	return removed, ok
}

// MutateIfSame runs mutate on k's resident entry in place, only if it is
// still, by pointer, identical to expected. Used by refresh-after-write so
// a reload that finishes after the key was invalidated or replaced can't
// resurrect it or clobber its replacement; this is the in-place
// specialization of replace(k,old,new) this engine needs, since a plain
// entry-pointer swap would lose the entry's queue tag and position (see
// DESIGN.md).
func (s *store[K, V]) MutateIfSame(k K, hash uint64, expected *Entry[K, V], mutate func(*Entry[K, V])) (applied bool) {
	s.computeLocked(k, hash, func(cur *Entry[K, V], present bool) (*Entry[K, V], ComputeOp) {
		if !present || cur != expected {
			return cur, ComputeNoop
		}
		mutate(cur)
		applied = true
		return cur, ComputeNoop
	})
	return applied
}

// Len returns the total number of resident entries.
func (s *store[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.m)
		sh.mu.RUnlock()
	}
	return total
}

// Each performs a best-effort snapshot iteration across shards, calling f
// for each resident entry until it returns false. A concurrent writer may
// cause an entry to be seen, missed, or (rarely) both across the whole
// traversal since each shard is locked independently.
func (s *store[K, V]) Each(f func(K, *Entry[K, V]) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		snapshot := make([]*Entry[K, V], 0, len(sh.m))
		keys := make([]K, 0, len(sh.m))
		for k, e := range sh.m {
			keys = append(keys, k)
			snapshot = append(snapshot, e)
		}
		sh.mu.RUnlock()
		for i, e := range snapshot {
			if !f(keys[i], e) {
				return
			}
		}
	}
}
