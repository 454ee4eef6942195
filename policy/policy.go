// Package policy exposes the read/adjust surface of a running cache's
// replacement policy, without leaking the maintenance coordinator's
// internals (queues, sketch, buffers) to callers.
//
// Earlier revisions of this package defined a pluggable Policy/Hooks pair
// so a shard could be parameterized with an interchangeable LRU or 2Q
// strategy. That pluggability doesn't fit this cache: Window-TinyLFU's
// admission test compares a candidate against a victim drawn from a single,
// cache-wide Probation queue, so there is exactly one policy instance per
// Cache, not one per shard, and it is never swapped at runtime. See
// DESIGN.md for why the old lru/twoq sub-packages were removed rather than
// adapted.
package policy

// Entry is one element of a Coldest/Hottest snapshot.
type Entry[K comparable] struct {
	Key    K
	Weight int32
}

// View is the live, read-mostly surface spec.md §6 calls policy(): ordered
// coldest/hottest snapshots plus the weight budget.
type View[K comparable, V any] interface {
	// Coldest returns up to n resident keys, walking the Window, then the
	// Probation, then the Protected region, each from least- to
	// most-recently-used.
	Coldest(n int) []Entry[K]
	// Hottest returns up to n resident keys in the exact reverse of the
	// Coldest order: Protected, then Probation, then Window, each from
	// most- to least-recently-used.
	Hottest(n int) []Entry[K]
	// Maximum returns the current weight budget.
	Maximum() int64
	// SetMaximum adjusts the weight budget, scheduling a drain to enforce
	// it. Returns an error for a negative bound.
	SetMaximum(n int64) error
}
