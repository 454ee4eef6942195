package cache

import "github.com/doubleshift/wtinylfu/policy"

// Policy is the read/adjust surface returned by Cache.Policy.
type Policy[K comparable, V any] = policy.View[K, V]

// policyView adapts a cacheImpl's coordinator state to policy.View,
// snapshotting under the maintenance lock so Coldest/Hottest observe a
// consistent queue traversal rather than racing a concurrent drain.
type policyView[K comparable, V any] struct {
	c *cacheImpl[K, V]
}

func (p *policyView[K, V]) Coldest(n int) []policy.Entry[K] {
	if n <= 0 {
		return nil
	}
	var out []policy.Entry[K]
	p.c.coord.withLock(func() {
		collect := func(lst interface{ Each(func(*Entry[K, V]) bool) }) {
			lst.Each(func(e *Entry[K, V]) bool {
				if len(out) >= n {
					return false
				}
				out = append(out, policy.Entry[K]{Key: e.Key(), Weight: e.Weight()})
				return true
			})
		}
		collect(&p.c.coord.window)
		if len(out) < n {
			collect(&p.c.coord.probation)
		}
		if len(out) < n {
			collect(&p.c.coord.protected)
		}
	})
	return out
}

func (p *policyView[K, V]) Hottest(n int) []policy.Entry[K] {
	if n <= 0 {
		return nil
	}
	var out []policy.Entry[K]
	p.c.coord.withLock(func() {
		collect := func(lst interface {
			EachReverse(func(*Entry[K, V]) bool)
		}) {
			lst.EachReverse(func(e *Entry[K, V]) bool {
				if len(out) >= n {
					return false
				}
				out = append(out, policy.Entry[K]{Key: e.Key(), Weight: e.Weight()})
				return true
			})
		}
		collect(&p.c.coord.protected)
		if len(out) < n {
			collect(&p.c.coord.probation)
		}
		if len(out) < n {
			collect(&p.c.coord.window)
		}
	})
	return out
}

func (p *policyView[K, V]) Maximum() int64 {
	return p.c.coord.maxWeight.Load()
}

func (p *policyView[K, V]) SetMaximum(n int64) error {
	if n < 0 {
		return ErrInvalidMaximum
	}
	p.c.coord.maxWeight.Store(n)
	p.c.coord.recomputeTargets(n)
	p.c.coord.tryDrain()
	return nil
}
