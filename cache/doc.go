// Package cache implements a bounded, in-process key/value cache using the
// Window-TinyLFU admission and eviction policy.
//
// Design
//
//   - Storage: an Entry Store (store.go) is a hash-striped map[K]*Entry used
//     purely to cut lock contention on lookups; it carries no policy state.
//     The replacement policy itself — three intrusive LRU-ordered regions
//     (Window, Probation, Protected) plus a count-min frequency sketch — is
//     singular per Cache, owned by the Maintenance Coordinator
//     (coordinator.go), because admission decisions compare a candidate
//     against a victim drawn from one cache-wide Probation queue.
//
//   - Hot path: GetIfPresent and Put never block on the coordinator's lock.
//     A read records itself into a striped, lossy, lock-free read buffer
//     (readbuf.go); a write appends a task to a lossless write buffer
//     (writebuf.go). Both are folded into queue/sketch state only when a
//     drain cycle runs, guarded by a single non-blocking, non-reentrant
//     lock (coordinator.go's drainLock).
//
//   - Eviction: once resident weight exceeds the configured maximum, the
//     coordinator demotes Window overflow into Probation and then evicts
//     from Probation/Protected, admission-testing the first Window-demoted
//     entry of the cycle against the current Probation victim via the
//     frequency sketch.
//
//   - Expiration: expire-after-access and expire-after-write deadlines are
//     checked lazily on every read and swept eagerly during drains via a
//     deadline-ordered priority queue (expire.go) — a single-tier
//     simplification of a true hierarchical timing wheel.
//
//   - Loading: Get coalesces concurrent loader calls for a missing key via
//     singleflight; refresh-after-write schedules at most one asynchronous
//     reload per key, capped by a weighted semaphore, returning the stale
//     value immediately to the triggering caller.
//
//   - Metrics and Stats: Options.Metrics receives low-level Hit/Miss/Evict/
//     Load/Size signals (see metrics/prom for a Prometheus adapter); Stats()
//     exposes the named, queryable counters when Options.StatisticsEnabled
//     is set.
//
// Basic usage
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaximumWeight: 10_000,
//	})
//	c.Put("a", []byte("1"))
//	if v, ok := c.GetIfPresent("a"); ok {
//	    _ = v
//	}
//	c.Invalidate("a")
//
// With expiration
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    MaximumWeight:     1024,
//	    ExpireAfterWrite:  200 * time.Millisecond,
//	})
//	c.Put("tmp", "v")
//	time.Sleep(300 * time.Millisecond)
//	_, ok := c.GetIfPresent("tmp") // ok == false (expired)
//
// With Get (singleflight-coalesced loading)
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    MaximumWeight: 1024,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.Get(context.Background(), "key", nil)
//
// Exporting metrics (Prometheus adapter)
//
//	m := prom.New(nil, "cachex", "demo", nil) // implements Metrics
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaximumWeight: 10_000,
//	    Metrics:       m,
//	})
//
// Thread-safety
//
// All methods are safe for concurrent use. GetIfPresent/Put never block;
// CleanUp and Policy snapshots briefly spin for the maintenance lock since
// they need a consistent view and are not hot-path operations.
package cache
