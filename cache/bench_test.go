package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm cache using
// parallel workers (RunParallel spawns GOMAXPROCS goroutines).
func benchmarkMix(b *testing.B, readsPct int) {
	c := New[string, string](Options[string, string]{
		MaximumWeight: 100_000,
	})
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 50_000; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Put(k, "v")
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				c.GetIfPresent(k)
			} else {
				c.Put(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// benchmarkMixInt is the same workload with int keys, removing
// strconv/alloc noise to better expose the cache hot path.
func benchmarkMixInt(b *testing.B, readsPct int) {
	c := New[int, int](Options[int, int]{
		MaximumWeight: 100_000,
	})
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 50_000; i++ {
		c.Put(i, 1)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := i & keyMask
			if r.Intn(100) < readsPct {
				c.GetIfPresent(k)
			} else {
				c.Put(k, 1)
			}
			i++
		}
	})
}

func BenchmarkCache_IntKeys_90r10w(b *testing.B) { benchmarkMixInt(b, 90) }
func BenchmarkCache_IntKeys_50r50w(b *testing.B) { benchmarkMixInt(b, 50) }
