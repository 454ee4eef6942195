package cache

import "context"

// Cache is a bounded, in-process key/value cache backed by Window-TinyLFU.
// All methods are safe for concurrent use by multiple goroutines; the hot
// Get path never blocks on the maintenance lock.
type Cache[K comparable, V any] interface {
	// GetIfPresent returns the value for key and a presence flag. A value
	// past its access/write deadline is treated as absent and its removal
	// is scheduled.
	GetIfPresent(key K) (V, bool)

	// Get returns the value for key, computing and storing it via
	// mappingFunction on a miss. Concurrent Get calls for the same missing
	// key coalesce onto a single mappingFunction invocation.
	Get(ctx context.Context, key K, mappingFunction func(context.Context, K) (V, error)) (V, error)

	// GetAll returns the values for keys, loading any that are missing via
	// bulkLoader. A key bulkLoader omits from its result is treated as "no
	// mapping" only for that key.
	GetAll(ctx context.Context, keys []K, bulkLoader func(context.Context, []K) (map[K]V, error)) (map[K]V, error)

	// Put inserts or replaces key -> value.
	Put(key K, value V)
	// PutAll inserts or replaces every mapping in values.
	PutAll(values map[K]V)

	// Invalidate removes key if present.
	Invalidate(key K)
	// InvalidateAll removes every key in keys, or every resident key if
	// keys is nil.
	InvalidateAll(keys []K)

	// EstimatedSize returns the approximate number of resident entries.
	// "Approximate" because buffered writes may not yet be reflected.
	EstimatedSize() int64

	// Stats returns a snapshot of the best-effort counters. Zero value if
	// Options.StatisticsEnabled was false.
	Stats() Stats

	// CleanUp forces a synchronous drain cycle.
	CleanUp()

	// AsMap returns a best-effort, unordered snapshot of resident mappings;
	// each store shard is read independently, so a concurrent write may or
	// may not be reflected.
	AsMap() map[K]V

	// Policy exposes coldest/hottest snapshots and live weight-budget
	// control.
	Policy() Policy[K, V]

	// Close marks the cache closed and always returns nil. Afterwards
	// GetIfPresent reports a miss and Put and Invalidate do nothing; Get
	// and GetAll still run the loader and return its values without
	// storing them; CleanUp, Stats, EstimatedSize, AsMap and Policy keep
	// operating on the resident state. Drains already scheduled still run.
	Close() error
}
