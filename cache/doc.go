// Package cache provides a thread-safe, generic in-memory cache with
// least-frequently-used eviction, entry expiry, built-in statistics
// tracking, and optional Prometheus metrics integration.
//
// # Overview
//
// The cache bounds memory two ways at once:
//   - Capacity: when the cache is full, inserting a new key evicts the
//     least frequently used entry (FIFO among entries with equal counts)
//   - Age: every entry expires a fixed duration after insertion, and a
//     background sweeper removes expired entries on a short fixed period
//
// Frequency is tracked per entry: an entry enters at count 1 and gains one
// count per Get hit or Put overwrite. Expiry is measured from insertion and
// is never refreshed by access, so even a popular entry is dropped once its
// lifetime is up.
//
// # Quick Start
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	c, err := cache.New[*User](ctx, 5*time.Minute, 1000)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Put("user:42", user); err != nil {
//		return err
//	}
//	value, found, err := c.Get("user:42")
//
// With metrics and an eviction callback:
//
//	c, err := cache.New[[]byte](ctx, 10*time.Minute, 5000,
//		cache.WithMetrics[[]byte](registry, "api_cache"),
//		cache.WithEvictionCallback[[]byte](func(key string, value []byte) {
//			log.Printf("dropped: %s", key)
//		}),
//	)
//
// # Eviction Policy
//
// Entries are indexed by frequency into buckets, one bucket per distinct
// count, kept in a doubly-linked list in ascending frequency order. Within
// a bucket, entries are ordered by when they reached that count. The
// eviction candidate is always the oldest entry of the lowest-frequency
// bucket, so both lookup and eviction are O(1) regardless of cache size or
// frequency spread.
//
// Expired entries are removed by the background sweeper within one sweep
// period of expiring. Reads never observe expired data: a Get that lands on
// an expired-but-unswept entry removes it and reports a miss.
//
// # Observability
//
// Statistics (always on) track hits, misses, sets, deletes, evictions and
// expirations with atomic counters, available via Stats(). Prometheus
// metrics are optional and enabled via WithMetrics(); they add per-component
// counters, a size gauge and a sweep-duration histogram.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Get takes the exclusive lock
// because a hit rewires bucket membership; Size, Keys and Stats use shared
// access. Eviction callbacks run outside the cache lock, so a callback may
// safely call back into the cache.
//
// # Read-Through Loading
//
// Loader wraps a cache with a load function for cache-aside usage.
// Concurrent misses for one key are collapsed into a single load, and
// transient load failures are retried with backoff:
//
//	loader, err := cache.NewLoader(c, fetchUser, retry.DefaultConfig())
//	user, err := loader.Get(ctx, "user:42")
//
// # Context and Cleanup
//
// The background sweeper stops when the constructor context is canceled or
// Close is called. Always do one of the two; a cache that is never closed
// leaks its sweeper goroutine.
package cache
