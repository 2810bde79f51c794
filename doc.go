// Package freqcache is an in-memory key/value cache that bounds entry count
// through least-frequently-used eviction and entry age through time-based
// expiry, with O(1) lookup, insertion and eviction.
//
// # Architecture
//
// The module is organized around a small core and thin collaborators:
//
//   - cache: the eviction engine. Entries are indexed by key for O(1)
//     lookup and by use frequency into insertion-ordered buckets for O(1)
//     eviction. A background sweeper removes expired entries on a fixed
//     short period. Includes a read-through Loader that collapses
//     concurrent misses and retries transient load failures.
//   - gateway/http: REST surface over a cache instance (get, put, delete,
//     clear, size, stats, health).
//   - config: layered JSON configuration with environment overrides.
//   - errors: error classification (transient, invalid, fatal) and
//     wrapping helpers shared by every package.
//   - metric: Prometheus registry, service metrics and scrape endpoint.
//   - health: per-component health statuses with aggregation.
//   - pkg/retry: exponential backoff used by the cache Loader.
//   - cmd/freqcached: the daemon wiring all of the above together.
//
// # Eviction Semantics
//
// An entry enters at frequency 1 and gains one count per read hit or
// overwrite. Capacity eviction removes the entry with the lowest count,
// FIFO among ties. Expiry is measured from insertion and never refreshed:
// a hot entry still dies at its configured age. Expired entries are
// reclaimed by the sweeper within half a second and are never returned by
// reads in the meantime.
//
// # Quick Start
//
//	c, err := cache.New[string](ctx, 5*time.Minute, 1000)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	err = c.Put("greeting", "hello")
//	value, found, err := c.Get("greeting")
//
// Or run the daemon:
//
//	freqcached --config=/etc/freqcached/config.json
package freqcache
