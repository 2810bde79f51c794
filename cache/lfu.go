package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/barberbradleyt/Cache/errors"
	"github.com/barberbradleyt/Cache/health"
)

// sweepInterval is the fixed period of the background expiry sweeper. It is
// deliberately independent of the configured expiry duration: a period
// proportional to the expiry would let worst-case eviction lag grow with
// configuration, while a fixed period caps staleness at one interval.
const sweepInterval = 500 * time.Millisecond

// sweeperComponent is the name the sweeper reports health under.
const sweeperComponent = "cache-sweeper"

// lfuEntry is a single cached record. It is owned by exactly one bucket at
// any time and referenced (non-owning) by the key index.
type lfuEntry[V any] struct {
	key        string
	value      V
	freq       int
	insertedAt time.Time

	// intra-bucket links
	prev, next *lfuEntry[V]
	bucket     *lfuBucket[V]
}

// lfuBucket holds all entries sharing one frequency count, in order of entry
// into that frequency (head = oldest promotion = first eviction candidate).
// Buckets form a doubly-linked list in ascending frequency order; the list
// head is always the minimum frequency present.
type lfuBucket[V any] struct {
	freq       int
	head, tail *lfuEntry[V]
	size       int

	// ledger links, ascending frequency
	prev, next *lfuBucket[V]
}

// append links e at the bucket tail, making it the newest member.
func (b *lfuBucket[V]) append(e *lfuEntry[V]) {
	e.bucket = b
	e.prev = b.tail
	e.next = nil
	if b.tail != nil {
		b.tail.next = e
	} else {
		b.head = e
	}
	b.tail = e
	b.size++
}

// remove unlinks e from the bucket in O(1) using its intrusive links.
func (b *lfuBucket[V]) remove(e *lfuEntry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		b.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		b.tail = e.prev
	}
	e.prev, e.next, e.bucket = nil, nil, nil
	b.size--
}

// lfuCache bounds entry count via least-frequently-used eviction and entry
// age via a background expiry sweeper. A single lock covers the key index,
// the frequency ledger, and all buckets; Get takes the write lock because a
// hit mutates bucket membership.
type lfuCache[V any] struct {
	mu         sync.RWMutex
	maxSize    int
	expiry     time.Duration
	sweepEvery time.Duration

	entries   map[string]*lfuEntry[V] // key index
	buckets   map[int]*lfuBucket[V]   // frequency ledger
	minBucket *lfuBucket[V]           // head of the ascending bucket list

	stats     *Statistics      // ALWAYS initialized
	metrics   *cacheMetrics    // Optional, if metrics enabled
	evictFn   EvictCallback[V] // Optional callback
	healthMon *health.Monitor  // Optional sweeper heartbeats
	startTime time.Time
	swept     int64 // cumulative entries removed by the sweeper

	// Background sweeper coordination
	shutdown chan struct{}
	done     chan struct{}
}

// New creates a cache that holds at most maxSize entries and expires each
// entry once its age reaches expiry (measured from insertion, never
// refreshed by access). The background sweeper starts immediately and runs
// until Close or cancellation of ctx.
func New[V any](ctx context.Context, expiry time.Duration, maxSize int, options ...Option[V]) (Cache[V], error) {
	if expiry <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "New",
			fmt.Sprintf("expiry must be positive, got %v", expiry))
	}
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "New",
			fmt.Sprintf("max size must be positive, got %d", maxSize))
	}
	opts := applyOptions(options...)
	return newLFUCache[V](ctx, expiry, maxSize, sweepInterval, opts)
}

// newLFUCache wires a cache instance with an explicit sweep period. Tests
// use short periods; the public constructor always passes sweepInterval.
func newLFUCache[V any](
	ctx context.Context, expiry time.Duration, maxSize int, sweepEvery time.Duration, opts *cacheOptions[V],
) (*lfuCache[V], error) {
	// Stats are ALWAYS initialized - observability is not optional
	stats := NewStatistics()

	var metrics *cacheMetrics
	// Optionally expose stats as Prometheus metrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "newLFUCache", "metrics registration")
		}
	}

	c := &lfuCache[V]{
		maxSize:    maxSize,
		expiry:     expiry,
		sweepEvery: sweepEvery,
		entries:    make(map[string]*lfuEntry[V]),
		buckets:    make(map[int]*lfuBucket[V]),
		stats:      stats,   // ALWAYS present
		metrics:    metrics, // Optional
		evictFn:    opts.evictCallback,
		healthMon:  opts.healthMonitor,
		startTime:  time.Now(),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	go c.sweep(ctx)

	return c, nil
}

// Get retrieves a value by key. A hit promotes the entry to the next
// frequency bucket. An entry whose age has already passed expiry is treated
// as absent and removed immediately, so callers never observe expired data
// even inside the sweeper's lag window.
func (c *lfuCache[V]) Get(key string) (V, bool, error) {
	var zero V
	if err := validateKey(key); err != nil {
		return zero, false, err
	}

	c.mu.Lock()

	e, exists := c.entries[key]
	if !exists {
		c.mu.Unlock()
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
		return zero, false, nil
	}

	if c.isExpired(e, time.Now()) {
		c.removeEntry(e)
		size := len(c.entries)
		c.mu.Unlock()

		c.stats.Expiration()
		c.stats.Miss()
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.recordExpiration()
			c.metrics.recordMiss()
			c.metrics.updateSize(size)
		}
		if c.evictFn != nil {
			c.evictFn(e.key, e.value)
		}
		return zero, false, nil
	}

	c.promote(e)
	value := e.value
	c.mu.Unlock()

	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return value, true, nil
}

// Put stores a value. An existing key is overwritten and promoted exactly as
// a Get hit would promote it: an update counts as a use. A new key is
// inserted at frequency 1, evicting the current candidate first if the cache
// is full.
func (c *lfuCache[V]) Put(key string, value V) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	var evicted *lfuEntry[V]

	c.mu.Lock()

	if e, exists := c.entries[key]; exists && !c.isExpired(e, time.Now()) {
		e.value = value
		c.promote(e)
		c.mu.Unlock()

		c.stats.Set()
		if c.metrics != nil {
			c.metrics.recordSet()
		}
		return nil
	} else if exists {
		// The key is present but already past expiry: replace it with a
		// fresh insert rather than promoting stale frequency state.
		c.removeEntry(e)
		evicted = e
		c.stats.Expiration()
		if c.metrics != nil {
			c.metrics.recordExpiration()
		}
	}

	if len(c.entries) >= c.maxSize {
		candidate, err := c.evictionCandidate()
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.removeEntry(candidate)
		evicted = candidate
		c.stats.Eviction()
		if c.metrics != nil {
			c.metrics.recordEviction()
		}
	}

	e := &lfuEntry[V]{
		key:        key,
		value:      value,
		freq:       1,
		insertedAt: time.Now(),
	}
	c.bucketAt(1, nil).append(e)
	c.entries[key] = e
	size := len(c.entries)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}

	// Call eviction callback outside the lock to prevent deadlock
	if evicted != nil && c.evictFn != nil {
		c.evictFn(evicted.key, evicted.value)
	}

	return nil
}

// Delete removes an entry by key.
func (c *lfuCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	e, exists := c.entries[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}
	c.removeEntry(e)
	size := len(c.entries)
	c.mu.Unlock()

	c.stats.Delete()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordDelete()
		c.metrics.updateSize(size)
	}

	if c.evictFn != nil {
		c.evictFn(e.key, e.value)
	}

	return true, nil
}

// Clear atomically empties the key index and the frequency ledger. The
// sweeper keeps running.
func (c *lfuCache[V]) Clear() error {
	var removed []*lfuEntry[V]

	c.mu.Lock()
	if c.evictFn != nil {
		removed = make([]*lfuEntry[V], 0, len(c.entries))
		for b := c.minBucket; b != nil; b = b.next {
			for e := b.head; e != nil; e = e.next {
				removed = append(removed, e)
			}
		}
	}

	c.entries = make(map[string]*lfuEntry[V])
	c.buckets = make(map[int]*lfuBucket[V])
	c.minBucket = nil
	c.mu.Unlock()

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}

	// Call eviction callbacks outside the lock to prevent deadlock
	for _, e := range removed {
		c.evictFn(e.key, e.value)
	}

	return nil
}

// Size returns the current number of entries in the cache. This is an O(1)
// read of the key index; entries that have logically expired but have not
// been swept yet are still counted for up to one sweep period.
func (c *lfuCache[V]) Size() int {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return size
}

// Keys returns all live keys, lowest frequency first and oldest promotion
// first within a frequency. Expired-but-unswept keys are omitted.
func (c *lfuCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	keys := make([]string, 0, len(c.entries))
	for b := c.minBucket; b != nil; b = b.next {
		for e := b.head; e != nil; e = e.next {
			if !c.isExpired(e, now) {
				keys = append(keys, e.key)
			}
		}
	}
	return keys
}

// Stats returns cache statistics.
func (c *lfuCache[V]) Stats() *Statistics {
	return c.stats
}

// Close shuts down the cache and stops the background sweeper.
func (c *lfuCache[V]) Close() error {
	// Signal shutdown via channel
	select {
	case <-c.shutdown:
		// Already shutting down
	default:
		close(c.shutdown)
	}

	// Wait for the sweeper goroutine to finish with timeout
	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for sweeper goroutine to finish")
	}
}

// isExpired reports whether e's age has reached the expiry duration at now.
func (c *lfuCache[V]) isExpired(e *lfuEntry[V], now time.Time) bool {
	return now.Sub(e.insertedAt) >= c.expiry
}

// promote moves e from its current bucket to the bucket for frequency+1,
// creating that bucket in place if absent and dropping the old bucket from
// the ledger if it empties. O(1): only intrusive links are rewritten.
// Must be called with the write lock held.
func (c *lfuCache[V]) promote(e *lfuEntry[V]) {
	b := e.bucket
	anchorCandidate := b.prev

	b.remove(e)
	if b.size == 0 {
		c.dropBucket(b)
		// b no longer anchors the ledger position; its former neighbour does
		b = anchorCandidate
	}

	e.freq++
	c.bucketAt(e.freq, b).append(e)
}

// evictionCandidate returns the head entry of the minimum-frequency bucket:
// the least frequently used entry, FIFO among ties. Must be called with the
// write lock held.
func (c *lfuCache[V]) evictionCandidate() (*lfuEntry[V], error) {
	if c.minBucket == nil {
		return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "cache", "evictionCandidate",
			"no entries to evict")
	}
	if c.minBucket.head == nil {
		// An empty bucket must never remain in the ledger.
		return nil, errors.WrapFatal(errors.ErrInternalState, "cache", "evictionCandidate",
			fmt.Sprintf("ledger references empty bucket at frequency %d", c.minBucket.freq))
	}
	return c.minBucket.head, nil
}

// removeEntry detaches e from its bucket and the key index, dropping the
// bucket from the ledger if it empties. Must be called with the write lock
// held.
func (c *lfuCache[V]) removeEntry(e *lfuEntry[V]) {
	b := e.bucket
	b.remove(e)
	if b.size == 0 {
		c.dropBucket(b)
	}
	delete(c.entries, e.key)
}

// bucketAt returns the bucket for freq, creating it if absent. A new bucket
// is linked immediately after anchor. A nil anchor means the list front,
// which is only correct when freq is lower than every existing frequency,
// in practice frequency 1 inserts. Must be called with the write lock held.
func (c *lfuCache[V]) bucketAt(freq int, anchor *lfuBucket[V]) *lfuBucket[V] {
	if b, ok := c.buckets[freq]; ok {
		return b
	}

	b := &lfuBucket[V]{freq: freq}
	c.buckets[freq] = b

	if anchor == nil {
		b.next = c.minBucket
		if c.minBucket != nil {
			c.minBucket.prev = b
		}
		c.minBucket = b
		return b
	}

	b.prev = anchor
	b.next = anchor.next
	if anchor.next != nil {
		anchor.next.prev = b
	}
	anchor.next = b
	return b
}

// dropBucket unlinks an empty bucket from the ledger. Must be called with
// the write lock held.
func (c *lfuCache[V]) dropBucket(b *lfuBucket[V]) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		c.minBucket = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	b.prev, b.next = nil, nil
	delete(c.buckets, b.freq)
}

// sweep runs in a background goroutine and periodically removes entries
// whose age has reached the expiry duration. The loop only exits on Close
// or context cancellation; a failed tick is reported through health and the
// loop continues.
func (c *lfuCache[V]) sweep(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired performs one sweep tick: every entry at or past its expiry
// is removed from its bucket and the key index under the exclusive lock.
func (c *lfuCache[V]) removeExpired() {
	started := time.Now()
	var expired []*lfuEntry[V]

	c.mu.Lock()
	now := time.Now()
	for _, e := range c.entries {
		if c.isExpired(e, now) {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		c.removeEntry(e)
	}
	size := len(c.entries)
	c.swept += int64(len(expired))
	swept := c.swept
	c.mu.Unlock()

	// Call eviction callbacks outside the lock
	if c.evictFn != nil {
		for _, e := range expired {
			c.evictFn(e.key, e.value)
		}
	}

	if len(expired) > 0 {
		for range expired {
			c.stats.Expiration()
		}
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			for range expired {
				c.metrics.recordExpiration()
			}
			c.metrics.updateSize(size)
		}
	}

	if c.metrics != nil {
		c.metrics.observeSweep(time.Since(started))
	}

	if c.healthMon != nil {
		c.healthMon.Update(sweeperComponent, health.NewHealthy(sweeperComponent, "sweep completed").
			WithMetrics(&health.Metrics{
				Uptime:       time.Since(c.startTime),
				LastSweep:    now,
				EntriesSwept: swept,
			}))
	}
}
