package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/barberbradleyt/Cache/errors"
	"github.com/barberbradleyt/Cache/pkg/retry"
)

// LoadFunc produces the value for a key that is not in the cache.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// Loader is a read-through front for a Cache. A miss triggers the load
// function; concurrent misses for the same key are collapsed into a single
// in-flight load, and transient load failures are retried with backoff.
type Loader[V any] struct {
	cache   Cache[V]
	load    LoadFunc[V]
	retries retry.Config
	group   singleflight.Group
}

// NewLoader wires a read-through loader over cache. The zero retry.Config
// gets sensible defaults.
func NewLoader[V any](cache Cache[V], load LoadFunc[V], retries retry.Config) (*Loader[V], error) {
	if cache == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLoader",
			"cache must not be nil")
	}
	if load == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLoader",
			"load function must not be nil")
	}
	return &Loader[V]{
		cache:   cache,
		load:    load,
		retries: retries,
	}, nil
}

// Get returns the cached value for key, loading and caching it on a miss.
// The load runs at most once per key at a time regardless of how many
// goroutines miss concurrently; losers share the winner's result without
// re-executing the load.
func (l *Loader[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	value, found, err := l.cache.Get(key)
	if err != nil {
		return zero, err
	}
	if found {
		return value, nil
	}

	result, err, _ := l.group.Do(key, func() (any, error) {
		// Re-check under the flight: another goroutine may have loaded and
		// cached the key while this one waited its turn.
		if v, found, err := l.cache.Get(key); err == nil && found {
			return v, nil
		}

		loaded, err := retry.DoWithResult(ctx, l.retries, func() (V, error) {
			v, err := l.load(ctx, key)
			if err != nil && !errors.IsTransient(err) {
				return v, retry.NonRetryable(err)
			}
			return v, err
		})
		if err != nil {
			return nil, errors.WrapTransient(errors.ErrLoadFailed, "cache", "Loader.Get", key+": "+err.Error())
		}

		if err := l.cache.Put(key, loaded); err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}

	v, ok := result.(V)
	if !ok {
		return zero, errors.WrapFatal(errors.ErrInternalState, "cache", "Loader.Get",
			"load result has unexpected type")
	}
	return v, nil
}

// Forget drops any in-flight load tracking for key, so the next miss will
// execute the load function again even if an earlier load is still running.
func (l *Loader[V]) Forget(key string) {
	l.group.Forget(key)
}
