// Package cache provides a generic, thread-safe in-memory cache that bounds
// both entry count (least-frequently-used eviction) and entry age
// (background expiry sweeping).
package cache

import (
	"reflect"

	"github.com/barberbradleyt/Cache/errors"
)

// Cache represents the generic cache contract. The cache is parameterized by
// value type V for type safety.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true on a hit,
	// the zero value and false on a miss. A hit counts as a use for
	// eviction purposes. Returns an error for an invalid (empty) key.
	Get(key string) (V, bool, error)

	// Put stores a value with the given key. If the key already exists its
	// value is overwritten and the update counts as a use for eviction
	// purposes. Returns an error for an invalid (empty) key or nil value.
	Put(key string, value V) error

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries. It may briefly include
	// entries that have logically expired but have not been swept yet; it
	// never undercounts live entries.
	Size() int

	// Keys returns all keys currently live in the cache.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics

	// Close shuts down the cache and stops its background sweeper.
	Close() error
}

// EvictCallback is called when an entry leaves the cache through capacity
// eviction or expiry. It receives the key and value of the removed entry.
type EvictCallback[V any] func(key string, value V)

// validateKey validates a cache key for basic requirements.
// Returns a classified error if the key is invalid.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrNilKey, "cache", "validateKey", "key validation")
	}
	return nil
}

// validateValue rejects nil values where nil is representable in V
// (interfaces, pointers, maps, slices). Zero values of concrete types are
// always valid.
func validateValue[V any](value V) error {
	if isNil(any(value)) {
		return errors.WrapInvalid(errors.ErrNilValue, "cache", "validateValue", "value validation")
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
