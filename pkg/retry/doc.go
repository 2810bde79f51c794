// Package retry implements exponential backoff with optional jitter for
// operations that may fail transiently, such as read-through cache loads
// against a slow backing store.
//
// The core entry points are Do and DoWithResult:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return store.Ping()
//	})
//
// Errors wrapped with NonRetryable fail immediately without consuming the
// remaining attempts. Cancellation of the supplied context interrupts both
// the backoff sleep and subsequent attempts.
package retry
