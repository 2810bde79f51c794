// Package errors provides classified error handling for the cache system.
//
// Errors fall into three classes:
//
//   - Transient: temporary conditions (backing-store hiccups, timeouts) that
//     callers may retry.
//   - Invalid: bad input or configuration (empty key, non-positive expiry).
//     Never retried; the operation leaves no state mutated.
//   - Fatal: programming-invariant violations such as ErrInternalState.
//     These abort the operation rather than silently corrupting state.
//
// Use the Wrap* helpers to attach component/operation context while
// classifying:
//
//	if key == "" {
//	    return errors.WrapInvalid(errors.ErrNilKey, "cache", "Get", "key validation")
//	}
//
// The Is* predicates and Classify inspect both explicit classification and
// well-known sentinel errors, so callers can route on class without knowing
// which layer produced the error.
package errors
