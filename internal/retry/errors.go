package retry

import (
	"errors"
)

var (
	// ErrUnavailable means the target was momentarily not interactable.
	ErrUnavailable = errors.New("element unavailable")
	// ErrIntercepted means another element received the interaction.
	ErrIntercepted = errors.New("interaction intercepted")
	// ErrStale means the target was detached and must be looked up again.
	ErrStale = errors.New("element stale")

	// ErrNotFound means the target does not exist. It is never retried.
	ErrNotFound = errors.New("element not found")
	// ErrUnsupportedStrategy is returned by actions that cannot honor a
	// non-direct interaction strategy.
	ErrUnsupportedStrategy = errors.New("interaction strategy not supported")

	// ErrExhausted wraps the last failure once every attempt was spent.
	ErrExhausted = errors.New("retries exhausted")
)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient marks err as safe to retry. Actions may only mark a failure
// transient when it left no side effect behind.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err belongs to a retryable failure class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrIntercepted) || errors.Is(err, ErrStale) {
		return true
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) {
		return temporary.Temporary()
	}
	return false
}
