// File: api/errors.go
// Author: momentics <momentics@gmail.com>
//
// Common error taxonomy for the hioload-co runtime.

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors used across the runtime.
//
// Stack overflow is intentionally absent: overflowing a guarded stack
// segment faults the process and is not observable as an error value.
var (
	// ErrCancelled is returned by a blocking operation that resolved
	// because the calling coroutine's cancellation token was set.
	ErrCancelled = errors.New("coroutine cancelled")

	// ErrTimedOut is returned by a blocking operation whose deadline
	// fired before the operation became ready.
	ErrTimedOut = errors.New("operation timed out")

	// ErrChannelClosed is returned by sends on a closed channel, and by
	// receives once a closed channel's buffer has drained.
	ErrChannelClosed = errors.New("channel closed")

	// ErrLockPoisoned is returned by mutex acquisition when a previous
	// holder terminated by panic while holding the lock.
	ErrLockPoisoned = errors.New("mutex poisoned by panicked holder")

	// ErrRuntimeClosed is returned by spawn and blocking entry points
	// after the owning runtime has been shut down.
	ErrRuntimeClosed = errors.New("runtime is closed")

	ErrNotSupported    = errors.New("operation not supported on this platform")
	ErrInvalidArgument = errors.New("invalid argument")
)

// PanicError carries the recovered payload of a coroutine body that
// terminated by panic. It is delivered only at the join boundary; the
// panic never escapes to the worker loop or to other coroutines.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("coroutine panicked: %v", e.Value)
}

// IsPanic reports whether err wraps a coroutine panic and returns the
// recovered payload if so.
func IsPanic(err error) (any, bool) {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.Value, true
	}
	return nil, false
}
