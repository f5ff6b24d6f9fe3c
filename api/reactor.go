// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral readiness reactor contract.

package api

import "time"

// Interest is a readiness interest mask.
type Interest uint8

const (
	InterestRead  Interest = 1 << iota // descriptor readable
	InterestWrite                      // descriptor writable
)

func (i Interest) String() string {
	switch {
	case i&InterestRead != 0 && i&InterestWrite != 0:
		return "read|write"
	case i&InterestRead != 0:
		return "read"
	case i&InterestWrite != 0:
		return "write"
	default:
		return "none"
	}
}

// Reactor multiplexes readiness of registered descriptors into coroutine
// wakeups. Registration is single-writer per (fd, interest) pair: at
// most one coroutine may be armed for a given pair at a time, and a
// delivered readiness disarms the pair, so wakeups are never duplicated
// for one registration.
type Reactor interface {
	// Add registers a descriptor with the reactor. Must be called once
	// per descriptor before any Arm.
	Add(fd int) error

	// Arm installs a one-shot wakeup: when fd becomes ready for
	// interest, the coroutine h is unparked with WakeNormal under the
	// given park ticket.
	Arm(fd int, interest Interest, h Handle, ticket uint32) error

	// Disarm removes a pending registration before it fired, typically
	// on cancellation or timeout. Returns false if the registration was
	// already consumed by a readiness delivery.
	Disarm(fd int, interest Interest, h Handle) bool

	// Remove drops the descriptor and any pending registrations.
	Remove(fd int) error

	// Poll waits up to timeout for readiness events and delivers the
	// resulting wakeups. It returns the number of wakeups delivered.
	// timeout < 0 blocks until an event or a Wake call.
	Poll(timeout time.Duration) (int, error)

	// Wake interrupts a concurrent Poll.
	Wake()

	Close() error
}
