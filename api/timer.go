// File: api/timer.go
// Author: momentics <momentics@gmail.com>
//
// Timer wheel contract.

package api

// TimerToken is the cancellation handle of one registered deadline.
type TimerToken interface {
	// Cancel revokes the entry. Exactly one of Cancel and the wheel's
	// fire path wins; the loser observes false and does nothing.
	Cancel() bool

	// Fired reports whether the entry already fired.
	Fired() bool
}

// TimerWheel orders deadline wakeups. Deadlines are monotonic
// nanoseconds as returned by the wheel's clock.
type TimerWheel interface {
	// Register schedules an unpark of h, under the given park ticket,
	// with the given cause at the deadline.
	Register(deadline int64, h Handle, ticket uint32, cause WakeCause) TimerToken

	// Advance fires every entry with deadline <= now and returns the
	// number fired.
	Advance(now int64) int

	// NextDeadline returns the earliest pending deadline and false if
	// the wheel is empty.
	NextDeadline() (int64, bool)

	// Now returns the wheel's monotonic clock reading in nanoseconds.
	Now() int64
}
