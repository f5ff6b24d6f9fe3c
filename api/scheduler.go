// File: api/scheduler.go
// Author: momentics <momentics@gmail.com>
//
// Park/unpark contract between the scheduler and everything that can
// re-ready a suspended coroutine (reactor, timer wheel, primitives).

package api

// Unparker re-readies suspended coroutines. Implemented by the runtime;
// consumed by the reactor, the timer wheel, and every synchronization
// primitive, so that none of them needs to know scheduler internals.
type Unparker interface {
	// Unpark transitions the coroutine named by h from Blocked back to
	// Ready with the given cause and enqueues it on some run queue.
	// ticket names the park window the wakeup belongs to; a wakeup whose
	// ticket no longer matches the coroutine's current window is stale
	// and must be dropped. Returns false if the wakeup was a no-op
	// (stale, already woken, or terminal).
	Unpark(h Handle, ticket uint32, cause WakeCause) bool
}

// SchedulerStats is a point-in-time snapshot of scheduler counters.
type SchedulerStats struct {
	Workers       int
	Spawned       uint64
	Completed     uint64
	Panicked      uint64
	Cancelled     uint64
	Steals        uint64
	Parks         uint64
	InjectorDepth int
	LocalDepth    int // sum over all workers
}
