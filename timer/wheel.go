// File: timer/wheel.go
// Package timer implements the deadline wheel that re-readies blocked
// coroutines.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Entries live in a min-heap keyed by monotonic-nanosecond deadline;
// insertion and removal are O(log n). Cancellation is lazy: Cancel wins
// a CAS against the fire path and the entry is skipped when it reaches
// the heap top, so a fire/cancel race always resolves to exactly one
// effect and the loser is a no-op.

package timer

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-co/api"
)

const (
	statePending uint32 = iota
	stateFired
	stateCancelled
)

// Token is the cancellation handle of one registered deadline.
type Token struct {
	deadline int64
	target   api.Handle
	ticket   uint32
	cause    api.WakeCause
	state    atomic.Uint32
	index    int // heap position, -1 once popped
}

// Cancel revokes the entry; returns false if it already fired.
func (t *Token) Cancel() bool {
	return t.state.CompareAndSwap(statePending, stateCancelled)
}

// Fired reports whether the entry's wakeup was delivered.
func (t *Token) Fired() bool { return t.state.Load() == stateFired }

// Deadline returns the entry's absolute deadline in wheel nanoseconds.
func (t *Token) Deadline() int64 { return t.deadline }

type tokenHeap []*Token

func (h tokenHeap) Len() int            { return len(h) }
func (h tokenHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h tokenHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *tokenHeap) Push(x any)         { t := x.(*Token); t.index = len(*h); *h = append(*h, t) }
func (h *tokenHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Wheel orders deadline wakeups for one runtime. Safe for concurrent
// registration from any worker.
type Wheel struct {
	mu    sync.Mutex
	heap  tokenHeap
	up    api.Unparker
	start time.Time
}

// NewWheel creates a wheel delivering fires through up.
func NewWheel(up api.Unparker) *Wheel {
	w := &Wheel{up: up, start: time.Now()}
	heap.Init(&w.heap)
	return w
}

// Now returns the wheel's monotonic clock in nanoseconds.
func (w *Wheel) Now() int64 { return time.Since(w.start).Nanoseconds() }

// After converts a relative duration to an absolute wheel deadline.
func (w *Wheel) After(d time.Duration) int64 { return w.Now() + d.Nanoseconds() }

// Register schedules an unpark of h, under the given park ticket, with
// the given cause at deadline.
func (w *Wheel) Register(deadline int64, h api.Handle, ticket uint32, cause api.WakeCause) api.TimerToken {
	t := &Token{deadline: deadline, target: h, ticket: ticket, cause: cause}
	w.mu.Lock()
	heap.Push(&w.heap, t)
	w.mu.Unlock()
	return t
}

// Advance fires every pending entry with deadline <= now. Each entry
// fires exactly once; cancelled entries are dropped silently.
func (w *Wheel) Advance(now int64) int {
	fired := 0
	for {
		w.mu.Lock()
		if len(w.heap) == 0 || w.heap[0].deadline > now {
			w.mu.Unlock()
			return fired
		}
		t := heap.Pop(&w.heap).(*Token)
		w.mu.Unlock()

		if !t.state.CompareAndSwap(statePending, stateFired) {
			continue // cancel won the race
		}
		w.up.Unpark(t.target, t.ticket, t.cause)
		fired++
	}
}

// NextDeadline returns the earliest pending deadline, skipping entries
// already cancelled.
func (w *Wheel) NextDeadline() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.heap) > 0 {
		t := w.heap[0]
		if t.state.Load() == statePending {
			return t.deadline, true
		}
		heap.Pop(&w.heap)
	}
	return 0, false
}

// Len returns the number of entries still in the heap, including
// lazily-cancelled ones.
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.heap)
}

var _ api.TimerWheel = (*Wheel)(nil)
var _ api.TimerToken = (*Token)(nil)
