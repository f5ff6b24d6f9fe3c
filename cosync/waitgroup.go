// File: cosync/waitgroup.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cosync

import (
	"sync"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

// WaitGroup counts outstanding work and suspends waiters until the
// counter returns to zero. Semantics match sync.WaitGroup, with
// coroutine parking instead of goroutine blocking: driving the counter
// negative panics, and Add with a positive delta must not race a Wait
// that could observe zero.
type WaitGroup struct {
	rt *sched.Runtime

	mu      sync.Mutex
	count   int64
	waiters waitq
}

// NewWaitGroup creates an empty wait group on rt.
func NewWaitGroup(rt *sched.Runtime) *WaitGroup {
	return &WaitGroup{rt: rt, waiters: newWaitq()}
}

// Add adds delta to the counter. Reaching zero wakes every waiter;
// passing below zero panics.
func (wg *WaitGroup) Add(delta int64) {
	var woken []*sched.WaitNode
	wg.mu.Lock()
	wg.count += delta
	switch {
	case wg.count < 0:
		wg.mu.Unlock()
		panic("cosync: negative WaitGroup counter")
	case wg.count == 0:
		woken = wg.waiters.drainClaimed(markDelivered)
	}
	wg.mu.Unlock()

	for _, n := range woken {
		wg.rt.Unpark(n.H, n.Ticket, api.WakeNormal)
		n.Release(putNode)
	}
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() { wg.Add(-1) }

// Count returns the current counter value.
func (wg *WaitGroup) Count() int64 {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	return wg.count
}

// Wait suspends co until the counter reaches zero. Returns
// api.ErrCancelled if co is cancelled while waiting.
func (wg *WaitGroup) Wait(co *sched.Coro) error {
	wg.mu.Lock()
	if wg.count == 0 {
		wg.mu.Unlock()
		return nil
	}
	ticket := co.PrepareWait()
	n := getNode(co, ticket)
	wg.waiters.push(n)
	wg.mu.Unlock()

	cause := co.Park(api.BlockExplicit)
	defer n.Release(putNode)

	if cause != api.WakeNormal && n.Claim() {
		return api.ErrCancelled
	}
	return nil
}
