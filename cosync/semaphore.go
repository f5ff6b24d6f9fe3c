// File: cosync/semaphore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cosync

import (
	"sync"
	"time"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

// Semaphore is a counting semaphore over single-permit acquisitions.
// Release hands permits directly to the oldest parked waiters, FIFO.
type Semaphore struct {
	rt *sched.Runtime

	mu      sync.Mutex
	permits int64
	waiters waitq
}

// NewSemaphore creates a semaphore holding permits.
func NewSemaphore(rt *sched.Runtime, permits int64) *Semaphore {
	if permits < 0 {
		panic("cosync: negative semaphore permits")
	}
	return &Semaphore{rt: rt, permits: permits, waiters: newWaitq()}
}

// Acquire takes one permit, suspending co until one is available.
func (s *Semaphore) Acquire(co *sched.Coro) error {
	n, ok := s.acquireOrEnqueue(co)
	if ok {
		return nil
	}
	cause := co.Park(api.BlockSemaphore)
	return s.finishAcquire(n, cause)
}

// AcquireTimeout is Acquire bounded by d.
func (s *Semaphore) AcquireTimeout(co *sched.Coro, d time.Duration) error {
	n, ok := s.acquireOrEnqueue(co)
	if ok {
		return nil
	}
	cause := co.ParkTimeout(api.BlockSemaphore, d)
	return s.finishAcquire(n, cause)
}

// TryAcquire takes a permit without suspending.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permits > 0 {
		s.permits--
		return true
	}
	return false
}

func (s *Semaphore) acquireOrEnqueue(co *sched.Coro) (*sched.WaitNode, bool) {
	s.mu.Lock()
	if s.permits > 0 {
		s.permits--
		s.mu.Unlock()
		return nil, true
	}
	ticket := co.PrepareWait()
	n := getNode(co, ticket)
	s.waiters.push(n)
	s.mu.Unlock()
	return n, false
}

func (s *Semaphore) finishAcquire(n *sched.WaitNode, cause api.WakeCause) error {
	defer n.Release(putNode)
	if cause != api.WakeNormal && n.Claim() {
		if cause == api.WakeTimeout {
			return api.ErrTimedOut
		}
		return api.ErrCancelled
	}
	// permit handed off before the wakeup
	return nil
}

// Release returns count permits, waking waiters for as many of them as
// can be claimed.
func (s *Semaphore) Release(count int64) {
	if count <= 0 {
		panic("cosync: non-positive semaphore release")
	}
	var woken []*sched.WaitNode
	s.mu.Lock()
	for count > 0 {
		n := s.waiters.popClaimed(markDelivered)
		if n == nil {
			break
		}
		woken = append(woken, n)
		count--
	}
	s.permits += count
	s.mu.Unlock()

	for _, n := range woken {
		s.rt.Unpark(n.H, n.Ticket, api.WakeNormal)
		n.Release(putNode)
	}
}

// Permits returns the number of immediately available permits.
func (s *Semaphore) Permits() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permits
}
