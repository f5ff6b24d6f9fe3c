// File: cosync/mutex.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cosync

import (
	"sync"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

// Mutex is a coroutine mutual-exclusion lock with direct handoff:
// Unlock transfers ownership to the oldest claimable waiter instead of
// racing it against new arrivals, so waiters are served FIFO.
//
// The lock is poisoning: if a holder terminates by panic, every
// current and future Lock fails with api.ErrLockPoisoned. The guarded
// state must be assumed inconsistent at that point.
type Mutex struct {
	rt *sched.Runtime

	mu       sync.Mutex
	owner    api.Handle
	poisoned bool
	waiters  waitq
}

// NewMutex creates an unlocked mutex on rt.
func NewMutex(rt *sched.Runtime) *Mutex {
	return &Mutex{rt: rt, owner: api.InvalidHandle, waiters: newWaitq()}
}

// Lock acquires the mutex, suspending co until it is available.
// Returns api.ErrLockPoisoned if a previous holder panicked, and
// api.ErrCancelled if co is cancelled while waiting.
func (m *Mutex) Lock(co *sched.Coro) error {
	m.mu.Lock()
	if m.poisoned {
		m.mu.Unlock()
		return api.ErrLockPoisoned
	}
	if m.owner == api.InvalidHandle {
		m.owner = co.Handle()
		m.mu.Unlock()
		co.TrackLock(m)
		return nil
	}

	ticket := co.PrepareWait()
	n := getNode(co, ticket)
	m.waiters.push(n)
	m.mu.Unlock()

	cause := co.Park(api.BlockMutex)
	defer n.Release(putNode)

	if cause != api.WakeNormal && n.Claim() {
		return api.ErrCancelled
	}
	// handed off: ownership was assigned before the wakeup, unless the
	// lock was poisoned under us
	if !n.OK {
		return api.ErrLockPoisoned
	}
	co.TrackLock(m)
	return nil
}

// TryLock acquires the mutex without suspending.
func (m *Mutex) TryLock(co *sched.Coro) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return false, api.ErrLockPoisoned
	}
	if m.owner != api.InvalidHandle {
		return false, nil
	}
	m.owner = co.Handle()
	co.TrackLock(m)
	return true, nil
}

// Unlock releases the mutex. Panics if co is not the holder, matching
// the contract of sync.Mutex.
func (m *Mutex) Unlock(co *sched.Coro) {
	m.mu.Lock()
	if m.owner != co.Handle() {
		m.mu.Unlock()
		panic("cosync: unlock of mutex not held by caller")
	}
	co.UntrackLock(m)
	n := m.waiters.popClaimed(markDelivered)
	if n == nil {
		m.owner = api.InvalidHandle
		m.mu.Unlock()
		return
	}
	m.owner = n.H
	m.mu.Unlock()

	m.rt.Unpark(n.H, n.Ticket, api.WakeNormal)
	n.Release(putNode)
}

// OnHolderPanic poisons the mutex when its holder terminates by panic.
// Every parked waiter is woken with api.ErrLockPoisoned. Called by the
// runtime's terminal path.
func (m *Mutex) OnHolderPanic(rt *sched.Runtime, holder api.Handle) {
	m.mu.Lock()
	if m.owner != holder {
		m.mu.Unlock()
		return
	}
	m.poisoned = true
	m.owner = api.InvalidHandle
	stranded := m.waiters.drainClaimed(func(n *sched.WaitNode) { n.OK = false })
	m.mu.Unlock()

	for _, n := range stranded {
		rt.Unpark(n.H, n.Ticket, api.WakeNormal)
		n.Release(putNode)
	}
}

// Poisoned reports whether a holder panicked while holding the lock.
func (m *Mutex) Poisoned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poisoned
}

var _ sched.PanicLock = (*Mutex)(nil)
