// File: sched/coroutine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The coroutine record and the suspend side of the park/unpark
// protocol. The record lives in the runtime's arena; everything else
// refers to it by handle.

package sched

import (
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/pool"
)

// Body is the unit of user work. It runs on the coroutine's execution
// context; co is the coroutine's own record and must not be shared with
// other coroutines.
type Body func(co *Coro) (any, error)

type switchMsg uint8

const (
	msgYield switchMsg = iota
	msgBlocked
	msgDone
)

// pending wakeup encoding: bit 63 set, ticket in bits 8..40, cause in
// the low byte. A pending wake is installed by an unparker that caught
// the coroutine between wait registration and the blocked state.
func encodePending(ticket uint32, cause api.WakeCause) uint64 {
	return 1<<63 | uint64(ticket)<<8 | uint64(cause)
}

func decodePending(p uint64) (ticket uint32, cause api.WakeCause) {
	return uint32(p >> 8), api.WakeCause(p & 0xff)
}

// Coro is one coroutine record. The public methods that suspend
// (Park, Yield, Sleep, …) may only be called from the coroutine's own
// body; the runtime does not enforce this.
type Coro struct {
	handle api.Handle
	rt     *Runtime
	body   Body
	group  *Group
	jh     *JoinHandle

	state   atomic.Uint32 // api.State
	ticket  atomic.Uint32 // park ticket, advanced by PrepareWait
	pending atomic.Uint64 // ticketed early wakeup, see encodePending
	cancel  atomic.Bool

	// worker-side fields, touched only while the coroutine is owned by
	// exactly one worker or by its own hosting goroutine
	started  bool
	workerID int32
	reason   api.BlockReason
	cause    api.WakeCause
	stack    *pool.Stack

	resumeCh chan struct{}
	yieldCh  chan switchMsg

	cls      map[any]any
	held     []PanicLock
	panicked bool
}

// PanicLock is implemented by lock primitives that poison themselves
// when their holder terminates by panic.
type PanicLock interface {
	OnHolderPanic(rt *Runtime, holder api.Handle)
}

func newCoro(rt *Runtime, body Body, g *Group) *Coro {
	c := &Coro{
		rt:       rt,
		body:     body,
		group:    g,
		workerID: -1,
		resumeCh: make(chan struct{}),
		yieldCh:  make(chan switchMsg),
	}
	c.state.Store(uint32(api.StateReady))
	return c
}

// Handle returns the coroutine's arena handle.
func (c *Coro) Handle() api.Handle { return c.handle }

// Runtime returns the owning runtime.
func (c *Coro) Runtime() *Runtime { return c.rt }

// State returns the coroutine's current lifecycle state.
func (c *Coro) State() api.State { return api.State(c.state.Load()) }

// BlockReason returns why the coroutine is currently suspended.
func (c *Coro) BlockReason() api.BlockReason { return c.reason }

// CancelRequested reports whether this coroutine's token, or any
// enclosing group's token, is set. Checked at every suspension point.
func (c *Coro) CancelRequested() bool {
	if c.cancel.Load() {
		return true
	}
	return c.group != nil && c.group.Cancelled()
}

// PrepareWait opens a park window and returns its ticket. Wait
// registrations (reactor arms, timer entries, wait-list nodes) made for
// the upcoming Park must carry this ticket so that late wakeups for an
// already-finished park are discarded instead of corrupting the next
// one.
func (c *Coro) PrepareWait() uint32 { return c.ticket.Add(1) }

// Park suspends the coroutine until an unparker re-readies it, and
// returns the winning wake cause. If cancellation is already requested
// the coroutine does not suspend and WakeCancelled is returned; the
// caller still owns any registrations it made.
func (c *Coro) Park(reason api.BlockReason) api.WakeCause {
	if c.CancelRequested() {
		return api.WakeCancelled
	}
	c.reason = reason
	c.yieldCh <- msgBlocked
	<-c.resumeCh
	c.reason = api.BlockNone
	return c.cause
}

// ParkTimeout parks with a deadline. WakeTimeout is returned if the
// deadline fired first.
func (c *Coro) ParkTimeout(reason api.BlockReason, d time.Duration) api.WakeCause {
	ticket := c.ticket.Load()
	tok := c.rt.wheel.Register(c.rt.wheel.After(d), c.handle, ticket, api.WakeTimeout)
	cause := c.Park(reason)
	tok.Cancel()
	return cause
}

// Yield re-queues the coroutine behind its worker's local queue and
// lets other work run. The only suspension point that needs no wakeup.
func (c *Coro) Yield() {
	c.yieldCh <- msgYield
	<-c.resumeCh
}

// Sleep suspends the coroutine for at least d. Returns ErrCancelled if
// the coroutine was cancelled while sleeping.
func (c *Coro) Sleep(d time.Duration) error {
	if c.CancelRequested() {
		return api.ErrCancelled
	}
	c.PrepareWait()
	cause := c.ParkTimeout(api.BlockTimer, d)
	if cause == api.WakeCancelled {
		return api.ErrCancelled
	}
	return nil
}

// Spawn starts a child coroutine inheriting this coroutine's
// cancellation group. With Config.LocalCommit the child commits to the
// current worker's local queue.
func (c *Coro) Spawn(body Body) (*JoinHandle, error) {
	local := -1
	if c.rt.cfg.LocalCommit {
		local = int(c.workerID)
	}
	return c.rt.spawn(body, c.group, local)
}

// Set stores a coroutine-local value. CLS values are valid for direct
// access only between suspension points of this same coroutine;
// access from other coroutines is unspecified and not checked.
func (c *Coro) Set(key, val any) {
	if c.cls == nil {
		c.cls = make(map[any]any)
	}
	c.cls[key] = val
}

// Get fetches a coroutine-local value.
func (c *Coro) Get(key any) (any, bool) {
	v, ok := c.cls[key]
	return v, ok
}

// Delete removes a coroutine-local value.
func (c *Coro) Delete(key any) { delete(c.cls, key) }

// Scratch bump-allocates n bytes from the coroutine's guarded stack
// segment. The memory is valid until the coroutine completes;
// exhausting the segment is a fatal fault.
func (c *Coro) Scratch(n int) []byte { return c.stack.Alloc(n) }

// TrackLock records a held poisoning-aware lock. Called by primitives.
func (c *Coro) TrackLock(l PanicLock) { c.held = append(c.held, l) }

// UntrackLock removes a previously tracked lock.
func (c *Coro) UntrackLock(l PanicLock) {
	for i, h := range c.held {
		if h == l {
			c.held = append(c.held[:i], c.held[i+1:]...)
			return
		}
	}
}

// takePending consumes the pending wake if it belongs to ticket.
func (c *Coro) takePending(ticket uint32) (api.WakeCause, bool) {
	p := c.pending.Swap(0)
	if p == 0 {
		return 0, false
	}
	t, cause := decodePending(p)
	if t != ticket {
		return 0, false // stale wake from a finished park, dropped
	}
	return cause, true
}

func (c *Coro) casState(from, to api.State) bool {
	return c.state.CompareAndSwap(uint32(from), uint32(to))
}

// WaitNode is one entry on a primitive's FIFO wait-list or a join
// handle's waiter list. The waker claims the node before unparking;
// the cancelled or timed-out owner claims it to retract. Exactly one
// side wins, which makes every wake/cancel race deterministic.
type WaitNode struct {
	H      api.Handle
	Ticket uint32

	// Item and OK carry the delivered payload for channel handoffs:
	// OK false after a claim by the close path.
	Item any
	OK   bool

	sel     *SelectState
	selIdx  int32
	claimed atomic.Uint32
	refs    atomic.Int32
}

// NewWaitNode builds a node for one park of co.
func NewWaitNode(co *Coro, ticket uint32) *WaitNode {
	n := &WaitNode{H: co.handle, Ticket: ticket}
	n.refs.Store(2) // queue reference + owner reference
	return n
}

// Reset prepares a recycled node for reuse.
func (n *WaitNode) Reset(co *Coro, ticket uint32) {
	n.H = co.handle
	n.Ticket = ticket
	n.Item = nil
	n.OK = false
	n.sel = nil
	n.selIdx = 0
	n.claimed.Store(0)
	n.refs.Store(2)
}

// AttachSelect ties the node to a multi-way wait; claiming it then
// elects the select winner.
func (n *WaitNode) AttachSelect(s *SelectState, idx int) {
	n.sel = s
	n.selIdx = int32(idx)
}

// Claim takes exclusive ownership of the node's wakeup. Returns false
// if the other side already claimed it.
func (n *WaitNode) Claim() bool {
	if n.sel != nil {
		return n.sel.winner.CompareAndSwap(selOpen, n.selIdx)
	}
	return n.claimed.CompareAndSwap(0, 1)
}

// Release drops one of the node's two references (queue side and owner
// side); the last release recycles the node through put.
func (n *WaitNode) Release(put func(*WaitNode)) {
	if n.refs.Add(-1) == 0 && put != nil {
		put(n)
	}
}

// SelectState is the shared election record of one multi-way wait.
type SelectState struct {
	winner atomic.Int32
}

const (
	selOpen      int32 = -1
	selCancelled int32 = -2
	selTimeout   int32 = -3
)

// NewSelectState returns an open election.
func NewSelectState() *SelectState {
	s := &SelectState{}
	s.winner.Store(selOpen)
	return s
}

// Winner returns the elected case index, or a negative sentinel.
func (s *SelectState) Winner() int32 { return s.winner.Load() }

// Elected reports whether a case index won the election.
func (s *SelectState) Elected() bool { return s.winner.Load() >= 0 }

// TryWin elects case idx directly, used when a case is found ready at
// registration time. The registration order is the tie-break: the
// first ready case wins.
func (s *SelectState) TryWin(idx int) bool {
	return s.winner.CompareAndSwap(selOpen, int32(idx))
}

// CloseCancelled ends the election with a cancellation if still open.
func (s *SelectState) CloseCancelled() bool {
	return s.winner.CompareAndSwap(selOpen, selCancelled)
}

// CloseTimeout ends the election with a timeout if still open.
func (s *SelectState) CloseTimeout() bool {
	return s.winner.CompareAndSwap(selOpen, selTimeout)
}

// Cancelled reports a cancellation outcome.
func (s *SelectState) Cancelled() bool { return s.winner.Load() == selCancelled }

// TimedOut reports a timeout outcome.
func (s *SelectState) TimedOut() bool { return s.winner.Load() == selTimeout }
