// File: sched/spawn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Join handles and cancellation groups.

package sched

import (
	"sync"
	"time"

	"github.com/momentics/hioload-co/api"
)

// JoinHandle observes one spawned coroutine: its result, its terminal
// state, and a cancellation trigger. Wait is for plain goroutines;
// Join is the coroutine-side equivalent and suspends cooperatively.
// All methods are safe for concurrent use, and results stay readable
// after the coroutine's record has been recycled.
type JoinHandle struct {
	rt     *Runtime
	handle api.Handle
	done   chan struct{}

	mu        sync.Mutex
	waiters   []*WaitNode
	result    any
	err       error
	final     api.State
	completed bool
}

func newJoinHandle(rt *Runtime, h api.Handle) *JoinHandle {
	return &JoinHandle{rt: rt, handle: h, done: make(chan struct{})}
}

// complete publishes the terminal result exactly once and wakes every
// registered joiner. Called by the runtime on the terminal path.
func (jh *JoinHandle) complete(res any, err error, final api.State) {
	jh.mu.Lock()
	if jh.completed {
		jh.mu.Unlock()
		return
	}
	jh.result, jh.err, jh.final = res, err, final
	jh.completed = true
	waiters := jh.waiters
	jh.waiters = nil
	jh.mu.Unlock()

	close(jh.done)
	for _, n := range waiters {
		if n.Claim() {
			jh.rt.Unpark(n.H, n.Ticket, api.WakeNormal)
		}
		n.Release(nil)
	}
}

// Handle returns the joined coroutine's handle.
func (jh *JoinHandle) Handle() api.Handle { return jh.handle }

// Done returns a channel closed when the coroutine terminates. Usable
// from plain goroutines and in Go select statements.
func (jh *JoinHandle) Done() <-chan struct{} { return jh.done }

// Completed reports whether the coroutine reached a terminal state.
func (jh *JoinHandle) Completed() bool {
	jh.mu.Lock()
	defer jh.mu.Unlock()
	return jh.completed
}

// State returns the coroutine's current lifecycle state.
func (jh *JoinHandle) State() api.State {
	jh.mu.Lock()
	if jh.completed {
		s := jh.final
		jh.mu.Unlock()
		return s
	}
	jh.mu.Unlock()
	if c, ok := jh.rt.arena.Get(jh.handle); ok {
		return c.State()
	}
	return api.StateReady
}

// Wait blocks the calling goroutine until the coroutine terminates and
// returns its result. For use outside coroutines; within one, use Join.
func (jh *JoinHandle) Wait() (any, error) {
	<-jh.done
	return jh.result, jh.err
}

// WaitTimeout is Wait with a deadline; api.ErrTimedOut if it passes.
func (jh *JoinHandle) WaitTimeout(d time.Duration) (any, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-jh.done:
		return jh.result, jh.err
	case <-t.C:
		return nil, api.ErrTimedOut
	}
}

// Join suspends co until the joined coroutine terminates. Returns the
// joined coroutine's result, or api.ErrCancelled if co itself is
// cancelled first.
func (jh *JoinHandle) Join(co *Coro) (any, error) {
	jh.mu.Lock()
	if jh.completed {
		res, err := jh.result, jh.err
		jh.mu.Unlock()
		return res, err
	}
	ticket := co.PrepareWait()
	node := NewWaitNode(co, ticket)
	jh.waiters = append(jh.waiters, node)
	jh.mu.Unlock()

	cause := co.Park(api.BlockExplicit)
	defer node.Release(nil)

	// on cancellation, retract the node; losing the claim means the
	// completion already picked us and the result is ready
	if cause != api.WakeNormal && node.Claim() {
		return nil, api.ErrCancelled
	}
	jh.mu.Lock()
	res, err := jh.result, jh.err
	jh.mu.Unlock()
	return res, err
}

// Cancel requests cooperative cancellation of the joined coroutine.
// Resolution happens at the target's next suspension point, or before
// its first dispatch if it has not started.
func (jh *JoinHandle) Cancel() {
	jh.rt.requestCancel(jh.handle)
}

// Group is a cancellation scope over a set of coroutines. Cancelling
// the group sets every member's token and kicks members out of parks;
// groups nest, and a child group observes its parent's cancellation.
type Group struct {
	rt     *Runtime
	parent *Group

	mu        sync.Mutex
	cancelled bool
	members   []*JoinHandle
	children  []*Group
}

// NewGroup creates a cancellation scope on rt. parent may be nil.
func NewGroup(rt *Runtime, parent *Group) *Group {
	return &Group{rt: rt, parent: parent}
}

// NewGroup creates a root cancellation scope on the runtime.
func (rt *Runtime) NewGroup() *Group { return NewGroup(rt, nil) }

// NewChild creates a nested scope that also observes g's cancellation.
func (g *Group) NewChild() *Group {
	child := NewGroup(g.rt, g)
	g.mu.Lock()
	g.children = append(g.children, child)
	g.mu.Unlock()
	return child
}

// Cancelled reports whether this group or any ancestor was cancelled.
func (g *Group) Cancelled() bool {
	g.mu.Lock()
	c := g.cancelled
	g.mu.Unlock()
	if c {
		return true
	}
	return g.parent != nil && g.parent.Cancelled()
}

// Spawn submits body as a member of the group.
func (g *Group) Spawn(body Body) (*JoinHandle, error) {
	jh, err := g.rt.spawn(body, g, -1)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.members = append(g.members, jh)
	g.mu.Unlock()
	return jh, nil
}

// Cancel sets the group token and kicks every member, recursively
// through child scopes. Members that already terminated are
// unaffected; members spawned afterward observe the token at their
// first suspension point.
func (g *Group) Cancel() {
	g.mu.Lock()
	if g.cancelled {
		g.mu.Unlock()
		return
	}
	g.cancelled = true
	members := make([]*JoinHandle, len(g.members))
	copy(members, g.members)
	children := make([]*Group, len(g.children))
	copy(children, g.children)
	g.mu.Unlock()

	for _, jh := range members {
		jh.Cancel()
	}
	for _, c := range children {
		c.Cancel()
	}
}

// Wait blocks the calling goroutine until every member terminates.
func (g *Group) Wait() {
	for _, jh := range g.snapshot() {
		<-jh.done
	}
}

// Join suspends co until every member terminates. Cancellation of co
// aborts the wait with api.ErrCancelled.
func (g *Group) Join(co *Coro) error {
	for _, jh := range g.snapshot() {
		if _, err := jh.Join(co); err != nil && err == api.ErrCancelled && co.CancelRequested() {
			return api.ErrCancelled
		}
	}
	return nil
}

func (g *Group) snapshot() []*JoinHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	members := make([]*JoinHandle, len(g.members))
	copy(members, g.members)
	return members
}
