// File: cosync/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed channels over the park/unpark protocol. Three shapes share one
// implementation: rendezvous (capacity 0), bounded (fixed ring), and
// unbounded (linked queue, sends never block). Handoff to a parked
// waiter is direct: the deliverer writes the payload into the claimed
// waiter node before unparking, so an item is never observable in two
// places.

package cosync

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/pool"
	"github.com/momentics/hioload-co/sched"
)

// Channel is a typed FIFO between coroutines. All methods are safe for
// concurrent use from any coroutine of the owning runtime.
type Channel[T any] struct {
	rt *sched.Runtime

	mu     sync.Mutex
	ring   *pool.RingBuffer[T] // bounded mode, sized to the next power of two
	capv   int                 // requested bounded capacity
	list   *queue.Queue        // unbounded mode
	over   []T                 // committed sends that lost their receiver, drained first
	closed bool
	sendq  waitq
	recvq  waitq
}

// NewChannel creates a channel with the given capacity. Capacity 0
// makes a rendezvous channel: every send waits for its receiver.
func NewChannel[T any](rt *sched.Runtime, capacity int) *Channel[T] {
	c := &Channel[T]{rt: rt, sendq: newWaitq(), recvq: newWaitq()}
	if capacity > 0 {
		size := uint64(1)
		for size < uint64(capacity) {
			size <<= 1
		}
		c.ring = pool.NewRingBuffer[T](size)
		c.capv = capacity
	}
	return c
}

// NewUnbounded creates a channel whose sends never block.
func NewUnbounded[T any](rt *sched.Runtime) *Channel[T] {
	return &Channel[T]{rt: rt, list: queue.New(), sendq: newWaitq(), recvq: newWaitq()}
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufLenLocked()
}

// Cap returns the buffer capacity; 0 for rendezvous, -1 for unbounded.
func (c *Channel[T]) Cap() int {
	switch {
	case c.ring != nil:
		return c.capv
	case c.list != nil:
		return -1
	default:
		return 0
	}
}

func (c *Channel[T]) bufLenLocked() int {
	n := len(c.over)
	switch {
	case c.ring != nil:
		n += c.ring.Len()
	case c.list != nil:
		n += c.list.Length()
	}
	return n
}

// deliverLocked hands v to a parked receiver, if one can be claimed.
// Caller holds c.mu.
func (c *Channel[T]) deliverLocked(v T) bool {
	n := c.recvq.popClaimed(func(n *sched.WaitNode) {
		n.Item = v
		n.OK = true
	})
	if n == nil {
		return false
	}
	c.rt.Unpark(n.H, n.Ticket, api.WakeNormal)
	n.Release(putNode)
	return true
}

// storeLocked buffers v if the channel shape allows it.
func (c *Channel[T]) storeLocked(v T) bool {
	switch {
	case c.list != nil:
		c.list.Add(v)
		return true
	case c.ring != nil:
		if c.ring.Len() >= c.capv {
			return false
		}
		return c.ring.Enqueue(v)
	default:
		return false
	}
}

// Send delivers v, suspending co while the channel is full (or, for a
// rendezvous channel, until a receiver arrives). Returns
// api.ErrChannelClosed if the channel is or becomes closed, and
// api.ErrCancelled if co is cancelled while waiting.
func (c *Channel[T]) Send(co *sched.Coro, v T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return api.ErrChannelClosed
	}
	if c.deliverLocked(v) || c.storeLocked(v) {
		c.mu.Unlock()
		return nil
	}

	ticket := co.PrepareWait()
	n := getNode(co, ticket)
	n.Item = v
	c.sendq.push(n)
	c.mu.Unlock()

	cause := co.Park(api.BlockChannel)
	return c.finishSend(n, cause)
}

// SendTimeout is Send bounded by d; api.ErrTimedOut if d passes first.
func (c *Channel[T]) SendTimeout(co *sched.Coro, v T, d time.Duration) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return api.ErrChannelClosed
	}
	if c.deliverLocked(v) || c.storeLocked(v) {
		c.mu.Unlock()
		return nil
	}

	ticket := co.PrepareWait()
	n := getNode(co, ticket)
	n.Item = v
	c.sendq.push(n)
	c.mu.Unlock()

	cause := co.ParkTimeout(api.BlockChannel, d)
	return c.finishSend(n, cause)
}

// TrySend is the non-blocking Send: ok reports whether v was accepted.
func (c *Channel[T]) TrySend(v T) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, api.ErrChannelClosed
	}
	ok := c.deliverLocked(v) || c.storeLocked(v)
	c.mu.Unlock()
	return ok, nil
}

func (c *Channel[T]) finishSend(n *sched.WaitNode, cause api.WakeCause) error {
	defer n.Release(putNode)
	if cause != api.WakeNormal && n.Claim() {
		// retracted before any receiver took the item
		if cause == api.WakeTimeout {
			return api.ErrTimedOut
		}
		return api.ErrCancelled
	}
	if n.OK {
		return nil
	}
	return api.ErrChannelClosed
}

// Recv takes the next item, suspending co while the channel is empty.
// After Close, buffered items are still drained in order; only then
// does Recv report api.ErrChannelClosed.
func (c *Channel[T]) Recv(co *sched.Coro) (T, error) {
	var zero T
	c.mu.Lock()
	if v, ok := c.takeLocked(); ok {
		c.mu.Unlock()
		return v, nil
	}
	if c.closed {
		c.mu.Unlock()
		return zero, api.ErrChannelClosed
	}

	ticket := co.PrepareWait()
	n := getNode(co, ticket)
	c.recvq.push(n)
	c.mu.Unlock()

	cause := co.Park(api.BlockChannel)
	return c.finishRecv(n, cause)
}

// RecvTimeout is Recv bounded by d; api.ErrTimedOut if d passes first.
func (c *Channel[T]) RecvTimeout(co *sched.Coro, d time.Duration) (T, error) {
	var zero T
	c.mu.Lock()
	if v, ok := c.takeLocked(); ok {
		c.mu.Unlock()
		return v, nil
	}
	if c.closed {
		c.mu.Unlock()
		return zero, api.ErrChannelClosed
	}

	ticket := co.PrepareWait()
	n := getNode(co, ticket)
	c.recvq.push(n)
	c.mu.Unlock()

	cause := co.ParkTimeout(api.BlockChannel, d)
	return c.finishRecv(n, cause)
}

// TryRecv is the non-blocking Recv.
func (c *Channel[T]) TryRecv() (T, bool, error) {
	var zero T
	c.mu.Lock()
	if v, ok := c.takeLocked(); ok {
		c.mu.Unlock()
		return v, true, nil
	}
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return zero, false, api.ErrChannelClosed
	}
	return zero, false, nil
}

// takeLocked removes the next available item: buffer first, then a
// direct take from a parked sender. Freeing a bounded slot promotes
// the oldest parked sender into it, preserving FIFO order.
func (c *Channel[T]) takeLocked() (T, bool) {
	var zero T
	if len(c.over) > 0 {
		v := c.over[0]
		c.over = c.over[1:]
		return v, true
	}
	switch {
	case c.list != nil:
		if c.list.Length() > 0 {
			return c.list.Remove().(T), true
		}
	case c.ring != nil:
		if v, ok := c.ring.Dequeue(); ok {
			if n := c.sendq.popClaimed(markDelivered); n != nil {
				c.ring.Enqueue(n.Item.(T))
				c.rt.Unpark(n.H, n.Ticket, api.WakeNormal)
				n.Release(putNode)
			}
			return v, true
		}
	}
	// rendezvous, or a sender parked against an empty buffer
	if n := c.sendq.popClaimed(markDelivered); n != nil {
		v := n.Item.(T)
		c.rt.Unpark(n.H, n.Ticket, api.WakeNormal)
		n.Release(putNode)
		return v, true
	}
	return zero, false
}

func markDelivered(n *sched.WaitNode) { n.OK = true }

func (c *Channel[T]) finishRecv(n *sched.WaitNode, cause api.WakeCause) (T, error) {
	var zero T
	defer n.Release(putNode)
	if cause != api.WakeNormal && n.Claim() {
		if cause == api.WakeTimeout {
			return zero, api.ErrTimedOut
		}
		return zero, api.ErrCancelled
	}
	if n.OK {
		return n.Item.(T), nil
	}
	return zero, api.ErrChannelClosed
}

// Close marks the channel closed and wakes every parked sender and
// receiver with api.ErrChannelClosed. Close is idempotent. Items
// already buffered remain receivable.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	markClosed := func(n *sched.WaitNode) { n.OK = false }
	stranded := c.sendq.drainClaimed(markClosed)
	stranded = append(stranded, c.recvq.drainClaimed(markClosed)...)
	c.mu.Unlock()

	for _, n := range stranded {
		c.rt.Unpark(n.H, n.Ticket, api.WakeNormal)
		n.Release(putNode)
	}
}

// Closed reports whether Close was called.
func (c *Channel[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
