// File: cosync/select.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Multi-way channel wait. All cases of one Select share a single
// election record: the first case found ready at registration time, or
// the first deliverer to claim one of the registered waiter nodes, wins
// it. Every other wakeup for the same Select loses the election CAS and
// becomes a no-op, so exactly one case fires per call.

package cosync

import (
	"time"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

// SelectCase is one alternative of a Select call, built with the
// channel's SendCase/RecvCase constructors, Timeout, or Default.
type SelectCase struct {
	// register attempts the operation immediately; if it cannot
	// complete it enqueues a waiter node tied to st. won is true when
	// the case self-elected and res/err carry its outcome.
	register func(co *sched.Coro, st *sched.SelectState, idx int, ticket uint32) (won bool, res any, err error, n *sched.WaitNode)

	// commit extracts the outcome from a node claimed by a deliverer.
	commit func(n *sched.WaitNode) (any, error)

	// try is the non-blocking probe used when a Default case is present.
	try func() (ready bool, res any, err error)

	timeout time.Duration // >0 marks a Timeout case
	isDflt  bool
}

// RecvCase waits for a value from c. The winning case yields the
// received value, or api.ErrChannelClosed.
func (c *Channel[T]) RecvCase() SelectCase {
	return SelectCase{
		register: func(co *sched.Coro, st *sched.SelectState, idx int, ticket uint32) (bool, any, error, *sched.WaitNode) {
			c.mu.Lock()
			if v, ok := c.peekReadyLocked(); ok {
				if !st.TryWin(idx) {
					c.mu.Unlock()
					return false, nil, nil, nil
				}
				v, _ = c.takeLocked()
				c.mu.Unlock()
				return true, v, nil, nil
			}
			if c.closed {
				if !st.TryWin(idx) {
					c.mu.Unlock()
					return false, nil, nil, nil
				}
				c.mu.Unlock()
				return true, nil, api.ErrChannelClosed, nil
			}
			n := getNode(co, ticket)
			n.AttachSelect(st, idx)
			c.recvq.push(n)
			c.mu.Unlock()
			return false, nil, nil, n
		},
		commit: func(n *sched.WaitNode) (any, error) {
			if n.OK {
				return n.Item.(T), nil
			}
			return nil, api.ErrChannelClosed
		},
		try: func() (bool, any, error) {
			v, ok, err := c.TryRecv()
			if err != nil {
				return true, nil, err
			}
			return ok, v, nil
		},
	}
}

// SendCase offers v to c. The winning case yields nil, or
// api.ErrChannelClosed.
func (c *Channel[T]) SendCase(v T) SelectCase {
	return SelectCase{
		register: func(co *sched.Coro, st *sched.SelectState, idx int, ticket uint32) (bool, any, error, *sched.WaitNode) {
			c.mu.Lock()
			if c.closed {
				if !st.TryWin(idx) {
					c.mu.Unlock()
					return false, nil, nil, nil
				}
				c.mu.Unlock()
				return true, nil, api.ErrChannelClosed, nil
			}
			if c.recvq.len() > 0 || c.spaceLocked() {
				if !st.TryWin(idx) {
					c.mu.Unlock()
					return false, nil, nil, nil
				}
				if !c.deliverLocked(v) && !c.storeLocked(v) {
					// every queued receiver retracted after the win was
					// committed; the value stays in the channel
					c.over = append(c.over, v)
				}
				c.mu.Unlock()
				return true, nil, nil, nil
			}
			n := getNode(co, ticket)
			n.Item = v
			n.AttachSelect(st, idx)
			c.sendq.push(n)
			c.mu.Unlock()
			return false, nil, nil, n
		},
		commit: func(n *sched.WaitNode) (any, error) {
			if n.OK {
				return nil, nil
			}
			return nil, api.ErrChannelClosed
		},
		try: func() (bool, any, error) {
			ok, err := c.TrySend(v)
			if err != nil {
				return true, nil, err
			}
			return ok, nil, nil
		},
	}
}

// peekReadyLocked reports whether a Recv would complete immediately.
func (c *Channel[T]) peekReadyLocked() (T, bool) {
	var zero T
	if c.bufLenLocked() > 0 || c.sendq.len() > 0 {
		return zero, true
	}
	return zero, false
}

// spaceLocked reports whether a Send could buffer immediately.
func (c *Channel[T]) spaceLocked() bool {
	switch {
	case c.list != nil:
		return true
	case c.ring != nil:
		return c.ring.Len() < c.capv
	default:
		return false
	}
}

// Timeout makes the Select give up after d; the timeout case wins with
// api.ErrTimedOut.
func Timeout(d time.Duration) SelectCase { return SelectCase{timeout: d} }

// Default makes the Select non-blocking; the default case wins when no
// other case is immediately ready.
func Default() SelectCase { return SelectCase{isDflt: true} }

// Select waits until exactly one case fires and returns its index in
// cases together with the case outcome. Ready cases are tried in order,
// so the earliest ready case wins a tie. With a Default case no
// suspension happens; with a Timeout case the wait is bounded and the
// timeout case itself fires on expiry. Cancellation of co aborts with
// index -1 and api.ErrCancelled.
func Select(co *sched.Coro, cases ...SelectCase) (int, any, error) {
	if len(cases) == 0 {
		return -1, nil, api.ErrInvalidArgument
	}

	dflt := -1
	timeoutIdx := -1
	timeout := time.Duration(-1)
	for i, cs := range cases {
		if cs.isDflt {
			dflt = i
		}
		if cs.timeout > 0 && timeoutIdx < 0 {
			timeoutIdx = i
			timeout = cs.timeout
		}
	}

	// non-blocking form: probe each case, fall through to default
	if dflt >= 0 {
		for i, cs := range cases {
			if cs.try == nil {
				continue
			}
			if ready, res, err := cs.try(); ready {
				return i, res, err
			}
		}
		return dflt, nil, nil
	}

	st := sched.NewSelectState()
	ticket := co.PrepareWait()
	nodes := make([]*sched.WaitNode, len(cases))
	release := func() {
		for _, n := range nodes {
			if n != nil {
				n.Release(putNode)
			}
		}
	}

	won := -1
	var res any
	var err error
	for i, cs := range cases {
		if cs.register == nil {
			continue
		}
		w, r, e, n := cs.register(co, st, i, ticket)
		nodes[i] = n
		if w {
			won, res, err = i, r, e
			break
		}
		if st.Elected() {
			break // a deliverer already picked an earlier case
		}
	}

	if won >= 0 {
		release()
		return won, res, err
	}

	var cause api.WakeCause
	if timeoutIdx >= 0 {
		cause = co.ParkTimeout(api.BlockChannel, timeout)
	} else {
		cause = co.Park(api.BlockChannel)
	}

	switch cause {
	case api.WakeTimeout:
		if st.CloseTimeout() {
			release()
			return timeoutIdx, nil, api.ErrTimedOut
		}
	case api.WakeCancelled:
		if st.CloseCancelled() {
			release()
			return -1, nil, api.ErrCancelled
		}
	}

	// a deliverer won the election before we could close it
	w := int(st.Winner())
	n := nodes[w]
	res, err = cases[w].commit(n)
	release()
	return w, res, err
}
