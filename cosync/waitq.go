// File: cosync/waitq.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cosync

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-co/pool"
	"github.com/momentics/hioload-co/sched"
)

// nodePool recycles waiter nodes across all primitives in the process.
var nodePool = pool.NewSyncPool(func() *sched.WaitNode { return new(sched.WaitNode) })

func getNode(co *sched.Coro, ticket uint32) *sched.WaitNode {
	n := nodePool.Get()
	n.Reset(co, ticket)
	return n
}

func putNode(n *sched.WaitNode) { nodePool.Put(n) }

// waitq is a FIFO of parked waiters. Callers hold the owning
// primitive's lock around every method; the queue itself is not
// synchronized.
type waitq struct {
	q *queue.Queue
}

func newWaitq() waitq { return waitq{q: queue.New()} }

func (w *waitq) push(n *sched.WaitNode) { w.q.Add(n) }

func (w *waitq) len() int { return w.q.Length() }

// popClaimed removes waiters until one is successfully claimed.
// Retracted nodes (cancelled, timed out, or select losers) fail the
// claim and are dropped in passing.
//
// prepare writes the delivery payload into a candidate node BEFORE the
// claim attempt: a retracting owner that loses its own claim reads the
// payload through the claim CAS, so the write must be sequenced before
// it. Writing into a node that then fails the claim is harmless; a
// retracted node's payload is never read.
func (w *waitq) popClaimed(prepare func(*sched.WaitNode)) *sched.WaitNode {
	for w.q.Length() > 0 {
		n := w.q.Remove().(*sched.WaitNode)
		if prepare != nil {
			prepare(n)
		}
		if n.Claim() {
			return n
		}
		n.Release(putNode)
	}
	return nil
}

// drainClaimed removes and claims every live waiter, for broadcast
// paths such as channel close and mutex poisoning. Same payload
// ordering contract as popClaimed.
func (w *waitq) drainClaimed(prepare func(*sched.WaitNode)) []*sched.WaitNode {
	var out []*sched.WaitNode
	for w.q.Length() > 0 {
		n := w.q.Remove().(*sched.WaitNode)
		if prepare != nil {
			prepare(n)
		}
		if n.Claim() {
			out = append(out, n)
			continue
		}
		n.Release(putNode)
	}
	return out
}
