// File: sched/injector.go
// Author: momentics <momentics@gmail.com>
//
// Shared injector queue: default placement for spawns and the landing
// zone for cross-worker wakeups from the reactor and the timer wheel.

package sched

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-co/api"
)

type injector struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newInjector() *injector {
	return &injector{q: queue.New()}
}

func (in *injector) push(h api.Handle) {
	in.mu.Lock()
	in.q.Add(h)
	in.mu.Unlock()
}

// popBatch drains up to len(dst) handles in FIFO order.
func (in *injector) popBatch(dst []api.Handle) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for n < len(dst) && in.q.Length() > 0 {
		dst[n] = in.q.Remove().(api.Handle)
		n++
	}
	return n
}

func (in *injector) depth() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.q.Length()
}
