// File: sched/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The worker loop: local pop, steal-half, injector drain, a periodic
// due-timer check on the dispatch path, and the idle path where one
// worker at a time drives the reactor and timer wheel while the rest
// park with a bounded wait.

package sched

import (
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-co/affinity"
	"github.com/momentics/hioload-co/api"
)

// timerCheckMask throttles the dispatch-path timer check to one wheel
// inspection per 32 dispatches.
const timerCheckMask = 31

type worker struct {
	id int
	rt *Runtime

	mu    sync.Mutex
	local *queue.Queue // FIFO of api.Handle

	parkCh chan struct{}
	timer  *time.Timer
	batch  []api.Handle
	rng    uint32
	tick   uint32
}

func newWorker(id int, rt *Runtime) *worker {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &worker{
		id:     id,
		rt:     rt,
		local:  queue.New(),
		parkCh: make(chan struct{}, 1),
		timer:  t,
		batch:  make([]api.Handle, rt.cfg.BatchSize),
		rng:    uint32(id)*2654435761 + 1,
	}
}

func (w *worker) run() {
	defer w.rt.wg.Done()
	if w.rt.cfg.PinWorkers {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		// best effort; pinning is an optimization, not a correctness need
		_ = affinity.Pin(w.id % runtime.NumCPU())
	}
	for {
		select {
		case <-w.rt.stopCh:
			return
		default:
		}

		w.tick++

		var h api.Handle
		var ok bool
		// a coroutine that keeps yielding re-enters the local queue on
		// every pass; without a periodic injector check it would starve
		// fresh spawns and cross-worker wakeups forever
		if w.tick%61 == 0 {
			h, ok = w.pullInjector()
		}
		if !ok {
			h, ok = w.popLocal()
		}
		if !ok {
			h, ok = w.steal()
		}
		if !ok {
			h, ok = w.pullInjector()
		}
		if ok {
			w.dispatch(h)
			// the idle path is the natural wheel driver, but it never
			// runs while ready work keeps every worker busy; check due
			// timers here too so sleeps and timeouts stay bounded
			if w.tick&timerCheckMask == 0 {
				w.fireDueTimers()
			}
			continue
		}
		w.idle()
	}
}

func (w *worker) pushLocal(h api.Handle) {
	w.mu.Lock()
	w.local.Add(h)
	w.mu.Unlock()
}

func (w *worker) popLocal() (api.Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.local.Length() == 0 {
		return api.InvalidHandle, false
	}
	return w.local.Remove().(api.Handle), true
}

func (w *worker) localDepth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.local.Length()
}

// nextRand is a xorshift step for victim selection.
func (w *worker) nextRand() uint32 {
	x := w.rng
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	w.rng = x
	return x
}

// steal takes half of a victim's local queue, oldest entries first.
// The victim keeps FIFO order for what remains.
func (w *worker) steal() (api.Handle, bool) {
	workers := w.rt.workers
	n := len(workers)
	if n < 2 {
		return api.InvalidHandle, false
	}
	start := int(w.nextRand()) % n
	for i := 0; i < n; i++ {
		v := workers[(start+i)%n]
		if v == w {
			continue
		}
		v.mu.Lock()
		depth := v.local.Length()
		if depth == 0 {
			v.mu.Unlock()
			continue
		}
		take := (depth + 1) / 2
		first := v.local.Remove().(api.Handle)
		for j := 1; j < take; j++ {
			w.pushLocal(v.local.Remove().(api.Handle))
		}
		v.mu.Unlock()
		w.rt.stats.steals.Add(uint64(take))
		return first, true
	}
	return api.InvalidHandle, false
}

func (w *worker) pullInjector() (api.Handle, bool) {
	n := w.rt.inj.popBatch(w.batch)
	if n == 0 {
		return api.InvalidHandle, false
	}
	for i := 1; i < n; i++ {
		w.pushLocal(w.batch[i])
	}
	return w.batch[0], true
}

// idle runs when every queue came up empty. One worker at a time
// becomes the poller and blocks in the reactor bounded by the next
// timer deadline; the others park on their wake channel.
func (w *worker) idle() {
	rt := w.rt
	if rt.pollerGate.CompareAndSwap(0, 1) {
		timeout := rt.cfg.ParkInterval
		if deadline, ok := rt.wheel.NextDeadline(); ok {
			if d := time.Duration(deadline - rt.wheel.Now()); d < timeout {
				timeout = d
			}
		}
		if timeout < 0 {
			timeout = 0
		}
		_, _ = rt.rx.Poll(timeout)
		rt.wheel.Advance(rt.wheel.Now())
		rt.pollerGate.Store(0)
		return
	}

	rt.stats.parks.Add(1)
	w.timer.Reset(rt.cfg.ParkInterval)
	select {
	case <-w.parkCh:
		w.timer.Stop()
	case <-w.timer.C:
	case <-rt.stopCh:
		w.timer.Stop()
	}
}

// fireDueTimers advances the wheel if its earliest deadline has
// passed. Cheap when nothing is due: one locked peek at the heap top.
func (w *worker) fireDueTimers() {
	rt := w.rt
	if deadline, ok := rt.wheel.NextDeadline(); ok && deadline <= rt.wheel.Now() {
		rt.wheel.Advance(rt.wheel.Now())
	}
}

func (w *worker) wake() {
	select {
	case w.parkCh <- struct{}{}:
	default:
	}
}

// dispatch runs one coroutine until it yields, blocks, or finishes.
func (w *worker) dispatch(h api.Handle) {
	rt := w.rt
	c, ok := rt.arena.Get(h)
	if !ok {
		return
	}
	if !c.casState(api.StateReady, api.StateRunning) {
		return
	}

	if !c.started {
		if c.CancelRequested() {
			rt.finishUnstarted(c)
			return
		}
		s, err := rt.stacks.Acquire(rt.cfg.StackSize)
		if err != nil {
			rt.finishSpawnFailure(c, err)
			return
		}
		c.stack = s
		c.started = true
		c.workerID = int32(w.id)
		s.Invoke(func() { rt.execute(c) })
	} else {
		c.workerID = int32(w.id)
		c.resumeCh <- struct{}{}
	}

	switch <-c.yieldCh {
	case msgYield:
		c.state.Store(uint32(api.StateReady))
		w.pushLocal(h)
	case msgBlocked:
		w.finalizeBlock(c)
	case msgDone:
		rt.retire(c)
	}
}

// finalizeBlock publishes the blocked state on behalf of the suspended
// coroutine, then reconciles with unparkers that raced into the
// pre-block window. Mirrors the re-check-after-subscribe step of the
// park protocol: either the park ends clean, or exactly one wakeup
// re-readies the coroutine.
func (w *worker) finalizeBlock(c *Coro) {
	ticket := c.ticket.Load()
	for {
		c.state.Store(uint32(api.StateBlocked))
		cause, ok := c.takePending(ticket)
		if !ok {
			if c.pending.Load() == 0 {
				return // parked clean
			}
			continue // stale pending swapped out, re-check
		}
		if c.casState(api.StateBlocked, api.StateReady) {
			c.cause = cause
			w.pushLocal(c.handle)
			return
		}
		return // an outside unparker owns the wake and the enqueue
	}
}
