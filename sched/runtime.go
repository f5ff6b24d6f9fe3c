// File: sched/runtime.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The runtime facade: owns the arena, stack pool, timer wheel, reactor,
// injector, and workers, wired from one immutable Config. A process may
// host several independent runtimes; a lazily created default instance
// exists for ergonomics.

package sched

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/internal/arena"
	"github.com/momentics/hioload-co/pool"
	"github.com/momentics/hioload-co/reactor"
	"github.com/momentics/hioload-co/timer"
)

// Version reported in ServiceInfo.
const Version = "0.3.0"

// Runtime is one scheduler instance. Create with New, dispose with
// Shutdown. Configuration is fixed at creation; there is no mutation
// surface afterward.
type Runtime struct {
	cfg  Config
	info api.ServiceInfo

	arena  *arena.Arena[*Coro]
	stacks *pool.StackPool
	wheel  *timer.Wheel
	rx     api.Reactor
	inj    *injector

	workers    []*worker
	pollerGate atomic.Uint32
	closed     atomic.Bool
	stopCh     chan struct{}
	wg         sync.WaitGroup

	stats struct {
		spawned   atomic.Uint64
		completed atomic.Uint64
		panicked  atomic.Uint64
		cancelled atomic.Uint64
		steals    atomic.Uint64
		parks     atomic.Uint64
	}
}

// New creates and starts a runtime. nil cfg means DefaultConfig.
func New(cfg *Config) (*Runtime, error) {
	conf := DefaultConfig()
	if cfg != nil {
		conf = *cfg
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		cfg: conf,
		info: api.ServiceInfo{
			Name:       conf.Name,
			Version:    Version,
			InstanceID: uuid.NewString(),
			StartedAt:  time.Now(),
		},
		arena:  arena.New[*Coro](256),
		stacks: pool.NewStackPool(conf.MaxPooledStacks),
		inj:    newInjector(),
		stopCh: make(chan struct{}),
	}
	rt.wheel = timer.NewWheel(rt)

	rx, err := reactor.New(rt)
	if err != nil {
		return nil, fmt.Errorf("sched: create reactor: %w", err)
	}
	rt.rx = rx

	rt.workers = make([]*worker, conf.Workers)
	for i := range rt.workers {
		rt.workers[i] = newWorker(i, rt)
	}
	rt.wg.Add(conf.Workers)
	for _, w := range rt.workers {
		go w.run()
	}
	return rt, nil
}

// Spawn submits body for execution on any worker via the shared
// injector and returns its join handle.
func (rt *Runtime) Spawn(body Body) (*JoinHandle, error) {
	return rt.spawn(body, nil, -1)
}

// SpawnLocal commits body directly to the worker currently running co,
// trading steal-only fairness for placement latency.
func (rt *Runtime) SpawnLocal(co *Coro, body Body) (*JoinHandle, error) {
	local := -1
	if co != nil {
		local = int(co.workerID)
	}
	return rt.spawn(body, groupOf(co), local)
}

func groupOf(co *Coro) *Group {
	if co == nil {
		return nil
	}
	return co.group
}

func (rt *Runtime) spawn(body Body, g *Group, localWorker int) (*JoinHandle, error) {
	if body == nil {
		return nil, api.ErrInvalidArgument
	}
	if rt.closed.Load() {
		return nil, api.ErrRuntimeClosed
	}

	c := newCoro(rt, body, g)
	c.handle = rt.arena.Put(c)
	c.jh = newJoinHandle(rt, c.handle)
	rt.stats.spawned.Add(1)

	if localWorker >= 0 && localWorker < len(rt.workers) {
		rt.workers[localWorker].pushLocal(c.handle)
	} else {
		rt.inj.push(c.handle)
	}
	rt.signalWork()
	return c.jh, nil
}

// signalWork wakes the poller and one parked worker.
func (rt *Runtime) signalWork() {
	rt.rx.Wake()
	for _, w := range rt.workers {
		select {
		case w.parkCh <- struct{}{}:
			return
		default:
		}
	}
}

// Unpark re-readies the coroutine named by h for the park window
// ticket. Exactly one unparker wins per park; every other call is a
// no-op returning false. Safe from any goroutine.
func (rt *Runtime) Unpark(h api.Handle, ticket uint32, cause api.WakeCause) bool {
	c, ok := rt.arena.Get(h)
	if !ok {
		return false
	}
	for {
		if c.ticket.Load() != ticket {
			return false
		}
		switch api.State(c.state.Load()) {
		case api.StateBlocked:
			if c.casState(api.StateBlocked, api.StateReady) {
				c.cause = cause
				rt.inj.push(h)
				rt.signalWork()
				return true
			}
			// lost the transition race, re-read state

		case api.StateRunning:
			// pre-block window: leave a ticketed pending wake for the
			// worker's finalize step. The slot may still hold a wake
			// from a finished window (a timer or reactor fire that
			// landed after its park resumed); such an entry is dead
			// weight and must be replaced, or this wake would be lost.
			// Only a pending wake for the same ticket means the park
			// was already won.
			want := encodePending(ticket, cause)
			for !c.pending.CompareAndSwap(0, want) {
				p := c.pending.Load()
				if p == 0 {
					continue
				}
				if t, _ := decodePending(p); t == ticket {
					return false // another wake already pending
				}
				if c.pending.CompareAndSwap(p, want) {
					break
				}
			}
			// the worker may have finished parking before the pending
			// landed; reconcile so the wake cannot be lost
			if api.State(c.state.Load()) == api.StateBlocked {
				if p := c.pending.Swap(0); p != 0 {
					if c.casState(api.StateBlocked, api.StateReady) {
						_, c.cause = decodePending(p)
						rt.inj.push(h)
						rt.signalWork()
					}
				}
			}
			return true

		default:
			return false // already ready or terminal
		}
	}
}

// execute runs on the coroutine's hosting goroutine.
func (rt *Runtime) execute(c *Coro) {
	var (
		res any
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.panicked = true
				err = &api.PanicError{Value: r}
			}
		}()
		if c.CancelRequested() {
			err = api.ErrCancelled
			return
		}
		res, err = c.body(c)
	}()

	final := api.StateDone
	switch {
	case c.panicked:
		final = api.StatePanicked
		for _, l := range c.held {
			l.OnHolderPanic(rt, c.handle)
		}
	case err != nil && errors.Is(err, api.ErrCancelled):
		final = api.StateCancelled
	}
	c.held = nil
	c.state.Store(uint32(final))
	c.jh.complete(res, err, final)
	c.yieldCh <- msgDone
}

// retire releases a finished coroutine's resources.
func (rt *Runtime) retire(c *Coro) {
	rt.stacks.Release(c.stack)
	c.stack = nil
	rt.arena.Free(c.handle)
	rt.accountFinal(api.State(c.state.Load()))
}

// finishUnstarted finalizes a coroutine cancelled before first
// dispatch; the body never runs and no stack is acquired.
func (rt *Runtime) finishUnstarted(c *Coro) {
	c.state.Store(uint32(api.StateCancelled))
	c.jh.complete(nil, api.ErrCancelled, api.StateCancelled)
	rt.arena.Free(c.handle)
	rt.accountFinal(api.StateCancelled)
}

func (rt *Runtime) finishSpawnFailure(c *Coro, err error) {
	c.state.Store(uint32(api.StateDone))
	c.jh.complete(nil, fmt.Errorf("sched: acquire stack: %w", err), api.StateDone)
	rt.arena.Free(c.handle)
	rt.accountFinal(api.StateDone)
}

func (rt *Runtime) accountFinal(final api.State) {
	rt.stats.completed.Add(1)
	switch final {
	case api.StatePanicked:
		rt.stats.panicked.Add(1)
	case api.StateCancelled:
		rt.stats.cancelled.Add(1)
	}
}

// requestCancel sets the coroutine's token and kicks it out of a
// current park, if any. Resolution is bounded by the next scheduler
// pass: a running coroutine observes the token at its next suspension
// point.
func (rt *Runtime) requestCancel(h api.Handle) {
	c, ok := rt.arena.Get(h)
	if !ok {
		return
	}
	c.cancel.Store(true)
	rt.Unpark(h, c.ticket.Load(), api.WakeCancelled)
}

// Reactor exposes the runtime's readiness reactor.
func (rt *Runtime) Reactor() api.Reactor { return rt.rx }

// Timers exposes the runtime's timer wheel.
func (rt *Runtime) Timers() api.TimerWheel { return rt.wheel }

// TimerClock returns the wheel as a clock for deadline math.
func (rt *Runtime) TimerClock() *timer.Wheel { return rt.wheel }

// Info returns the runtime's service descriptor.
func (rt *Runtime) Info() api.ServiceInfo { return rt.info }

// Config returns a copy of the immutable configuration.
func (rt *Runtime) Config() Config { return rt.cfg }

// StackStats returns the stack pool accounting.
func (rt *Runtime) StackStats() api.StackPoolStats { return rt.stacks.Stats() }

// Live returns the number of live coroutine records.
func (rt *Runtime) Live() int { return rt.arena.Len() }

// Stats returns a snapshot of scheduler counters.
func (rt *Runtime) Stats() api.SchedulerStats {
	local := 0
	for _, w := range rt.workers {
		local += w.localDepth()
	}
	return api.SchedulerStats{
		Workers:       len(rt.workers),
		Spawned:       rt.stats.spawned.Load(),
		Completed:     rt.stats.completed.Load(),
		Panicked:      rt.stats.panicked.Load(),
		Cancelled:     rt.stats.cancelled.Load(),
		Steals:        rt.stats.steals.Load(),
		Parks:         rt.stats.parks.Load(),
		InjectorDepth: rt.inj.depth(),
		LocalDepth:    local,
	}
}

// Shutdown stops the workers and releases pooled resources. Intended
// after outstanding work has been joined; coroutines still queued or
// blocked are abandoned, and their joiners' results are discarded with
// the runtime.
func (rt *Runtime) Shutdown() {
	if !rt.closed.CompareAndSwap(false, true) {
		return
	}
	close(rt.stopCh)
	rt.rx.Wake()
	for _, w := range rt.workers {
		w.wake()
	}
	rt.wg.Wait()
	_ = rt.rx.Close()
	rt.stacks.Close()
}

var (
	defaultOnce sync.Once
	defaultRT   *Runtime
)

// Default returns the lazily created process-wide runtime with
// DefaultConfig.
func Default() *Runtime {
	defaultOnce.Do(func() {
		rt, err := New(nil)
		if err != nil {
			panic(fmt.Sprintf("sched: default runtime: %v", err))
		}
		defaultRT = rt
	})
	return defaultRT
}

// Spawn submits body to the default runtime.
func Spawn(body Body) (*JoinHandle, error) { return Default().Spawn(body) }
