// Copyright 2026 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// channel_test.go: Delivery conservation, ordering, close semantics,
// and rendezvous pairing across all channel shapes.
package cosync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

func newTestRuntime(t *testing.T, workers int) *sched.Runtime {
	t.Helper()
	cfg := sched.DefaultConfig()
	if workers > 0 {
		cfg.Workers = workers
	}
	rt, err := sched.New(&cfg)
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return rt
}

// Every sent item is received exactly once, across P producers and Q
// consumers, for each channel shape.
func TestChannel_Conservation(t *testing.T) {
	shapes := map[string]func(rt *sched.Runtime) *Channel[int]{
		"rendezvous": func(rt *sched.Runtime) *Channel[int] { return NewChannel[int](rt, 0) },
		"bounded":    func(rt *sched.Runtime) *Channel[int] { return NewChannel[int](rt, 7) },
		"unbounded":  NewUnbounded[int],
	}
	for name, mk := range shapes {
		t.Run(name, func(t *testing.T) {
			rt := newTestRuntime(t, 4)
			ch := mk(rt)
			const producers, consumers, perProd = 4, 3, 200

			var sendersDone sync.WaitGroup
			sendersDone.Add(producers)
			for p := 0; p < producers; p++ {
				base := p * perProd
				jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
					defer sendersDone.Done()
					for i := 0; i < perProd; i++ {
						if err := ch.Send(co, base+i); err != nil {
							return nil, err
						}
					}
					return nil, nil
				})
				require.NoError(t, err)
				_ = jh
			}
			go func() {
				sendersDone.Wait()
				ch.Close()
			}()

			var mu sync.Mutex
			seen := make(map[int]int)
			joins := make([]*sched.JoinHandle, consumers)
			for c := range joins {
				jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
					for {
						v, err := ch.Recv(co)
						if err == api.ErrChannelClosed {
							return nil, nil
						}
						if err != nil {
							return nil, err
						}
						mu.Lock()
						seen[v]++
						mu.Unlock()
					}
				})
				require.NoError(t, err)
				joins[c] = jh
			}
			for _, jh := range joins {
				_, err := jh.WaitTimeout(30 * time.Second)
				require.NoError(t, err)
			}

			require.Len(t, seen, producers*perProd)
			for v, n := range seen {
				require.Equal(t, 1, n, "item %d delivered %d times", v, n)
			}
		})
	}
}

// A single producer's items arrive in send order.
func TestChannel_FIFO(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ch := NewChannel[int](rt, 4)
	const n = 500

	prod, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		for i := 0; i < n; i++ {
			if err := ch.Send(co, i); err != nil {
				return nil, err
			}
		}
		ch.Close()
		return nil, nil
	})
	require.NoError(t, err)

	cons, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		next := 0
		for {
			v, err := ch.Recv(co)
			if err == api.ErrChannelClosed {
				return next, nil
			}
			if err != nil {
				return nil, err
			}
			require.Equal(t, next, v)
			next++
		}
	})
	require.NoError(t, err)

	_, err = prod.WaitTimeout(30 * time.Second)
	require.NoError(t, err)
	res, err := cons.WaitTimeout(30 * time.Second)
	require.NoError(t, err)
	require.Equal(t, n, res)
}

func TestChannel_CloseDrain(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ch := NewChannel[int](rt, 8)

	fill, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		for i := 0; i < 5; i++ {
			if err := ch.Send(co, i); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	require.NoError(t, err)
	_, err = fill.WaitTimeout(10 * time.Second)
	require.NoError(t, err)

	ch.Close()
	require.True(t, ch.Closed())

	// sends fail immediately after close
	sj, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		return nil, ch.Send(co, 99)
	})
	require.NoError(t, err)
	_, err = sj.WaitTimeout(10 * time.Second)
	require.ErrorIs(t, err, api.ErrChannelClosed)

	// buffered items still drain, in order, then ErrChannelClosed
	rj, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		var got []int
		for {
			v, err := ch.Recv(co)
			if err == api.ErrChannelClosed {
				return got, nil
			}
			if err != nil {
				return nil, err
			}
			got = append(got, v)
		}
	})
	require.NoError(t, err)
	res, err := rj.WaitTimeout(10 * time.Second)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, res)
}

func TestChannel_CloseWakesBlocked(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ch := NewChannel[int](rt, 0)

	blocked, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		_, err := ch.Recv(co)
		return nil, err
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	ch.Close()

	_, err = blocked.WaitTimeout(10 * time.Second)
	require.ErrorIs(t, err, api.ErrChannelClosed)
}

func TestChannel_TryOps(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ch := NewChannel[int](rt, 1)

	ok, err := ch.TrySend(1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ch.TrySend(2)
	require.NoError(t, err)
	require.False(t, ok, "TrySend succeeded on full channel")

	v, ok, err := ch.TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok, err = ch.TryRecv()
	require.NoError(t, err)
	require.False(t, ok, "TryRecv succeeded on empty channel")

	require.Equal(t, 1, ch.Cap())
	require.Equal(t, 0, ch.Len())
}

func TestChannel_RecvTimeout(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ch := NewChannel[int](rt, 0)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		_, err := ch.RecvTimeout(co, 20*time.Millisecond)
		return nil, err
	})
	require.NoError(t, err)
	_, err = jh.WaitTimeout(10 * time.Second)
	require.ErrorIs(t, err, api.ErrTimedOut)
}

func TestChannel_CancelBlockedSender(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ch := NewChannel[int](rt, 0)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		return nil, ch.Send(co, 1)
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	jh.Cancel()
	_, err = jh.WaitTimeout(10 * time.Second)
	require.ErrorIs(t, err, api.ErrCancelled)

	// the retracted send left nothing behind
	_, ok, err := ch.TryRecv()
	require.NoError(t, err)
	require.False(t, ok)
}
