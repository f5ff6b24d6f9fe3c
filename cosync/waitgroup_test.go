// Copyright 2026 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// waitgroup_test.go: Counter semantics and waiter wakeups.
package cosync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

func TestWaitGroup_WaitsForAll(t *testing.T) {
	rt := newTestRuntime(t, 4)
	wg := NewWaitGroup(rt)

	var done atomic.Int64
	const n = 16
	wg.Add(n)
	for i := 0; i < n; i++ {
		_, err := rt.Spawn(func(co *sched.Coro) (any, error) {
			if err := co.Sleep(time.Millisecond); err != nil {
				return nil, err
			}
			done.Add(1)
			wg.Done()
			return nil, nil
		})
		require.NoError(t, err)
	}

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		if err := wg.Wait(co); err != nil {
			return nil, err
		}
		return done.Load(), nil
	})
	require.NoError(t, err)
	v, err := jh.WaitTimeout(30 * time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(n), v)
}

func TestWaitGroup_WaitOnZeroReturnsImmediately(t *testing.T) {
	rt := newTestRuntime(t, 1)
	wg := NewWaitGroup(rt)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		return nil, wg.Wait(co)
	})
	require.NoError(t, err)
	_, err = jh.WaitTimeout(10 * time.Second)
	require.NoError(t, err)
}

func TestWaitGroup_NegativeCounterPanics(t *testing.T) {
	rt := newTestRuntime(t, 1)
	wg := NewWaitGroup(rt)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		wg.Done()
		return nil, nil
	})
	require.NoError(t, err)
	_, err = jh.WaitTimeout(10 * time.Second)
	_, isPanic := api.IsPanic(err)
	require.True(t, isPanic)
}

func TestWaitGroup_CancelledWaiter(t *testing.T) {
	rt := newTestRuntime(t, 2)
	wg := NewWaitGroup(rt)
	wg.Add(1)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		return nil, wg.Wait(co)
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	jh.Cancel()
	_, err = jh.WaitTimeout(10 * time.Second)
	require.ErrorIs(t, err, api.ErrCancelled)

	// counter still outstanding; a fresh waiter wakes on Done
	jh2, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		return nil, wg.Wait(co)
	})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	wg.Done()
	_, err = jh2.WaitTimeout(10 * time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(0), wg.Count())
}
