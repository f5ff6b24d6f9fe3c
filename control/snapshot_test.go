// Copyright 2026 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package control

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-co/sched"
)

func newTestRuntime(t *testing.T) *sched.Runtime {
	t.Helper()
	cfg := sched.DefaultConfig()
	cfg.Workers = 2
	rt, err := sched.New(&cfg)
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return rt
}

func TestCapture(t *testing.T) {
	rt := newTestRuntime(t)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) { return nil, nil })
	require.NoError(t, err)
	_, err = jh.WaitTimeout(10 * time.Second)
	require.NoError(t, err)

	snap := Capture(rt)
	require.Equal(t, rt.Info().InstanceID, snap.Info.InstanceID)
	require.Equal(t, 2, snap.Scheduler.Workers)
	require.GreaterOrEqual(t, snap.Scheduler.Spawned, uint64(1))
	require.False(t, snap.CapturedAt.IsZero())

	// snapshots serve JSON status endpoints
	b, err := json.Marshal(snap)
	require.NoError(t, err)
	require.Contains(t, string(b), `"scheduler"`)
}

func TestDebugProbes(t *testing.T) {
	rt := newTestRuntime(t)
	dp := NewDebugProbes()
	RegisterRuntimeProbes(dp, rt)
	dp.RegisterProbe("custom", func() any { return 42 })

	out := dp.DumpState()
	require.Equal(t, 42, out["custom"])
	require.Contains(t, out, "sched.stats")
	require.Contains(t, out, "pool.stacks")
	require.Contains(t, out, "service.info")
}
