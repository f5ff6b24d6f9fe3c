// Copyright 2026 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
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

func TestRuntimeCollector_Registers(t *testing.T) {
	rt := newTestRuntime(t)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewRuntimeCollector(rt)))

	problems, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	require.Empty(t, problems)
}

func TestRuntimeCollector_CountsSpawns(t *testing.T) {
	rt := newTestRuntime(t)
	col := NewRuntimeCollector(rt)

	const n = 10
	for i := 0; i < n; i++ {
		jh, err := rt.Spawn(func(co *sched.Coro) (any, error) { return nil, nil })
		require.NoError(t, err)
		_, err = jh.WaitTimeout(10 * time.Second)
		require.NoError(t, err)
	}

	// retirement runs after the join observes completion
	require.Eventually(t, func() bool { return rt.Live() == 0 },
		5*time.Second, time.Millisecond)

	families := collectAll(t, col)
	require.Equal(t, float64(n), families["hioload_co_coroutines_spawned_total"])
	require.Equal(t, float64(n), families["hioload_co_coroutines_completed_total"])
	require.Equal(t, float64(2), families["hioload_co_workers"])
	require.Equal(t, float64(0), families["hioload_co_coroutines_live"])
}

// collectAll gathers every unlabeled series into a name->value map.
func collectAll(t *testing.T, col prometheus.Collector) map[string]float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(col))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			v := 0.0
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			}
			out[mf.GetName()] = v
		}
	}
	return out
}
