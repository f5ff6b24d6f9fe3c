// control/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"sync"

	"github.com/momentics/hioload-co/sched"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any)
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// RegisterRuntimeProbes wires the standard scheduler probes for rt.
func RegisterRuntimeProbes(dp *DebugProbes, rt *sched.Runtime) {
	dp.RegisterProbe("sched.stats", func() any { return rt.Stats() })
	dp.RegisterProbe("sched.live", func() any { return rt.Live() })
	dp.RegisterProbe("sched.timers", func() any { return rt.TimerClock().Len() })
	dp.RegisterProbe("pool.stacks", func() any { return rt.StackStats() })
	dp.RegisterProbe("service.info", func() any { return rt.Info() })
}
