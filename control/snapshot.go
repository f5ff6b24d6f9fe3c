// control/snapshot.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Point-in-time runtime state capture for monitoring and debugging.

package control

import (
	"time"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

// Snapshot is one consistent-enough view of a runtime: counters are
// read independently, so totals may be off by in-flight operations.
type Snapshot struct {
	Info       api.ServiceInfo    `json:"info"`
	Scheduler  api.SchedulerStats `json:"scheduler"`
	Stacks     api.StackPoolStats `json:"stacks"`
	Timers     int                `json:"timers"`
	Live       int                `json:"live"`
	CapturedAt time.Time          `json:"captured_at"`
}

// Capture reads a snapshot from rt.
func Capture(rt *sched.Runtime) Snapshot {
	return Snapshot{
		Info:       rt.Info(),
		Scheduler:  rt.Stats(),
		Stacks:     rt.StackStats(),
		Timers:     rt.TimerClock().Len(),
		Live:       rt.Live(),
		CapturedAt: time.Now(),
	}
}
