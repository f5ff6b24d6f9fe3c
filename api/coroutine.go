// File: api/coroutine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Coroutine identity and lifecycle types shared by every runtime layer.

package api

// Handle identifies one coroutine record inside the runtime's arena.
// The low 48 bits index the arena slot, the high 16 bits carry the
// slot's generation so that a handle kept past its coroutine's death
// can be detected instead of aliasing a recycled record.
type Handle uint64

// InvalidHandle is the zero Handle; it never names a live coroutine.
const InvalidHandle Handle = 0

const (
	handleGenShift = 48
	handleSlotMask = (uint64(1) << handleGenShift) - 1
)

// MakeHandle packs a slot index and generation into a Handle.
func MakeHandle(slot uint64, gen uint16) Handle {
	return Handle(slot&handleSlotMask | uint64(gen)<<handleGenShift)
}

// Slot returns the arena slot index of h.
func (h Handle) Slot() uint64 { return uint64(h) & handleSlotMask }

// Generation returns the arena generation of h.
func (h Handle) Generation() uint16 { return uint16(uint64(h) >> handleGenShift) }

// State enumerates the coroutine lifecycle.
type State uint32

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateDone
	StateCancelled
	StatePanicked
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StatePanicked:
		return "panicked"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled || s == StatePanicked
}

// BlockReason records why a coroutine is suspended.
type BlockReason uint8

const (
	BlockNone BlockReason = iota
	BlockIO
	BlockTimer
	BlockChannel
	BlockMutex
	BlockSemaphore
	BlockExplicit
)

func (r BlockReason) String() string {
	switch r {
	case BlockIO:
		return "io"
	case BlockTimer:
		return "timer"
	case BlockChannel:
		return "channel"
	case BlockMutex:
		return "mutex"
	case BlockSemaphore:
		return "semaphore"
	case BlockExplicit:
		return "explicit"
	default:
		return "none"
	}
}

// WakeCause tells a parked coroutine why it was resumed. The winning
// unparker records exactly one cause; later attempts are no-ops.
type WakeCause uint8

const (
	WakeNormal WakeCause = iota
	WakeTimeout
	WakeCancelled
)

func (c WakeCause) String() string {
	switch c {
	case WakeTimeout:
		return "timeout"
	case WakeCancelled:
		return "cancelled"
	default:
		return "normal"
	}
}

// Err maps a wake cause to its sentinel error, nil for WakeNormal.
func (c WakeCause) Err() error {
	switch c {
	case WakeTimeout:
		return ErrTimedOut
	case WakeCancelled:
		return ErrCancelled
	default:
		return nil
	}
}
