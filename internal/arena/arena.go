// File: internal/arena/arena.go
// Package arena holds the one owning table of coroutine records.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every scheduler queue, wait-list, and join handle refers to a
// coroutine by api.Handle; only the arena owns the record itself, which
// rules out reference cycles between scheduler, coroutine, and joiners.
// Handles carry the slot generation: a handle kept past its record's
// death fails lookup instead of aliasing a recycled slot.

package arena

import (
	"sync"

	"github.com/momentics/hioload-co/api"
)

type entry[T any] struct {
	val  T
	gen  uint16
	live bool
}

// Arena is a generational slot table, safe for concurrent use from any
// worker.
type Arena[T any] struct {
	mu    sync.RWMutex
	slots []entry[T]
	free  []uint64
	live  int
}

// New creates an empty arena with the given initial capacity.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]entry[T], 0, capacity),
	}
}

// Put stores val and returns its handle.
func (a *Arena[T]) Put(val T) api.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.live++
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		e := &a.slots[slot]
		e.val = val
		e.live = true
		return api.MakeHandle(slot, e.gen)
	}

	// Generation starts at 1 so no valid handle equals InvalidHandle.
	a.slots = append(a.slots, entry[T]{val: val, gen: 1, live: true})
	return api.MakeHandle(uint64(len(a.slots)-1), 1)
}

// Get returns the record named by h, or ok==false for stale or unknown
// handles.
func (a *Arena[T]) Get(h api.Handle) (val T, ok bool) {
	slot := h.Slot()
	a.mu.RLock()
	defer a.mu.RUnlock()
	if slot >= uint64(len(a.slots)) {
		return val, false
	}
	e := &a.slots[slot]
	if !e.live || e.gen != h.Generation() {
		return val, false
	}
	return e.val, true
}

// Free removes the record named by h, bumping the slot generation so
// the handle goes stale. Freeing a stale handle is a no-op.
func (a *Arena[T]) Free(h api.Handle) (val T, ok bool) {
	slot := h.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot >= uint64(len(a.slots)) {
		return val, false
	}
	e := &a.slots[slot]
	if !e.live || e.gen != h.Generation() {
		return val, false
	}
	val = e.val
	var zero T
	e.val = zero
	e.live = false
	e.gen++
	if e.gen == 0 { // skip the invalid generation on wrap
		e.gen = 1
	}
	a.free = append(a.free, slot)
	a.live--
	return val, true
}

// Len returns the number of live records.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}
