// Copyright 2026 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// wheel_test.go: Deadline ordering, cancel-vs-fire race, lazy cleanup.
package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-co/api"
)

// recordingUnparker captures delivered wakeups.
type recordingUnparker struct {
	mu    sync.Mutex
	fired []api.Handle
}

func (r *recordingUnparker) Unpark(h api.Handle, ticket uint32, cause api.WakeCause) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, h)
	return true
}

func (r *recordingUnparker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestWheel_FireInOrder(t *testing.T) {
	up := &recordingUnparker{}
	w := NewWheel(up)

	h1 := api.MakeHandle(1, 1)
	h2 := api.MakeHandle(2, 1)
	h3 := api.MakeHandle(3, 1)

	w.Register(300, h3, 1, api.WakeTimeout)
	w.Register(100, h1, 1, api.WakeTimeout)
	w.Register(200, h2, 1, api.WakeTimeout)

	if n := w.Advance(50); n != 0 {
		t.Errorf("Advance(50) fired %d, want 0", n)
	}
	if n := w.Advance(150); n != 1 {
		t.Errorf("Advance(150) fired %d, want 1", n)
	}
	if n := w.Advance(1000); n != 2 {
		t.Errorf("Advance(1000) fired %d, want 2", n)
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.fired) != 3 || up.fired[0] != h1 || up.fired[1] != h2 || up.fired[2] != h3 {
		t.Errorf("fire order = %v", up.fired)
	}
}

func TestWheel_CancelBeforeFire(t *testing.T) {
	up := &recordingUnparker{}
	w := NewWheel(up)

	tok := w.Register(100, api.MakeHandle(1, 1), 1, api.WakeTimeout)
	if !tok.Cancel() {
		t.Fatal("Cancel returned false on pending entry")
	}
	if tok.Cancel() {
		t.Error("second Cancel returned true")
	}
	if n := w.Advance(1000); n != 0 {
		t.Errorf("cancelled entry fired: %d", n)
	}
	if tok.Fired() {
		t.Error("Fired true on cancelled entry")
	}
	if up.count() != 0 {
		t.Errorf("unparker saw %d wakeups", up.count())
	}
}

func TestWheel_CancelAfterFireLoses(t *testing.T) {
	up := &recordingUnparker{}
	w := NewWheel(up)

	tok := w.Register(100, api.MakeHandle(1, 1), 1, api.WakeTimeout)
	if n := w.Advance(200); n != 1 {
		t.Fatalf("Advance fired %d, want 1", n)
	}
	if tok.Cancel() {
		t.Error("Cancel returned true after fire")
	}
	if !tok.Fired() {
		t.Error("Fired false after fire")
	}
}

func TestWheel_NextDeadlineSkipsCancelled(t *testing.T) {
	up := &recordingUnparker{}
	w := NewWheel(up)

	early := w.Register(100, api.MakeHandle(1, 1), 1, api.WakeTimeout)
	w.Register(200, api.MakeHandle(2, 1), 1, api.WakeTimeout)

	if d, ok := w.NextDeadline(); !ok || d != 100 {
		t.Errorf("NextDeadline = %d (ok=%v), want 100", d, ok)
	}
	early.Cancel()
	if d, ok := w.NextDeadline(); !ok || d != 200 {
		t.Errorf("NextDeadline after cancel = %d (ok=%v), want 200", d, ok)
	}

	w.Register(50, api.MakeHandle(3, 1), 1, api.WakeTimeout)
	if d, ok := w.NextDeadline(); !ok || d != 50 {
		t.Errorf("NextDeadline = %d (ok=%v), want 50", d, ok)
	}
}

func TestWheel_Clock(t *testing.T) {
	w := NewWheel(&recordingUnparker{})
	n1 := w.Now()
	time.Sleep(time.Millisecond)
	n2 := w.Now()
	if n2 <= n1 {
		t.Errorf("clock not monotonic: %d then %d", n1, n2)
	}
	if d := w.After(time.Second); d < n2+int64(900*time.Millisecond) {
		t.Errorf("After(1s) = %d, too early", d)
	}
}
