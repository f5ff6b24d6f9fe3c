// Copyright 2026 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// ring_test.go: Ring buffer contract under single- and cross-goroutine use.
package pool

import (
	"runtime"
	"sync"
	"testing"
)

func TestRingBuffer_Correctness(t *testing.T) {
	r := NewRingBuffer[int](16)
	for i := 0; i < 16; i++ {
		if !r.Enqueue(i) {
			t.Fatalf("Enqueue failed at %d", i)
		}
	}
	if r.Enqueue(99) {
		t.Error("Enqueue succeeded on full ring")
	}
	if got := r.Len(); got != 16 {
		t.Errorf("Len = %d, want 16", got)
	}
	for i := 0; i < 16; i++ {
		val, ok := r.Dequeue()
		if !ok || val != i {
			t.Fatalf("Expected %d, got %d (ok=%v)", i, val, ok)
		}
	}
	if _, ok := r.Dequeue(); ok {
		t.Error("Dequeue succeeded on empty ring")
	}
}

func TestRingBuffer_Peek(t *testing.T) {
	r := NewRingBuffer[string](4)
	if _, ok := r.Peek(); ok {
		t.Error("Peek succeeded on empty ring")
	}
	r.Enqueue("a")
	r.Enqueue("b")
	if v, ok := r.Peek(); !ok || v != "a" {
		t.Errorf("Peek = %q (ok=%v), want \"a\"", v, ok)
	}
	if got := r.Len(); got != 2 {
		t.Errorf("Peek consumed an item: Len = %d", got)
	}
}

func TestRingBuffer_PowerOfTwoRequired(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-power-of-two size")
		}
	}()
	NewRingBuffer[int](12)
}

// One producer, one consumer: the concurrency shape the ring supports.
func TestRingBuffer_SPSC(t *testing.T) {
	r := NewRingBuffer[int](128)
	const items = 10000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < items; i++ {
			for !r.Enqueue(i) {
				runtime.Gosched()
			}
		}
	}()
	for i := 0; i < items; i++ {
		var val int
		var ok bool
		for {
			if val, ok = r.Dequeue(); ok {
				break
			}
			runtime.Gosched()
		}
		if val != i {
			t.Fatalf("out of order: got %d at position %d", val, i)
		}
	}
	wg.Wait()
}
