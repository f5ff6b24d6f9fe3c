// File: pool/ring.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity ring buffer (power-of-two size) with cache-line
// padding between the hot indices. Safe for one producer and one
// consumer without external locking; callers with more parties must
// serialize access themselves.

package pool

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// RingBuffer is a fixed-capacity FIFO ring.
type RingBuffer[T any] struct {
	data []T
	mask uint64
	_    cpu.CacheLinePad
	head uint64
	_    cpu.CacheLinePad
	tail uint64
}

// NewRingBuffer allocates a ring buffer; size must be a power of two.
func NewRingBuffer[T any](size uint64) *RingBuffer[T] {
	if size == 0 || (size&(size-1)) != 0 {
		panic("pool: ring buffer size must be a power of two")
	}
	return &RingBuffer[T]{
		data: make([]T, size),
		mask: size - 1,
	}
}

// Enqueue adds an item; returns false if full.
func (r *RingBuffer[T]) Enqueue(val T) bool {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if tail-head == uint64(len(r.data)) {
		return false
	}
	r.data[tail&r.mask] = val
	atomic.StoreUint64(&r.tail, tail+1)
	return true
}

// Dequeue removes and returns (item, ok); ok==false if empty.
func (r *RingBuffer[T]) Dequeue() (res T, ok bool) {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if head == tail {
		return res, false
	}
	var zero T
	idx := head & r.mask
	res = r.data[idx]
	r.data[idx] = zero
	atomic.StoreUint64(&r.head, head+1)
	return res, true
}

// Peek returns the head item without removing it.
func (r *RingBuffer[T]) Peek() (res T, ok bool) {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if head == tail {
		return res, false
	}
	return r.data[head&r.mask], true
}

// Len returns the number of items in the buffer.
func (r *RingBuffer[T]) Len() int {
	return int(atomic.LoadUint64(&r.tail) - atomic.LoadUint64(&r.head))
}

// Cap returns the logical buffer capacity.
func (r *RingBuffer[T]) Cap() int { return len(r.data) }
