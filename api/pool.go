// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Stack pooling contracts and statistics.

package api

// StackPoolStats reports allocation accounting for guarded stack
// segments, overall and per size class.
type StackPoolStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
	Pooled     int64
	PerClass   map[int]int64 // class size -> currently pooled
}

// ObjectPool provides generic pooling of transiently allocated objects.
type ObjectPool[T any] interface {
	// Get returns an available instance from the pool.
	Get() T

	// Put returns an instance for reuse.
	Put(obj T)
}
