// Package pool implements stack-memory pooling for the hioload-co
// runtime: guarded stack segments allocated with mmap and a PROT_NONE
// guard page, size-classed reuse of execution contexts, a lock-free
// ring buffer, and a generic object pool.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Stack is the runtime's unit of reuse: one guarded scratch segment
// plus one parked hosting goroutine. Overflowing the segment past its
// guard page is a fatal fault, not a recoverable error.
package pool
