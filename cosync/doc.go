// File: cosync/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package cosync provides the coroutine-blocking synchronization
// primitives of the runtime: typed channels, wait groups, a poisoning
// mutex, a counting semaphore, and a multi-way select.
//
// All blocking operations suspend only the calling coroutine; the
// worker underneath keeps running other work. Every wait is ticketed,
// so a wakeup that races with cancellation, a timeout, or channel
// close resolves deterministically: exactly one side claims the
// waiter, the other side's effect is a no-op.
package cosync
