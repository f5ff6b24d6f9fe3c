// File: conet/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package conet is the blocking-style TCP API of the runtime. Reads,
// writes, accepts, and connects look synchronous to the calling
// coroutine but never block the worker underneath: descriptors are
// non-blocking, and on EAGAIN the coroutine parks against the reactor
// until the descriptor becomes ready.
//
// One coroutine per direction: at most one reader and one writer may
// be parked on a connection at a time. Deadlines are per-operation and
// resolve to api.ErrTimedOut.
package conet
