// Package sched is the execution engine of hioload-co: coroutine
// records and their lifecycle, the context-switch engine over pooled
// execution contexts, the multi-threaded work-stealing scheduler, the
// park/unpark contract, coroutine-local storage, and cooperative
// cancellation.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Runtime owns a fixed set of workers, one shared injector queue, a
// timer wheel, and a readiness reactor. Application code spawns
// coroutines and blocks on runtime primitives; a blocked coroutine
// costs no worker, because the worker hands control back to itself and
// picks other work until an external event re-readies the coroutine.
//
// The scheduler never preempts: a CPU-bound coroutine blocks progress
// of others on the same worker until it yields. That is a stated caller
// responsibility.
package sched
