// Package reactor translates OS readiness events into coroutine
// wakeups.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One reactor instance is shared by all workers of a runtime. A blocked
// network operation arms a one-shot (fd, interest) registration naming
// the waiting coroutine; readiness delivers exactly one unpark for it,
// on whichever worker drains the injector first. Spurious wakeups are
// expected: the woken operation retries its syscall and re-arms when it
// sees EAGAIN.
package reactor
