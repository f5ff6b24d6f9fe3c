//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Portable fallback reactor: no descriptor readiness, but Poll/Wake
// still give the scheduler a bounded idle wait so timers and
// primitives keep working on platforms without the epoll path.

package reactor

import (
	"time"

	"github.com/momentics/hioload-co/api"
)

type stubReactor struct {
	wakeCh chan struct{}
}

// New constructs the fallback reactor. I/O registration reports
// api.ErrNotSupported.
func New(up api.Unparker) (api.Reactor, error) {
	return &stubReactor{wakeCh: make(chan struct{}, 1)}, nil
}

func (r *stubReactor) Add(fd int) error  { return api.ErrNotSupported }
func (r *stubReactor) Remove(fd int) error { return nil }

func (r *stubReactor) Arm(fd int, interest api.Interest, h api.Handle, ticket uint32) error {
	return api.ErrNotSupported
}

func (r *stubReactor) Disarm(fd int, interest api.Interest, h api.Handle) bool {
	return false
}

func (r *stubReactor) Poll(timeout time.Duration) (int, error) {
	if timeout < 0 {
		<-r.wakeCh
		return 0, nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-r.wakeCh:
	case <-t.C:
	}
	return 0, nil
}

func (r *stubReactor) Wake() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

func (r *stubReactor) Close() error { return nil }

var _ api.Reactor = (*stubReactor)(nil)
