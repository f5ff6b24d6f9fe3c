//go:build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) reactor with an eventfd waker.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-co/api"
)

// fdState tracks the armed waiters of one descriptor. Registration is
// single-writer per (fd, interest): at most one coroutine per slot.
type fdState struct {
	reader       api.Handle
	writer       api.Handle
	readerTicket uint32
	writerTicket uint32
}

type epollReactor struct {
	epfd   int
	wakeFd int
	up     api.Unparker

	mu  sync.Mutex
	fds map[int]*fdState
}

// New constructs the platform reactor delivering wakeups through up.
func New(up api.Unparker) (api.Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("reactor: eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFd)
		return nil, fmt.Errorf("reactor: register waker: %w", err)
	}
	return &epollReactor{
		epfd:   epfd,
		wakeFd: wakeFd,
		up:     up,
		fds:    make(map[int]*fdState),
	}, nil
}

func (r *epollReactor) Add(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fds[fd]; ok {
		return fmt.Errorf("reactor: fd %d: %w", fd, api.ErrInvalidArgument)
	}
	ev := unix.EpollEvent{Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll add fd %d: %w", fd, err)
	}
	r.fds[fd] = &fdState{}
	return nil
}

func (r *epollReactor) Arm(fd int, interest api.Interest, h api.Handle, ticket uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.fds[fd]
	if !ok {
		return fmt.Errorf("reactor: fd %d not registered: %w", fd, api.ErrInvalidArgument)
	}
	switch interest {
	case api.InterestRead:
		if st.reader != api.InvalidHandle {
			return fmt.Errorf("reactor: fd %d read already armed: %w", fd, api.ErrInvalidArgument)
		}
		st.reader = h
		st.readerTicket = ticket
	case api.InterestWrite:
		if st.writer != api.InvalidHandle {
			return fmt.Errorf("reactor: fd %d write already armed: %w", fd, api.ErrInvalidArgument)
		}
		st.writer = h
		st.writerTicket = ticket
	default:
		return api.ErrInvalidArgument
	}
	return r.applyLocked(fd, st)
}

func (r *epollReactor) Disarm(fd int, interest api.Interest, h api.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.fds[fd]
	if !ok {
		return false
	}
	switch interest {
	case api.InterestRead:
		if st.reader != h {
			return false
		}
		st.reader = api.InvalidHandle
	case api.InterestWrite:
		if st.writer != h {
			return false
		}
		st.writer = api.InvalidHandle
	default:
		return false
	}
	_ = r.applyLocked(fd, st)
	return true
}

// Remove drops the descriptor; any still-armed waiter is unparked with
// WakeCancelled so a concurrent close cannot strand a blocked coroutine.
func (r *epollReactor) Remove(fd int) error {
	r.mu.Lock()
	st, ok := r.fds[fd]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.fds, fd)
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	r.mu.Unlock()

	if st.reader != api.InvalidHandle {
		r.up.Unpark(st.reader, st.readerTicket, api.WakeCancelled)
	}
	if st.writer != api.InvalidHandle {
		r.up.Unpark(st.writer, st.writerTicket, api.WakeCancelled)
	}
	if err != nil {
		return fmt.Errorf("reactor: epoll del fd %d: %w", fd, err)
	}
	return nil
}

// applyLocked re-installs the interest union for fd. Level-triggered:
// an armed interest stays visible until its waiter is taken.
func (r *epollReactor) applyLocked(fd int, st *fdState) error {
	ev := unix.EpollEvent{Fd: int32(fd)}
	if st.reader != api.InvalidHandle {
		ev.Events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if st.writer != api.InvalidHandle {
		ev.Events |= unix.EPOLLOUT
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll mod fd %d: %w", fd, err)
	}
	return nil
}

func (r *epollReactor) Poll(timeout time.Duration) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	var events [128]unix.EpollEvent
	n, err := unix.EpollWait(r.epfd, events[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("reactor: epoll wait: %w", err)
	}

	woken := 0
	for i := 0; i < n; i++ {
		ev := events[i]
		fd := int(ev.Fd)
		if fd == r.wakeFd {
			r.drainWaker()
			continue
		}

		var toWake [2]api.Handle
		var tickets [2]uint32
		wakeN := 0
		failure := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0

		r.mu.Lock()
		st, ok := r.fds[fd]
		if ok {
			if (ev.Events&unix.EPOLLIN != 0 || failure) && st.reader != api.InvalidHandle {
				toWake[wakeN] = st.reader
				tickets[wakeN] = st.readerTicket
				wakeN++
				st.reader = api.InvalidHandle
			}
			if (ev.Events&unix.EPOLLOUT != 0 || failure) && st.writer != api.InvalidHandle {
				toWake[wakeN] = st.writer
				tickets[wakeN] = st.writerTicket
				wakeN++
				st.writer = api.InvalidHandle
			}
			_ = r.applyLocked(fd, st)
		}
		r.mu.Unlock()

		for j := 0; j < wakeN; j++ {
			if r.up.Unpark(toWake[j], tickets[j], api.WakeNormal) {
				woken++
			}
		}
	}
	return woken, nil
}

func (r *epollReactor) Wake() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(r.wakeFd, buf[:])
}

func (r *epollReactor) drainWaker() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

func (r *epollReactor) Close() error {
	_ = unix.Close(r.wakeFd)
	return unix.Close(r.epfd)
}

var _ api.Reactor = (*epollReactor)(nil)
