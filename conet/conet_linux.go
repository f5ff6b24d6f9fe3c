//go:build linux

// File: conet/conet_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package conet

import (
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

const listenBacklog = 128

// Listener accepts TCP connections for coroutines of one runtime.
type Listener struct {
	rt     *sched.Runtime
	fd     int
	addr   *net.TCPAddr
	closed atomic.Bool
}

// Conn is a non-blocking TCP connection with blocking-style coroutine
// methods. At most one coroutine may be reading and one writing at a
// time.
type Conn struct {
	rt     *sched.Runtime
	fd     int
	closed atomic.Bool

	readTimeout  atomic.Int64 // ns, 0 = none
	writeTimeout atomic.Int64
}

// Listen opens a TCP listener on addr ("host:port") and registers it
// with the runtime's reactor.
func Listen(rt *sched.Runtime, addr string) (*Listener, error) {
	ta, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("conet: resolve %q: %w", addr, err)
	}
	fd, sa, err := newSocket(ta)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("conet: set SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("conet: bind %q: %w", addr, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("conet: listen %q: %w", addr, err)
	}
	if err := rt.Reactor().Add(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	bound, err := localAddr(fd)
	if err != nil {
		bound = ta
	}
	return &Listener{rt: rt, fd: fd, addr: bound}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() *net.TCPAddr { return l.addr }

// Accept suspends co until a connection arrives and returns it wired
// to the same runtime.
func (l *Listener) Accept(co *sched.Coro) (*Conn, error) {
	for {
		if l.closed.Load() {
			return nil, net.ErrClosed
		}
		nfd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == nil {
			return newConn(l.rt, nfd)
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return nil, fmt.Errorf("conet: accept: %w", err)
		}
		if err := waitReady(co, l.rt, l.fd, api.InterestRead, 0, &l.closed); err != nil {
			return nil, err
		}
	}
}

// Close shuts the listener down. A coroutine parked in Accept is woken
// and observes net.ErrClosed.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = l.rt.Reactor().Remove(l.fd)
	return unix.Close(l.fd)
}

// Dial connects to a TCP address, suspending co while the connect is
// in flight. timeout 0 means no limit.
func Dial(co *sched.Coro, rt *sched.Runtime, addr string, timeout time.Duration) (*Conn, error) {
	ta, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("conet: resolve %q: %w", addr, err)
	}
	fd, sa, err := newSocket(ta)
	if err != nil {
		return nil, err
	}
	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("conet: connect %q: %w", addr, err)
	}
	if err := rt.Reactor().Add(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	c := &Conn{rt: rt, fd: fd}
	if err == nil {
		return c, nil
	}

	// in progress: writable means the connect resolved
	if err := waitReady(co, rt, fd, api.InterestWrite, timeout, &c.closed); err != nil {
		_ = c.Close()
		return nil, err
	}
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("conet: connect %q: %w", addr, err)
	}
	if soerr != 0 {
		_ = c.Close()
		return nil, fmt.Errorf("conet: connect %q: %w", addr, unix.Errno(soerr))
	}
	return c, nil
}

func newConn(rt *sched.Runtime, fd int) (*Conn, error) {
	if err := rt.Reactor().Add(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &Conn{rt: rt, fd: fd}, nil
}

// SetReadTimeout bounds each subsequent Read; 0 removes the bound.
func (c *Conn) SetReadTimeout(d time.Duration) { c.readTimeout.Store(d.Nanoseconds()) }

// SetWriteTimeout bounds each subsequent Write; 0 removes the bound.
func (c *Conn) SetWriteTimeout(d time.Duration) { c.writeTimeout.Store(d.Nanoseconds()) }

// Read fills p with at least one byte, suspending co until the
// connection is readable. io.EOF reports an orderly peer shutdown.
func (c *Conn) Read(co *sched.Coro, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if c.closed.Load() {
			return 0, net.ErrClosed
		}
		n, err := unix.Read(c.fd, p)
		if err == nil {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return 0, fmt.Errorf("conet: read: %w", err)
		}
		d := time.Duration(c.readTimeout.Load())
		if err := waitReady(co, c.rt, c.fd, api.InterestRead, d, &c.closed); err != nil {
			return 0, err
		}
	}
}

// Write sends all of p, suspending co whenever the socket buffer
// fills. Returns the bytes written, which is len(p) unless err is
// non-nil.
func (c *Conn) Write(co *sched.Coro, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		if c.closed.Load() {
			return written, net.ErrClosed
		}
		n, err := unix.Write(c.fd, p[written:])
		if n > 0 {
			written += n
			continue
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return written, fmt.Errorf("conet: write: %w", err)
		}
		d := time.Duration(c.writeTimeout.Load())
		if err := waitReady(co, c.rt, c.fd, api.InterestWrite, d, &c.closed); err != nil {
			return written, err
		}
	}
	return written, nil
}

// Close tears the connection down. Coroutines parked on it are woken
// and observe net.ErrClosed. Idempotent.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.rt.Reactor().Remove(c.fd)
	return unix.Close(c.fd)
}

// LocalAddr returns the connection's local address.
func (c *Conn) LocalAddr() *net.TCPAddr {
	a, _ := localAddr(c.fd)
	return a
}

// RemoteAddr returns the peer's address.
func (c *Conn) RemoteAddr() *net.TCPAddr {
	sa, err := unix.Getpeername(c.fd)
	if err != nil {
		return nil
	}
	return sockaddrToTCP(sa)
}

// waitReady parks co until fd is ready for interest. Readiness is a
// hint, not a guarantee: callers retry the syscall, so a spurious
// wakeup costs one extra EAGAIN.
func waitReady(co *sched.Coro, rt *sched.Runtime, fd int, interest api.Interest, timeout time.Duration, closed *atomic.Bool) error {
	ticket := co.PrepareWait()
	if err := rt.Reactor().Arm(fd, interest, co.Handle(), ticket); err != nil {
		return err
	}
	var cause api.WakeCause
	if timeout > 0 {
		cause = co.ParkTimeout(api.BlockIO, timeout)
	} else {
		cause = co.Park(api.BlockIO)
	}
	switch cause {
	case api.WakeNormal:
		return nil
	case api.WakeTimeout:
		rt.Reactor().Disarm(fd, interest, co.Handle())
		return api.ErrTimedOut
	default:
		rt.Reactor().Disarm(fd, interest, co.Handle())
		if closed != nil && closed.Load() {
			return net.ErrClosed
		}
		return api.ErrCancelled
	}
}

func newSocket(ta *net.TCPAddr) (int, unix.Sockaddr, error) {
	family := unix.AF_INET
	ip := ta.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	if ip.To4() == nil {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, nil, fmt.Errorf("conet: socket: %w", err)
	}
	if family == unix.AF_INET {
		sa := &unix.SockaddrInet4{Port: ta.Port}
		copy(sa.Addr[:], ip.To4())
		return fd, sa, nil
	}
	sa := &unix.SockaddrInet6{Port: ta.Port}
	copy(sa.Addr[:], ip.To16())
	return fd, sa, nil
}

func localAddr(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToTCP(sa), nil
}

func sockaddrToTCP(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP(nil), a.Addr[:]...), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP(nil), a.Addr[:]...), Port: a.Port}
	default:
		return nil
	}
}
