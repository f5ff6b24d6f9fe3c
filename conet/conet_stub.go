//go:build !linux

// File: conet/conet_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package conet

import (
	"net"
	"time"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

// Listener is unavailable without the epoll reactor.
type Listener struct{}

// Conn is unavailable without the epoll reactor.
type Conn struct{}

func Listen(rt *sched.Runtime, addr string) (*Listener, error) {
	return nil, api.ErrNotSupported
}

func Dial(co *sched.Coro, rt *sched.Runtime, addr string, timeout time.Duration) (*Conn, error) {
	return nil, api.ErrNotSupported
}

func (l *Listener) Addr() *net.TCPAddr                   { return nil }
func (l *Listener) Accept(co *sched.Coro) (*Conn, error) { return nil, api.ErrNotSupported }
func (l *Listener) Close() error                         { return nil }

func (c *Conn) SetReadTimeout(d time.Duration)              {}
func (c *Conn) SetWriteTimeout(d time.Duration)             {}
func (c *Conn) Read(co *sched.Coro, p []byte) (int, error)  { return 0, api.ErrNotSupported }
func (c *Conn) Write(co *sched.Coro, p []byte) (int, error) { return 0, api.ErrNotSupported }
func (c *Conn) Close() error                                { return nil }
func (c *Conn) LocalAddr() *net.TCPAddr                     { return nil }
func (c *Conn) RemoteAddr() *net.TCPAddr                    { return nil }
