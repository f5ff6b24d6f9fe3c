//go:build linux

// Copyright 2026 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// conet_linux_test.go: Loopback integration of the blocking-style
// socket API against a live runtime.
package conet

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-co/api"
	"github.com/momentics/hioload-co/sched"
)

func newTestRuntime(t *testing.T, workers int) *sched.Runtime {
	t.Helper()
	cfg := sched.DefaultConfig()
	cfg.Workers = workers
	rt, err := sched.New(&cfg)
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return rt
}

func readFull(co *sched.Coro, c *Conn, p []byte) error {
	got := 0
	for got < len(p) {
		n, err := c.Read(co, p[got:])
		if err != nil {
			return err
		}
		got += n
	}
	return nil
}

func TestConn_LoopbackEcho(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ln, err := Listen(rt, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		c, err := ln.Accept(co)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		buf := make([]byte, 4096)
		for {
			n, err := c.Read(co, buf)
			if err == io.EOF {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if _, err := c.Write(co, buf[:n]); err != nil {
				return nil, err
			}
		}
	})
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("hioload-co echo "), 1024)
	cli, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		c, err := Dial(co, rt, ln.Addr().String(), 5*time.Second)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		if _, err := c.Write(co, payload); err != nil {
			return nil, err
		}
		back := make([]byte, len(payload))
		if err := readFull(co, c, back); err != nil {
			return nil, err
		}
		return back, nil
	})
	require.NoError(t, err)

	back, err := cli.WaitTimeout(30 * time.Second)
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, back.([]byte)))
	_, err = srv.WaitTimeout(30 * time.Second)
	require.NoError(t, err)
}

func TestConn_ManyConcurrentEchoes(t *testing.T) {
	rt := newTestRuntime(t, 4)
	ln, err := Listen(rt, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	const conns = 16
	_, err = rt.Spawn(func(co *sched.Coro) (any, error) {
		for i := 0; i < conns; i++ {
			c, err := ln.Accept(co)
			if err != nil {
				return nil, err
			}
			if _, err := co.Spawn(func(co *sched.Coro) (any, error) {
				defer c.Close()
				buf := make([]byte, 256)
				n, err := c.Read(co, buf)
				if err != nil {
					return nil, err
				}
				_, err = c.Write(co, buf[:n])
				return nil, err
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	require.NoError(t, err)

	clients := make([]*sched.JoinHandle, conns)
	for i := 0; i < conns; i++ {
		msg := []byte{byte(i), byte(i + 1), byte(i + 2)}
		jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
			c, err := Dial(co, rt, ln.Addr().String(), 5*time.Second)
			if err != nil {
				return nil, err
			}
			defer c.Close()
			if _, err := c.Write(co, msg); err != nil {
				return nil, err
			}
			back := make([]byte, len(msg))
			if err := readFull(co, c, back); err != nil {
				return nil, err
			}
			if !bytes.Equal(msg, back) {
				return nil, errors.New("echo mismatch")
			}
			return nil, nil
		})
		require.NoError(t, err)
		clients[i] = jh
	}
	for _, jh := range clients {
		_, err := jh.WaitTimeout(30 * time.Second)
		require.NoError(t, err)
	}
}

func TestConn_ReadTimeout(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ln, err := Listen(rt, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = rt.Spawn(func(co *sched.Coro) (any, error) {
		c, err := ln.Accept(co)
		if err != nil {
			return nil, err
		}
		// hold the connection open without writing
		defer c.Close()
		return nil, co.Sleep(time.Second)
	})
	require.NoError(t, err)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		c, err := Dial(co, rt, ln.Addr().String(), 5*time.Second)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		c.SetReadTimeout(30 * time.Millisecond)
		_, err = c.Read(co, make([]byte, 16))
		return nil, err
	})
	require.NoError(t, err)
	_, err = jh.WaitTimeout(10 * time.Second)
	require.ErrorIs(t, err, api.ErrTimedOut)
}

func TestConn_CloseWakesBlockedReader(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ln, err := Listen(rt, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan *Conn, 1)
	_, err = rt.Spawn(func(co *sched.Coro) (any, error) {
		c, err := ln.Accept(co)
		if err != nil {
			return nil, err
		}
		accepted <- c
		return nil, nil
	})
	require.NoError(t, err)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		c, err := Dial(co, rt, ln.Addr().String(), 5*time.Second)
		if err != nil {
			return nil, err
		}
		if _, err := co.Spawn(func(co *sched.Coro) (any, error) {
			if err := co.Sleep(20 * time.Millisecond); err != nil {
				return nil, err
			}
			return nil, c.Close()
		}); err != nil {
			return nil, err
		}
		_, err = c.Read(co, make([]byte, 16))
		return nil, err
	})
	require.NoError(t, err)
	_, err = jh.WaitTimeout(10 * time.Second)
	require.ErrorIs(t, err, net.ErrClosed)
	(<-accepted).Close()
}

func TestListener_CloseWakesAccept(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ln, err := Listen(rt, "127.0.0.1:0")
	require.NoError(t, err)

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		_, err := ln.Accept(co)
		return nil, err
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ln.Close())
	_, err = jh.WaitTimeout(10 * time.Second)
	require.ErrorIs(t, err, net.ErrClosed)
}

func TestDial_ConnectionRefused(t *testing.T) {
	rt := newTestRuntime(t, 1)
	// bind-then-close to get a port with no listener
	ln, err := Listen(rt, "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	jh, err := rt.Spawn(func(co *sched.Coro) (any, error) {
		_, err := Dial(co, rt, addr, 2*time.Second)
		return nil, err
	})
	require.NoError(t, err)
	_, err = jh.WaitTimeout(10 * time.Second)
	require.Error(t, err)
}
