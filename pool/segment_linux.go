//go:build linux

// File: pool/segment_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Guarded stack segments on Linux: one anonymous private mapping per
// segment with the lowest page remapped PROT_NONE. Any access below the
// usable region hits the guard page and faults the process. That is a
// deliberate resource-limit choice: stack overflow is fatal, never a
// recoverable error.

package pool

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type segment struct {
	raw    []byte // full mapping including guard page
	usable []byte // raw minus the guard page
}

func newSegment(size int) (*segment, error) {
	page := os.Getpagesize()
	raw, err := unix.Mmap(-1, 0, size+page,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("pool: mmap stack segment: %w", err)
	}
	if err := unix.Mprotect(raw[:page], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(raw)
		return nil, fmt.Errorf("pool: mprotect guard page: %w", err)
	}
	return &segment{raw: raw, usable: raw[page:]}, nil
}

func (s *segment) bytes() []byte { return s.usable }

func (s *segment) free() error {
	if s.raw == nil {
		return nil
	}
	err := unix.Munmap(s.raw)
	s.raw, s.usable = nil, nil
	return err
}

// overflow deliberately touches the guard page. The resulting SIGSEGV
// terminates the process; stack overflow is not recoverable.
func (s *segment) overflow() {
	_ = s.raw[0]
	os.Exit(2) // not reached
}

// Guarded reports whether segments carry a real guard page.
func Guarded() bool { return true }
