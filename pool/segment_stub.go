//go:build !linux

// File: pool/segment_stub.go
// Author: momentics <momentics@gmail.com>
//
// Fallback stack segments for platforms without the mmap path. No guard
// page: overflow detection degrades to the Go runtime's own checks.

package pool

import (
	"fmt"
	"os"
)

type segment struct {
	usable []byte
}

func newSegment(size int) (*segment, error) {
	return &segment{usable: make([]byte, size)}, nil
}

func (s *segment) bytes() []byte { return s.usable }

func (s *segment) free() error {
	s.usable = nil
	return nil
}

// overflow terminates the process. Without a guard page the fault is
// synthesized, matching the Linux behavior.
func (s *segment) overflow() {
	fmt.Fprintln(os.Stderr, "pool: stack segment overflow")
	os.Exit(2)
}

// Guarded reports whether segments carry a real guard page.
func Guarded() bool { return false }
