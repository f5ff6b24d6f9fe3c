// File: pool/stackpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed pooling of execution contexts. A Stack bundles a guarded
// scratch segment with a parked hosting goroutine; releasing a finished
// coroutine's Stack parks the goroutine and re-pools the segment, so
// steady-state stack memory stays bounded no matter how many coroutines
// have run.

package pool

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-co/api"
)

// Stack is one pooled execution context. At most one live coroutine
// owns a Stack at a time; the runtime enforces this by construction.
type Stack struct {
	seg   *segment
	class int
	runCh chan func()
	pos   int // bump offset, grows downward toward the guard page
}

func newStack(class int) (*Stack, error) {
	seg, err := newSegment(class)
	if err != nil {
		return nil, err
	}
	s := &Stack{
		seg:   seg,
		class: class,
		runCh: make(chan func()),
		pos:   class,
	}
	go s.host()
	return s, nil
}

// host is the hosting goroutine loop. One Invoke per coroutine
// execution; the function runs to completion including every suspension
// inside it.
func (s *Stack) host() {
	for f := range s.runCh {
		f()
	}
}

// Invoke hands f to the hosting goroutine. It does not wait for f.
func (s *Stack) Invoke(f func()) { s.runCh <- f }

// Size returns the usable segment size.
func (s *Stack) Size() int { return s.class }

// Bytes exposes the whole usable segment.
func (s *Stack) Bytes() []byte { return s.seg.bytes() }

// Alloc bump-allocates n bytes from the segment, growing downward.
// Exhausting the segment runs into the guard page: a fatal fault, not a
// catchable error. Allocations are valid until the owning coroutine
// completes.
func (s *Stack) Alloc(n int) []byte {
	n = (n + 7) &^ 7
	s.pos -= n
	if s.pos < 0 {
		s.seg.overflow() // does not return
	}
	return s.seg.bytes()[s.pos : s.pos+n]
}

// Remaining returns the unallocated segment bytes.
func (s *Stack) Remaining() int { return s.pos }

func (s *Stack) reset() { s.pos = s.class }

func (s *Stack) destroy() {
	close(s.runCh)
	_ = s.seg.free()
}

// StackPool allocates and reclaims Stacks by size class. Classes are
// powers of two starting at one page.
type StackPool struct {
	mu          sync.Mutex
	classes     map[int][]*Stack
	maxPerClass int
	closed      bool

	totalAlloc atomic.Int64
	totalFree  atomic.Int64
	inUse      atomic.Int64
}

// DefaultMaxPerClass bounds pooled contexts per size class.
const DefaultMaxPerClass = 64

// NewStackPool creates a pool keeping at most maxPerClass released
// Stacks per size class; 0 means DefaultMaxPerClass.
func NewStackPool(maxPerClass int) *StackPool {
	if maxPerClass <= 0 {
		maxPerClass = DefaultMaxPerClass
	}
	return &StackPool{
		classes:     make(map[int][]*Stack),
		maxPerClass: maxPerClass,
	}
}

// ClassFor rounds size up to the pool's allocation class.
func ClassFor(size int) int {
	page := os.Getpagesize()
	if size < page {
		size = page
	}
	class := page
	for class < size {
		class <<= 1
	}
	return class
}

// Acquire returns a Stack of at least the requested size, preferring a
// pooled context of the matching class over fresh allocation.
func (p *StackPool) Acquire(size int) (*Stack, error) {
	class := ClassFor(size)

	p.mu.Lock()
	if free := p.classes[class]; len(free) > 0 {
		s := free[len(free)-1]
		p.classes[class] = free[:len(free)-1]
		p.mu.Unlock()
		p.inUse.Add(1)
		return s, nil
	}
	p.mu.Unlock()

	s, err := newStack(class)
	if err != nil {
		return nil, err
	}
	p.totalAlloc.Add(1)
	p.inUse.Add(1)
	return s, nil
}

// Release returns a Stack to the pool once no coroutine references it.
// Over-capacity Stacks are destroyed instead of pooled.
func (p *StackPool) Release(s *Stack) {
	s.reset()
	p.inUse.Add(-1)

	p.mu.Lock()
	if !p.closed && len(p.classes[s.class]) < p.maxPerClass {
		p.classes[s.class] = append(p.classes[s.class], s)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	s.destroy()
	p.totalFree.Add(1)
}

// Stats returns allocation accounting, overall and per class.
func (p *StackPool) Stats() api.StackPoolStats {
	p.mu.Lock()
	per := make(map[int]int64, len(p.classes))
	var pooled int64
	for class, free := range p.classes {
		per[class] = int64(len(free))
		pooled += int64(len(free))
	}
	p.mu.Unlock()
	return api.StackPoolStats{
		TotalAlloc: p.totalAlloc.Load(),
		TotalFree:  p.totalFree.Load(),
		InUse:      p.inUse.Load(),
		Pooled:     pooled,
		PerClass:   per,
	}
}

// Close destroys every pooled Stack. In-use Stacks are destroyed when
// released.
func (p *StackPool) Close() {
	p.mu.Lock()
	classes := p.classes
	p.classes = make(map[int][]*Stack)
	p.closed = true
	p.mu.Unlock()

	for _, free := range classes {
		for _, s := range free {
			s.destroy()
			p.totalFree.Add(1)
		}
	}
}
