// Package lfq holds the lock-free/wait-free primitives the rest of the
// core builds connections out of: a single-producer/single-consumer ring
// for the delivery and return paths between one Publisher and one
// Subscriber, and a fixed-capacity, mutex-guarded registration set
// (RegSet).
package lfq

import (
	"sync/atomic"

	"github.com/shmbus/shmbus/cmn/debug"
)

// SPSC is a bounded single-producer/single-consumer ring buffer of uint64
// slot indices. A Connection uses one for the "delivery" direction (indices
// of samples handed from Publisher to Subscriber) and one for "return"
// (indices handed back once the Subscriber drops its loan), matching a
// publish-subscribe channel's two independent flows.
type SPSC struct {
	mask uint64
	buf  []uint64
	_    [56]byte // pad to keep head/tail off the same cache line as buf's header
	head atomic.Uint64
	_    [56]byte
	tail atomic.Uint64
}

// NewSPSC allocates a ring of the given capacity, rounded up to the next
// power of two so index wraparound reduces to a mask.
func NewSPSC(capacity int) *SPSC {
	debug.Assert(capacity > 0)
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &SPSC{mask: uint64(n - 1), buf: make([]uint64, n)}
}

// Push enqueues v; ok is false if the ring is full. Only the single producer
// goroutine may call Push.
func (q *SPSC) Push(v uint64) bool {
	head := q.head.Load()
	tail := q.tail.Load()
	if head-tail >= uint64(len(q.buf)) {
		return false
	}
	q.buf[head&q.mask] = v
	q.head.Store(head + 1)
	return true
}

// Pop dequeues the oldest value; ok is false if the ring is empty. Only the
// single consumer goroutine may call Pop.
func (q *SPSC) Pop() (v uint64, ok bool) {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail == head {
		return 0, false
	}
	v = q.buf[tail&q.mask]
	q.tail.Store(tail + 1)
	return v, true
}

func (q *SPSC) Len() int {
	return int(q.head.Load() - q.tail.Load())
}

func (q *SPSC) Cap() int { return len(q.buf) }
