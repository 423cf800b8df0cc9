package waitset

import (
	"container/heap"
	"time"
)

// timerEntry is one Tick attachment (Deadline attachments are tracked by
// the WaitSet, not here). A nonzero interval re-arms the entry after it
// fires; an entry with a zero interval fires once.
type timerEntry struct {
	id       uint64
	next     time.Time
	interval time.Duration
	cb       func()
	index    int // heap.Interface bookkeeping
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].next.Before(h[j].next) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timers wraps a timerHeap with the operations a WaitSet actually needs:
// scheduling the next wakeup, firing everything due, and removing an
// attachment that was detached before it ever fired.
type timers struct {
	h timerHeap
}

func (t *timers) add(id uint64, delay, interval time.Duration, cb func()) {
	heap.Push(&t.h, &timerEntry{id: id, next: time.Now().Add(delay), interval: interval, cb: cb})
}

func (t *timers) remove(id uint64) {
	for i, e := range t.h {
		if e.id == id {
			heap.Remove(&t.h, i)
			return
		}
	}
}

// nextWait returns how long until the earliest timer is due; ok is false
// if there are no timers at all.
func (t *timers) nextWait() (d time.Duration, ok bool) {
	if len(t.h) == 0 {
		return 0, false
	}
	d = time.Until(t.h[0].next)
	if d < 0 {
		d = 0
	}
	return d, true
}

// fireDue invokes every timer whose deadline has passed, re-scheduling
// entries with interval > 0 and dropping zero-interval ones.
// Returns the number fired.
func (t *timers) fireDue() int {
	now := time.Now()
	fired := 0
	for len(t.h) > 0 && !t.h[0].next.After(now) {
		e := heap.Pop(&t.h).(*timerEntry)
		e.cb()
		fired++
		if e.interval > 0 {
			e.next = now.Add(e.interval)
			heap.Push(&t.h, e)
		}
	}
	return fired
}
