// Package memsys is the slab allocator underneath a publish-subscribe
// DataSegment: a single shared-memory region sliced into fixed-size slots,
// handed out on loan and returned to a free-list once every borrower has
// released its reference.
package memsys

import (
	"sync"
	"sync/atomic"

	"github.com/shmbus/shmbus/cmn/debug"
	"github.com/shmbus/shmbus/sys"
)

// Segment is a DataSegment: slotCount fixed-size slots carved out of one
// SharedRegion, a free-list of unborrowed slots, and a per-slot borrow
// refcount so a Subscriber's loan and a pending delivery-queue entry can
// both hold the same slot alive until both release it.
type Segment struct {
	region   *sys.SharedRegion
	slotSize int
	nslots   int

	mu       sync.Mutex
	free     []uint32 // indices currently unborrowed and unqueued
	borrowed []atomic.Int32
}

// NewSegment creates a fresh backing region of nslots*slotSize bytes at fqn
// and returns a Segment with every slot on the free-list.
func NewSegment(fqn string, slotSize, nslots int) (*Segment, error) {
	debug.Assert(slotSize > 0 && nslots > 0)
	region, err := sys.CreateSharedRegion(fqn, slotSize*nslots)
	if err != nil {
		return nil, err
	}
	return newSegment(region, slotSize, nslots), nil
}

// OpenSegment maps an existing segment's region read-write. nslots <= 0
// means the caller does not know the writer's slot count in advance - it
// is derived from the mapped region's byte size instead, which is how a
// Subscriber in a different PubSubPortFactory attaches to a Publisher's
// segment it never allocated.
func OpenSegment(fqn string, slotSize, nslots int) (*Segment, error) {
	debug.Assert(slotSize > 0)
	region, err := sys.OpenSharedRegion(fqn)
	if err != nil {
		return nil, err
	}
	if nslots <= 0 {
		nslots = region.Size() / slotSize
	}
	return newSegment(region, slotSize, nslots), nil
}

func newSegment(region *sys.SharedRegion, slotSize, nslots int) *Segment {
	s := &Segment{
		region:   region,
		slotSize: slotSize,
		nslots:   nslots,
		free:     make([]uint32, nslots),
		borrowed: make([]atomic.Int32, nslots),
	}
	for i := range s.free {
		s.free[i] = uint32(i)
	}
	return s
}

func (s *Segment) SlotSize() int { return s.slotSize }
func (s *Segment) NumSlots() int { return s.nslots }

// Slot returns the byte range backing slot index i.
func (s *Segment) Slot(i uint32) []byte {
	off := int(i) * s.slotSize
	return s.region.Bytes()[off : off+s.slotSize]
}

// Loan reserves a free slot for a Publisher's in-progress Send and marks it
// borrowed once; ok is false if the segment is exhausted.
func (s *Segment) Loan() (idx uint32, ok bool) {
	s.mu.Lock()
	if len(s.free) == 0 {
		s.mu.Unlock()
		return 0, false
	}
	idx = s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.mu.Unlock()
	s.borrowed[idx].Store(1)
	return idx, true
}

// Retain increments slot i's borrow count, used by a Publisher's Send for
// each delivery-queue entry and each history slot that holds the slot on
// top of the Publisher's own loan.
func (s *Segment) Retain(i uint32) { s.borrowed[i].Add(1) }

// IsBorrowed reports whether slot i currently has any outstanding borrow.
// Overflow eviction in pubsub.Connection does not consult it.
func (s *Segment) IsBorrowed(i uint32) bool { return s.borrowed[i].Load() > 0 }

// Release drops one borrow on slot i, returning it to the free-list once the
// count reaches zero.
func (s *Segment) Release(i uint32) {
	if s.borrowed[i].Add(-1) > 0 {
		return
	}
	s.mu.Lock()
	s.free = append(s.free, i)
	s.mu.Unlock()
}

func (s *Segment) NumFree() int {
	s.mu.Lock()
	n := len(s.free)
	s.mu.Unlock()
	return n
}

func (s *Segment) Close() error  { return s.region.Close() }
func (s *Segment) Unlink() error { return s.region.Unlink() }
