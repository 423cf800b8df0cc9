package pubsub

import (
	"github.com/pkg/errors"

	"github.com/shmbus/shmbus/lfq"
	"github.com/shmbus/shmbus/memsys"
)

// Connection is a per-(Publisher, Subscriber) channel: a delivery queue
// (sender to receiver) and a return queue (receiver to sender), both
// carrying packed (generation, slot index) pairs into the Publisher's data
// segment chain. Each queue is bounded by the capacity passed to
// NewConnection; portfactory passes the subscriber buffer size, with no
// loan budget added.
//
// The reference design keeps these queues in a shared-memory region so any
// process can reach them; this implementation keeps them in the
// publishing process's memory instead (lfq.SPSC's backing array is a plain
// Go slice), which is sufficient for same-process and forked-child
// topologies but stops short of true cross-process zero-copy delivery. See
// the module's design notes for the shared-memory variant this would
// adapt into.
type Connection struct {
	SubscriberPortId string
	delivery         *lfq.SPSC
	ret              *lfq.SPSC
	data             *memsys.Resizable
}

func NewConnection(subscriberPortId string, capacity int, data *memsys.Resizable) *Connection {
	return &Connection{
		SubscriberPortId: subscriberPortId,
		delivery:         lfq.NewSPSC(capacity),
		ret:              lfq.NewSPSC(capacity),
		data:             data,
	}
}

var ErrCapacity = errors.New("pubsub: connection is at capacity and no evictable slot was found")

func pack(gen int, idx uint32) uint64  { return uint64(uint32(gen))<<32 | uint64(idx) }
func unpack(v uint64) (gen int, idx uint32) { return int(uint32(v >> 32)), uint32(v) }

// Deliver pushes (gen, idx) onto the delivery queue, evicting the oldest
// pending entry on overflow before giving up. Anything still sitting in
// either queue has not been handed to a Receive caller yet - once popped,
// ownership leaves the queue entirely - so the oldest queued entry is
// always safe to drop without risking a live borrow.
func (c *Connection) Deliver(gen int, idx uint32) error {
	v := pack(gen, idx)
	if c.delivery.Push(v) {
		return nil
	}
	if c.evictOldest() {
		if c.delivery.Push(v) {
			return nil
		}
	}
	return errors.WithStack(ErrCapacity)
}

// evictOldest drops the single oldest entry across the return queue then
// the delivery queue, releasing its slot back to the segment chain.
// Returns false if both queues are empty.
func (c *Connection) evictOldest() bool {
	for _, q := range []*lfq.SPSC{c.ret, c.delivery} {
		v, ok := q.Pop()
		if !ok {
			continue
		}
		gen, idx := unpack(v)
		c.data.Release(gen, idx)
		return true
	}
	return false
}

// PopDelivery is the Subscriber side of Receive: pop the oldest pending
// sample slot, if any.
func (c *Connection) PopDelivery() (gen int, idx uint32, ok bool) {
	v, ok := c.delivery.Pop()
	gen, idx = unpack(v)
	return gen, idx, ok
}

// Return is the Subscriber side of Release: hand the slot back so the
// Publisher's next loan can reclaim it.
func (c *Connection) Return(gen int, idx uint32) bool {
	return c.ret.Push(pack(gen, idx))
}

// DrainReturns is the Publisher side of slot reclamation: pop every
// returned slot and release it back to the segment chain's free-list.
func (c *Connection) DrainReturns() {
	for {
		v, ok := c.ret.Pop()
		if !ok {
			return
		}
		gen, idx := unpack(v)
		c.data.Release(gen, idx)
	}
}

// drainAll releases every slot still queued on either side of a
// connection that is being torn down, e.g. because its Subscriber
// deregistered from the service.
func (c *Connection) drainAll(data *memsys.Resizable) {
	for _, q := range []*lfq.SPSC{c.delivery, c.ret} {
		for {
			v, ok := q.Pop()
			if !ok {
				break
			}
			gen, idx := unpack(v)
			data.Release(gen, idx)
		}
	}
}
