package pubsub

import (
	"sync"

	"github.com/shmbus/shmbus/memsys"
)

// Subscriber is the receiving half of a publish-subscribe service: it
// holds one Connection per connected Publisher and surfaces the oldest
// undelivered Sample from whichever connection has one.
type Subscriber struct {
	PortId UniquePortId

	mu    sync.Mutex
	conns map[UniquePortId]*subConn
}

type subConn struct {
	conn *Connection
	data *memsys.Resizable
}

func NewSubscriber(portID UniquePortId) *Subscriber {
	return &Subscriber{PortId: portID, conns: make(map[UniquePortId]*subConn)}
}

// UpdateConnections reconciles against the current publisher list a
// DynamicConfig reports, fetching each Connection from the same table the
// publishing side uses so both ends share one set of queues. dataFor
// resolves which segment chain a given publisher's slots live in - every
// publisher in a service owns its own chain, so there is no single
// Resizable a Subscriber could assume for all of them.
func (s *Subscriber) UpdateConnections(table *ConnectionTable, publisherPortIds []UniquePortId, bufferCapacity int, dataFor func(UniquePortId) *memsys.Resizable) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[UniquePortId]struct{}, len(publisherPortIds))
	for _, id := range publisherPortIds {
		want[id] = struct{}{}
		if _, ok := s.conns[id]; ok {
			continue
		}
		data := dataFor(id)
		if data == nil {
			continue
		}
		conn := table.GetOrCreate(s.PortId, id, s.PortId, bufferCapacity, data)
		s.conns[id] = &subConn{conn: conn, data: data}
	}
	for id, sc := range s.conns {
		if _, ok := want[id]; ok {
			continue
		}
		sc.conn.drainAll(sc.data)
		table.Drop(id, s.PortId)
		delete(s.conns, id)
	}
}

// Receive pops the oldest pending sample of the first connection, in Go map
// iteration order, that has one. No round-robin position is kept across
// calls, so which Publisher is served first is unspecified; within one
// connection, FIFO order is exact.
func (s *Subscriber) Receive() (*Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sc := range s.conns {
		gen, idx, ok := sc.conn.PopDelivery()
		if !ok {
			continue
		}
		raw := sc.data.Slot(gen, idx)
		sample := &Sample{
			Header:  decodeHeader(raw[:HeaderSize]),
			Payload: raw[HeaderSize:],
			raw:     raw,
			gen:     gen,
			slot:    idx,
			release: s.releaserFor(id),
		}
		return sample, true
	}
	return nil, false
}

// releaserFor binds a Sample's Release to the connection it came from, so
// the slot is returned to that Publisher's free-list via the return
// queue rather than dropped straight to the segment chain - the Publisher
// still owns eviction/eventual release bookkeeping for its own segment.
func (s *Subscriber) releaserFor(publisherPortId UniquePortId) func(gen int, idx uint32) {
	return func(gen int, idx uint32) {
		s.mu.Lock()
		sc, ok := s.conns[publisherPortId]
		s.mu.Unlock()
		if !ok {
			return
		}
		if !sc.conn.Return(gen, idx) {
			// return queue full: release directly rather than leak the slot
			// forever, at the cost of the Publisher seeing it reclaimed late.
			sc.data.Release(gen, idx)
		}
	}
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sc := range s.conns {
		sc.conn.drainAll(sc.data)
		delete(s.conns, id)
	}
	return nil
}
