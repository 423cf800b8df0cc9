package pubsub

import (
	"sync"

	"github.com/shmbus/shmbus/cmn/nlog"
	"github.com/shmbus/shmbus/memsys"
	"github.com/shmbus/shmbus/metrics"
)

// UniquePortId is the lexicographically comparable text identity a
// Publisher or Subscriber registers itself under in a service's
// DynamicConfig; connection-creation races between two ports resolve by
// comparing these strings, not by arrival order.
type UniquePortId string

type historyEntry struct {
	gen int
	idx uint32
}

// Publisher is the sending half of a publish-subscribe service: it loans
// slots from its data segment chain, stamps a Header, and fans each sent
// sample out to every currently-connected Subscriber.
type Publisher struct {
	PortId UniquePortId

	data        *memsys.Resizable
	historySize int

	mu      sync.Mutex
	conns   map[UniquePortId]*Connection
	history []historyEntry
	seq     uint64
}

func NewPublisher(portID UniquePortId, data *memsys.Resizable, historySize int) *Publisher {
	return &Publisher{
		PortId:      portID,
		data:        data,
		historySize: historySize,
		conns:       make(map[UniquePortId]*Connection),
	}
}

// Loan reserves one payload slot for the caller to fill in before Send.
// It first reclaims every slot a Subscriber has returned since the last
// call, so a publisher whose subscribers promptly Release every sample
// does not exhaust its segment after the initial slot pool.
func (p *Publisher) Loan() (*Sample, error) {
	p.ReclaimReturns()
	gen, idx, slot, err := p.data.Loan()
	if err != nil {
		return nil, err
	}
	return &Sample{
		Payload: slot[HeaderSize:],
		raw:     slot,
		gen:     gen,
		slot:    idx,
		release: p.data.Release,
	}, nil
}

// Send stamps the sample's header and delivers it to every connected
// Subscriber, retaining one extra borrow per delivery plus one per history
// slot before dropping the Publisher's own loan reference. On a full
// connection, Deliver evicts that connection's oldest queued entry; if the
// entry is still rejected, that one delivery is dropped and logged as a
// warning - overflow on a single lagging subscriber must not block or fail
// the rest of the send.
func (p *Publisher) Send(s *Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	s.Header = Header{PublisherPortId: string(p.PortId), SequenceNumber: p.seq}
	encodeHeader(s.Header, s.raw[:HeaderSize])

	for id, c := range p.conns {
		p.data.Retain(s.gen, s.slot)
		if err := c.Deliver(s.gen, s.slot); err != nil {
			p.data.Release(s.gen, s.slot)
			nlog.Warningf("pubsub: dropping sample for %s: %v", id, err)
		}
	}

	p.pushHistory(s.gen, s.slot)
	s.Release()
	metrics.SamplesSentTotal.Inc()
	return nil
}

// pushHistory retains one additional borrow for the newest sample and
// releases the oldest once the ring exceeds historySize, implementing
// replay-on-connect up to the configured depth.
func (p *Publisher) pushHistory(gen int, idx uint32) {
	if p.historySize == 0 {
		return
	}
	p.data.Retain(gen, idx)
	p.history = append(p.history, historyEntry{gen, idx})
	if len(p.history) > p.historySize {
		old := p.history[0]
		p.history = p.history[1:]
		p.data.Release(old.gen, old.idx)
	}
}

// UpdateConnections reconciles the Publisher's connection set against the
// current subscriber list a DynamicConfig reports: new ports get a
// Connection from table (seeded with history replay), departed ports have
// their Connection torn down and any slots it still held released.
func (p *Publisher) UpdateConnections(table *ConnectionTable, subscriberPortIds []UniquePortId, bufferCapacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	want := make(map[UniquePortId]struct{}, len(subscriberPortIds))
	for _, id := range subscriberPortIds {
		want[id] = struct{}{}
		if _, ok := p.conns[id]; ok {
			continue
		}
		c := table.GetOrCreate(p.PortId, p.PortId, id, bufferCapacity, p.data)
		for _, h := range p.history {
			p.data.Retain(h.gen, h.idx)
			if err := c.Deliver(h.gen, h.idx); err != nil {
				p.data.Release(h.gen, h.idx)
			}
		}
		p.conns[id] = c
	}
	for id, c := range p.conns {
		if _, ok := want[id]; ok {
			continue
		}
		c.drainAll(p.data)
		table.Drop(p.PortId, id)
		delete(p.conns, id)
	}
}

// ReclaimReturns releases every slot every connected Subscriber has handed
// back since the last call; a Publisher calls this on its own cadence
// (e.g. before each Loan) rather than on every single Release.
func (p *Publisher) ReclaimReturns() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		c.DrainReturns()
	}
}

func (p *Publisher) Close() error {
	return p.data.Close()
}
