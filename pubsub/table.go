package pubsub

import (
	"sync"

	"github.com/shmbus/shmbus/memsys"
)

// ConnectionTable is where a Publisher and a Subscriber actually meet: the
// reference design addresses a connection's queues by a shared-memory
// name both sides can open independently, which this in-process
// equivalent models as a lookup keyed by the (publisher, subscriber) port
// pair so both UpdateConnections calls resolve to the very same
// Connection object rather than two independently constructed ones.
type ConnectionTable struct {
	mu    sync.Mutex
	conns map[connKey]*connEntry
}

// connEntry tracks a Connection plus whether ResolveCreator's chosen
// creator has supplied its own data/capacity yet. Whichever side calls
// GetOrCreate first builds the Connection so neither side blocks waiting
// for the other, but only the resolved creator's view of the segment
// chain is guaranteed to match what its own Loan/Release bookkeeping runs
// against, so that side's call still needs to win once it arrives.
type connEntry struct {
	conn    *Connection
	creator UniquePortId
	settled bool
}

type connKey struct {
	pub UniquePortId
	sub UniquePortId
}

func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{conns: make(map[connKey]*connEntry)}
}

// GetOrCreate returns the Connection for (pub, sub). self identifies which
// of the two is the caller. The first call for a pair creates the entry
// immediately so the other side is never blocked on it; if that first
// call came from the attacher (per ResolveCreator), the creator's own
// call - once it arrives - overwrites the entry's data segment chain with
// its own, since that is the one its bookkeeping is authoritative for.
func (t *ConnectionTable) GetOrCreate(self, pub, sub UniquePortId, capacity int, data *memsys.Resizable) *Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := connKey{pub, sub}
	creator, _ := ResolveCreator(pub, sub)
	e, ok := t.conns[k]
	if !ok {
		e = &connEntry{conn: NewConnection(string(sub), capacity, data), creator: creator, settled: self == creator}
		t.conns[k] = e
		return e.conn
	}
	if !e.settled && self == creator {
		e.conn.data = data
		e.settled = true
	}
	return e.conn
}

func (t *ConnectionTable) Drop(pub, sub UniquePortId) {
	t.mu.Lock()
	delete(t.conns, connKey{pub, sub})
	t.mu.Unlock()
}
