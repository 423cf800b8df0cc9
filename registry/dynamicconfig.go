package registry

import (
	"sync/atomic"
	"unsafe"

	"github.com/shmbus/shmbus/cmn/debug"
	"github.com/shmbus/shmbus/sys"
)

const (
	portIDWidth = 24 // fixed-width text form of a UniquePortId
	nodeIDWidth = 16 // fixed-width text form of a NodeId
	slotRecRaw  = 4 /*generation*/ + 1 /*occupied*/ + portIDWidth + nodeIDWidth
	// slotRecSize is padded to a multiple of 4 so the leading generation
	// word of every slot lands on a 4-byte boundary for atomic access.
	slotRecSize = (slotRecRaw + 3) &^ 3
)

// PortKind selects which registration table within a DynamicConfig a port
// belongs to.
type PortKind uint8

const (
	KindPublisher PortKind = iota
	KindSubscriber
	KindNotifier
	KindListener
	numKinds
)

// DynamicConfig is the mutable, shared-memory control block every
// participant of a service opens: fixed-capacity slot tables for each port
// kind plus the set of registered Nodes. Each slot is a tiny seqlock record
// (generation counter + payload) so a reader never observes a torn write
// without needing a process-shared mutex, which Go does not offer over
// anonymous shared memory.
type DynamicConfig struct {
	region   *sys.SharedRegion
	capacity [numKinds]int
	nodeCap  int
	offsets  [numKinds]int
	nodesOff int
}

// dynamicConfigSize computes the byte size of a region able to hold the
// given per-kind capacities plus a node table of nodeCap entries.
func dynamicConfigSize(capacity [numKinds]int, nodeCap int) int {
	total := 0
	for _, c := range capacity {
		total += c * slotRecSize
	}
	total += nodeCap * slotRecSize
	return total
}

func CreateDynamicConfig(fqn string, capacity [numKinds]int, nodeCap int) (*DynamicConfig, error) {
	size := dynamicConfigSize(capacity, nodeCap)
	region, err := sys.CreateSharedRegion(fqn, size)
	if err != nil {
		return nil, err
	}
	return newDynamicConfig(region, capacity, nodeCap), nil
}

func OpenDynamicConfig(fqn string, capacity [numKinds]int, nodeCap int) (*DynamicConfig, error) {
	region, err := sys.OpenSharedRegion(fqn)
	if err != nil {
		return nil, err
	}
	return newDynamicConfig(region, capacity, nodeCap), nil
}

func newDynamicConfig(region *sys.SharedRegion, capacity [numKinds]int, nodeCap int) *DynamicConfig {
	dc := &DynamicConfig{region: region, capacity: capacity, nodeCap: nodeCap}
	off := 0
	for k := range capacity {
		dc.offsets[k] = off
		off += capacity[k] * slotRecSize
	}
	dc.nodesOff = off
	return dc
}

func (dc *DynamicConfig) slot(base []byte, idx int) []byte {
	off := idx * slotRecSize
	return base[off : off+slotRecSize]
}

func (dc *DynamicConfig) table(kind PortKind) []byte {
	off := dc.offsets[kind]
	return dc.region.Bytes()[off : off+dc.capacity[kind]*slotRecSize]
}

func (dc *DynamicConfig) nodeTable() []byte {
	return dc.region.Bytes()[dc.nodesOff : dc.nodesOff+dc.nodeCap*slotRecSize]
}

// seqWrite performs a seqlock write of portID/nodeID into rec: bump
// generation to odd, write payload, bump to even. A concurrent reader that
// observes an odd generation retries.
func seqWrite(rec []byte, occupied bool, portID, nodeID string) {
	gen := genPtr(rec)
	g := atomic.LoadUint32(gen)
	atomic.StoreUint32(gen, g+1) // odd: write in progress
	if occupied {
		rec[4] = 1
	} else {
		rec[4] = 0
	}
	copy(rec[5:5+portIDWidth], padRight(portID, portIDWidth))
	copy(rec[5+portIDWidth:5+portIDWidth+nodeIDWidth], padRight(nodeID, nodeIDWidth))
	atomic.StoreUint32(gen, g+2) // even: write complete
}

func seqRead(rec []byte) (occupied bool, portID, nodeID string) {
	gen := genPtr(rec)
	for {
		g1 := atomic.LoadUint32(gen)
		if g1%2 == 1 {
			continue
		}
		occ := rec[4] == 1
		pid := trimPad(rec[5 : 5+portIDWidth])
		nid := trimPad(rec[5+portIDWidth : 5+portIDWidth+nodeIDWidth])
		g2 := atomic.LoadUint32(gen)
		if g1 == g2 {
			return occ, pid, nid
		}
	}
}

func genPtr(rec []byte) *uint32 {
	return (*uint32)(unsafe.Pointer(&rec[0]))
}

func padRight(s string, width int) []byte {
	b := make([]byte, width)
	copy(b, s)
	return b
}

func trimPad(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return string(b[:i])
}

// Register finds the first free slot in kind's table and writes portID/nodeID
// into it; ok is false if the table is full. Registration is serialized by
// the caller's open_or_create file lock, so there is at most one writer at a
// time; the seqlock protects concurrent lock-free readers.
func (dc *DynamicConfig) Register(kind PortKind, portID, nodeID string) bool {
	debug.Assert(len(portID) <= portIDWidth && len(nodeID) <= nodeIDWidth)
	table := dc.table(kind)
	n := dc.capacity[kind]
	for i := 0; i < n; i++ {
		rec := dc.slot(table, i)
		occ, _, _ := seqRead(rec)
		if !occ {
			seqWrite(rec, true, portID, nodeID)
			return true
		}
	}
	return false
}

func (dc *DynamicConfig) Unregister(kind PortKind, portID string) {
	table := dc.table(kind)
	n := dc.capacity[kind]
	for i := 0; i < n; i++ {
		rec := dc.slot(table, i)
		occ, pid, _ := seqRead(rec)
		if occ && pid == portID {
			seqWrite(rec, false, "", "")
			return
		}
	}
}

// Entries returns a snapshot of every occupied slot's (portID, nodeID) pair.
func (dc *DynamicConfig) Entries(kind PortKind) (ports, nodes []string) {
	table := dc.table(kind)
	n := dc.capacity[kind]
	for i := 0; i < n; i++ {
		occ, pid, nid := seqRead(dc.slot(table, i))
		if occ {
			ports = append(ports, pid)
			nodes = append(nodes, nid)
		}
	}
	return
}

func (dc *DynamicConfig) RegisterNode(nodeID string) bool {
	table := dc.nodeTable()
	for i := 0; i < dc.nodeCap; i++ {
		rec := dc.slot(table, i)
		occ, _, _ := seqRead(rec)
		if !occ {
			seqWrite(rec, true, "", nodeID)
			return true
		}
	}
	return false
}

func (dc *DynamicConfig) UnregisterNode(nodeID string) {
	table := dc.nodeTable()
	for i := 0; i < dc.nodeCap; i++ {
		rec := dc.slot(table, i)
		occ, _, nid := seqRead(rec)
		if occ && nid == nodeID {
			seqWrite(rec, false, "", "")
			return
		}
	}
}

func (dc *DynamicConfig) Nodes() (nodes []string) {
	table := dc.nodeTable()
	for i := 0; i < dc.nodeCap; i++ {
		occ, _, nid := seqRead(dc.slot(table, i))
		if occ {
			nodes = append(nodes, nid)
		}
	}
	return
}

func (dc *DynamicConfig) Close() error  { return dc.region.Close() }
func (dc *DynamicConfig) Unlink() error { return dc.region.Unlink() }
