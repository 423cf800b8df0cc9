package portfactory

import (
	"sync"

	"github.com/shmbus/shmbus/memsys"
	"github.com/shmbus/shmbus/pubsub"
	"github.com/shmbus/shmbus/registry"
)

// Two independently constructed PubSubPortFactory (or EventPortFactory)
// values can both be opened against the very same service - two separate
// OpenOrCreate calls in this process standing in for two separate
// processes attached to the same registry root. For either side to
// resolve the other's Connection, data segment, or event carrier, the
// state below is shared by service rather than owned per factory
// instance. It is keyed by serviceStateKey rather than by ServiceId alone,
// since ComputeServiceId hashes only the service's name/pattern/types -
// two different registry roots can and do produce the same id for a
// service of the same name.
var (
	stateMu        sync.Mutex
	connTables     = map[string]*pubsub.ConnectionTable{}
	dataCaches     = map[string]*dataRegistry{}
	eventFactories = map[string]*EventPortFactory{}
)

// dataRegistry is the per-service cache of resolved publisher data
// segments: populated locally whenever this process's own Publisher()
// call allocates one, and lazily via memsys.OpenResizable for a publisher
// id this process only knows about because some other factory registered
// it in the service's DynamicConfig.
type dataRegistry struct {
	mu     sync.Mutex
	byPort map[string]*memsys.Resizable
}

func serviceStateKey(reg *registry.Registry, id registry.ServiceId) string {
	return reg.DataSegmentFqnBase(id, "")
}

func connectionTableFor(reg *registry.Registry, id registry.ServiceId) *pubsub.ConnectionTable {
	key := serviceStateKey(reg, id)
	stateMu.Lock()
	defer stateMu.Unlock()
	t, ok := connTables[key]
	if !ok {
		t = pubsub.NewConnectionTable()
		connTables[key] = t
	}
	return t
}

func dataRegistryFor(reg *registry.Registry, id registry.ServiceId) *dataRegistry {
	key := serviceStateKey(reg, id)
	stateMu.Lock()
	defer stateMu.Unlock()
	d, ok := dataCaches[key]
	if !ok {
		d = &dataRegistry{byPort: make(map[string]*memsys.Resizable)}
		dataCaches[key] = d
	}
	return d
}

func registerEventFactory(reg *registry.Registry, id registry.ServiceId, f *EventPortFactory) {
	key := serviceStateKey(reg, id)
	stateMu.Lock()
	eventFactories[key] = f
	stateMu.Unlock()
}

// NotifyNotifierDead fires the NotifierDeadEvent configured for the event
// service (reg, id) in this process, if one is open here. registry's dead
// node reclamation calls this through a callback so that package never
// needs to import event itself; see registry.ReapDeadNodes.
func NotifyNotifierDead(reg *registry.Registry, id registry.ServiceId) {
	key := serviceStateKey(reg, id)
	stateMu.Lock()
	f, ok := eventFactories[key]
	stateMu.Unlock()
	if !ok {
		return
	}
	f.notifyDead()
}
