package portfactory

import (
	"fmt"
	"unsafe"

	"github.com/shmbus/shmbus/cmn/nlog"
	"github.com/shmbus/shmbus/memsys"
	"github.com/shmbus/shmbus/node"
	"github.com/shmbus/shmbus/pubsub"
	"github.com/shmbus/shmbus/registry"
)

// PubSubPortFactory constructs Publisher and Subscriber ports against one
// already-opened publish-subscribe Service. tbl and data are shared by
// every factory instance open against the same service in this process
// (see sharedstate.go), so a Subscriber opened through one factory can
// still resolve a Publisher opened through an independently constructed
// one standing in for a second process on the same registry root.
type PubSubPortFactory[Payload any] struct {
	node *node.Node
	reg  *registry.Registry
	svc  *registry.Service
	tbl  *pubsub.ConnectionTable
	data *dataRegistry

	bufCap int
}

func newPubSubPortFactory[Payload any](n *node.Node, reg *registry.Registry, svc *registry.Service) *PubSubPortFactory[Payload] {
	return &PubSubPortFactory[Payload]{
		node:   n,
		reg:    reg,
		svc:    svc,
		tbl:    connectionTableFor(reg, svc.Static.Id),
		data:   dataRegistryFor(reg, svc.Static.Id),
		bufCap: int(svc.Static.SubscriberBufferSize),
	}
}

// dataFor resolves the Resizable segment chain a given publisher id's
// slots live in. A publisher opened through this same process (this
// factory or another sharing the same dataRegistry) is already cached;
// anything else is attached to by name via the service's registered
// data-segment prefix, the path a genuinely separate process would also
// have to take.
func (f *PubSubPortFactory[Payload]) dataFor(id pubsub.UniquePortId) *memsys.Resizable {
	f.data.mu.Lock()
	d, ok := f.data.byPort[string(id)]
	f.data.mu.Unlock()
	if ok {
		return d
	}

	fqnBase := f.reg.DataSegmentFqnBase(f.svc.Static.Id, string(id))
	opened, err := memsys.OpenResizable(fqnBase, slotSize(f.svc.Static.Payload))
	if err != nil {
		nlog.Warningf("portfactory: open data segment for publisher %s: %v", id, err)
		return nil
	}

	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	if d, ok := f.data.byPort[string(id)]; ok {
		return d
	}
	f.data.byPort[string(id)] = opened
	return opened
}

const minSlotPayload = 64

func slotSize(t registry.TypeDetail) int {
	sz := int(t.Size)
	if sz < minSlotPayload {
		sz = minSlotPayload
	}
	return pubsub.HeaderSize + sz
}

// Publisher opens a new Publisher port against the factory's service,
// registering it into the DynamicConfig's publisher table and allocating
// its own data segment chain.
func (f *PubSubPortFactory[Payload]) Publisher() (*PublisherPort[Payload], error) {
	portID := f.node.NewUniquePortId()
	if !f.svc.Dynamic.Register(registry.KindPublisher, portID, f.node.Id()) {
		return nil, fmt.Errorf("portfactory: publisher table for %s is full", f.svc.Static.Name)
	}
	initialSlots := int(f.svc.Static.SubscriberBufferSize)*int(f.svc.Static.MaxSubscribers) + int(f.svc.Static.HistorySize) + 4
	if initialSlots < 8 {
		initialSlots = 8
	}
	data, err := memsys.NewResizable(f.reg.DataSegmentFqnBase(f.svc.Static.Id, portID), slotSize(f.svc.Static.Payload), initialSlots)
	if err != nil {
		f.svc.Dynamic.Unregister(registry.KindPublisher, portID)
		return nil, err
	}
	pub := pubsub.NewPublisher(pubsub.UniquePortId(portID), data, int(f.svc.Static.HistorySize))
	f.data.mu.Lock()
	f.data.byPort[portID] = data
	f.data.mu.Unlock()
	return &PublisherPort[Payload]{pub: pub, factory: f, portID: portID, data: data}, nil
}

// Subscriber opens a new Subscriber port against the factory's service,
// registering it into the DynamicConfig's subscriber table.
func (f *PubSubPortFactory[Payload]) Subscriber() (*SubscriberPort[Payload], error) {
	portID := f.node.NewUniquePortId()
	if !f.svc.Dynamic.Register(registry.KindSubscriber, portID, f.node.Id()) {
		return nil, fmt.Errorf("portfactory: subscriber table for %s is full", f.svc.Static.Name)
	}
	sub := pubsub.NewSubscriber(pubsub.UniquePortId(portID))
	return &SubscriberPort[Payload]{sub: sub, factory: f, portID: portID}, nil
}

// PublisherPort is the typed, Payload-specific view a caller actually
// programs against: Loan hands back a pointer directly into shared
// memory, reinterpreting the slot's payload bytes as *Payload.
type PublisherPort[Payload any] struct {
	pub     *pubsub.Publisher
	factory *PubSubPortFactory[Payload]
	portID  string
	data    *memsys.Resizable
}

// TypedSample pairs a *Payload view with the Sample it was reinterpreted
// from, so Release still goes through the untyped slot bookkeeping.
type TypedSample[Payload any] struct {
	Value *Payload
	inner *pubsub.Sample
}

func (s *TypedSample[Payload]) Release() { s.inner.Release() }

func (p *PublisherPort[Payload]) Loan() (*TypedSample[Payload], error) {
	s, err := p.pub.Loan()
	if err != nil {
		return nil, err
	}
	var zero Payload
	if len(s.Payload) < int(unsafe.Sizeof(zero)) {
		s.Release()
		return nil, fmt.Errorf("portfactory: slot too small for %T", zero)
	}
	return &TypedSample[Payload]{Value: (*Payload)(unsafe.Pointer(&s.Payload[0])), inner: s}, nil
}

// Send refreshes this Publisher's connection set against the current
// subscriber table before delivering, since nothing else currently
// watches DynamicConfig for membership changes between sends.
func (p *PublisherPort[Payload]) Send(s *TypedSample[Payload]) error {
	p.refreshConnections()
	return p.pub.Send(s.inner)
}

func (p *PublisherPort[Payload]) refreshConnections() {
	ports, _ := p.factory.svc.Dynamic.Entries(registry.KindSubscriber)
	ids := make([]pubsub.UniquePortId, len(ports))
	for i, id := range ports {
		ids[i] = pubsub.UniquePortId(id)
	}
	p.pub.UpdateConnections(p.factory.tbl, ids, p.factory.bufCap)
}

func (p *PublisherPort[Payload]) Drop() error {
	p.factory.svc.Dynamic.Unregister(registry.KindPublisher, p.portID)
	p.factory.data.mu.Lock()
	delete(p.factory.data.byPort, p.portID)
	p.factory.data.mu.Unlock()
	return p.pub.Close()
}

// SubscriberPort is the typed receiving half; Receive hands back the same
// *Payload reinterpretation Loan uses on the sending side.
type SubscriberPort[Payload any] struct {
	sub     *pubsub.Subscriber
	factory *PubSubPortFactory[Payload]
	portID  string
}

func (s *SubscriberPort[Payload]) Receive() (*TypedSample[Payload], bool) {
	s.refreshConnections()
	sample, ok := s.sub.Receive()
	if !ok {
		return nil, false
	}
	var zero Payload
	if len(sample.Payload) < int(unsafe.Sizeof(zero)) {
		sample.Release()
		return nil, false
	}
	return &TypedSample[Payload]{Value: (*Payload)(unsafe.Pointer(&sample.Payload[0])), inner: sample}, true
}

func (s *SubscriberPort[Payload]) refreshConnections() {
	ports, _ := s.factory.svc.Dynamic.Entries(registry.KindPublisher)
	ids := make([]pubsub.UniquePortId, len(ports))
	for i, id := range ports {
		ids[i] = pubsub.UniquePortId(id)
	}
	s.sub.UpdateConnections(s.factory.tbl, ids, s.factory.bufCap, s.factory.dataFor)
}

func (s *SubscriberPort[Payload]) Drop() error {
	s.factory.svc.Dynamic.Unregister(registry.KindSubscriber, s.portID)
	return s.sub.Close()
}
