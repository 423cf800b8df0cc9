package portfactory

import (
	"fmt"
	"time"

	"github.com/shmbus/shmbus/cmn/nlog"
	"github.com/shmbus/shmbus/event"
	"github.com/shmbus/shmbus/node"
	"github.com/shmbus/shmbus/registry"
)

// EventPortFactory constructs Notifier and Listener ports against one
// already-opened event Service. Every port shares one SemaphoreCarrier,
// the in-process stand-in for the service's shared-memory signal block -
// same simplification the pubsub package documents for its Connection
// queues, carried over here for the same reason: a true carrier would live
// in a sys.SharedRegion reachable from every process, not a process-local
// condition variable.
type EventPortFactory struct {
	node     *node.Node
	reg      *registry.Registry
	svc      *registry.Service
	carrier  *event.SemaphoreCarrier
	maxID    event.EventId
	deadline time.Duration

	// createdEvent/droppedEvent/deadEvent are the ids this factory notifies
	// automatically when one of its Notifier ports is constructed, when one
	// is dropped, and when dead-node reclamation reports a dead notifier
	// (NotifyNotifierDead), respectively; Listener ports fire none of them. Zero means disabled - the
	// TOML default for all three - so a deployment that never configures
	// lifecycle events gets none.
	createdEvent event.EventId
	droppedEvent event.EventId
	deadEvent    event.EventId
}

func newEventPortFactory(n *node.Node, reg *registry.Registry, svc *registry.Service, eventIDMaxVal uint64, deadline time.Duration, createdEvent, droppedEvent, deadEvent uint64) *EventPortFactory {
	maxID := event.EventId(eventIDMaxVal)
	f := &EventPortFactory{
		node:         n,
		reg:          reg,
		svc:          svc,
		carrier:      event.NewSemaphoreCarrier(maxID),
		maxID:        maxID,
		deadline:     deadline,
		createdEvent: event.EventId(createdEvent),
		droppedEvent: event.EventId(droppedEvent),
		deadEvent:    event.EventId(deadEvent),
	}
	registerEventFactory(reg, svc.Static.Id, f)
	return f
}

// Close releases the factory's shared carrier. Call it once the service's
// last Notifier/Listener port has been dropped, not per-port - individual
// ports only unregister themselves from DynamicConfig on Drop.
func (f *EventPortFactory) Close() error { return f.carrier.Close() }

// notify fires id through the factory's own carrier, treating the zero
// value - the default for every lifecycle event id - as disabled rather
// than a real event to emit.
func (f *EventPortFactory) notify(id event.EventId) {
	if id == 0 {
		return
	}
	n := event.NewNotifier(f.carrier, id)
	if err := n.Notify(); err != nil {
		nlog.Warningf("portfactory: notify lifecycle event %d for %s: %v", id, f.svc.Static.Name, err)
	}
}

// notifyDead fires this factory's configured dead-notifier event. Called
// through NotifyNotifierDead when dead-node reclamation finds a Notifier
// port whose owning node no longer lives.
func (f *EventPortFactory) notifyDead() { f.notify(f.deadEvent) }

// Notifier opens a new Notifier port against the factory's service,
// registering it into the DynamicConfig's notifier table.
func (f *EventPortFactory) Notifier(defaultID event.EventId) (*NotifierPort, error) {
	if defaultID > f.maxID {
		return nil, fmt.Errorf("portfactory: default event id %d exceeds service max %d", defaultID, f.maxID)
	}
	portID := f.node.NewUniquePortId()
	if !f.svc.Dynamic.Register(registry.KindNotifier, portID, f.node.Id()) {
		return nil, fmt.Errorf("portfactory: notifier table for %s is full", f.svc.Static.Name)
	}
	f.notify(f.createdEvent)
	return &NotifierPort{
		notifier: event.NewNotifier(f.carrier, defaultID),
		factory:  f,
		portID:   portID,
	}, nil
}

// Listener opens a new Listener port against the factory's service,
// registering it into the DynamicConfig's listener table.
func (f *EventPortFactory) Listener() (*ListenerPort, error) {
	portID := f.node.NewUniquePortId()
	if !f.svc.Dynamic.Register(registry.KindListener, portID, f.node.Id()) {
		return nil, fmt.Errorf("portfactory: listener table for %s is full", f.svc.Static.Name)
	}
	return &ListenerPort{
		listener: event.NewListener(f.carrier, f.deadline),
		factory:  f,
		portID:   portID,
	}, nil
}

// NotifierPort is the sending half a caller programs against; it exists
// mainly to carry the DynamicConfig registration Drop must undo, since
// event.Notifier itself has no notion of the service it was opened from.
type NotifierPort struct {
	notifier *event.Notifier
	factory  *EventPortFactory
	portID   string
}

func (p *NotifierPort) Notify() error { return p.notifier.Notify() }
func (p *NotifierPort) NotifyWithCustomEventId(id event.EventId) error {
	return p.notifier.NotifyWithCustomEventId(id)
}

func (p *NotifierPort) Drop() error {
	p.factory.svc.Dynamic.Unregister(registry.KindNotifier, p.portID)
	p.factory.notify(p.factory.droppedEvent)
	return nil
}

// ListenerPort is the receiving half; Raw exposes the underlying
// event.Listener for WaitSet attachment, which needs the concrete type to
// probe for FdCarrier support.
type ListenerPort struct {
	listener *event.Listener
	factory  *EventPortFactory
	portID   string
}

func (p *ListenerPort) Raw() *event.Listener { return p.listener }

func (p *ListenerPort) TryWaitOne() (event.EventId, bool, error) { return p.listener.TryWaitOne() }
func (p *ListenerPort) TimedWaitOne(d time.Duration) (event.EventId, bool, error) {
	return p.listener.TimedWaitOne(d)
}
func (p *ListenerPort) BlockingWaitOne() (event.EventId, error) { return p.listener.BlockingWaitOne() }
func (p *ListenerPort) TryWaitAll(cb func(event.EventId))       { p.listener.TryWaitAll(cb) }

// Drop unregisters the port but does not close the underlying carrier,
// which every Listener and Notifier opened through this factory shares.
func (p *ListenerPort) Drop() error {
	p.factory.svc.Dynamic.Unregister(registry.KindListener, p.portID)
	return nil
}
