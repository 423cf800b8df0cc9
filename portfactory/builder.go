package portfactory

import (
	"time"

	"github.com/shmbus/shmbus/config"
	"github.com/shmbus/shmbus/node"
	"github.com/shmbus/shmbus/registry"
)

// ServiceBuilder accumulates the pattern-independent part of a service
// request - its name and the registry/node it will be opened through -
// before PublishSubscribe or Event narrows it to a concrete pattern.
// Go forbids generic methods, so the pattern-selecting step is a
// package-level function rather than a ServiceBuilder method.
type ServiceBuilder struct {
	node *node.Node
	reg  *registry.Registry
	name registry.ServiceName

	configPrefix string
}

// NewServiceBuilder starts a builder chain for name, opened through n
// against reg.
func NewServiceBuilder(n *node.Node, reg *registry.Registry, name registry.ServiceName) *ServiceBuilder {
	return &ServiceBuilder{node: n, reg: reg, name: name}
}

// WithConfigPrefix namespaces the derived ServiceId, letting two
// deployments share one registry root without colliding on service names.
func (b *ServiceBuilder) WithConfigPrefix(prefix string) *ServiceBuilder {
	b.configPrefix = prefix
	return b
}

// PubSubBuilder narrows a ServiceBuilder to the publish-subscribe pattern
// for payload type Payload, collecting the tuning knobs
// StaticConfig.MaxPublishers/MaxSubscribers/SubscriberBufferSize/
// HistorySize/EnableSafeOverflow cover.
type PubSubBuilder[Payload any] struct {
	b *ServiceBuilder

	maxPublishers        uint32
	maxSubscribers       uint32
	subscriberBufferSize uint32
	historySize          uint32
	safeOverflow         bool
}

// PublishSubscribe narrows sb to the publish-subscribe pattern, seeded
// with defaults drawn from cfg.
func PublishSubscribe[Payload any](sb *ServiceBuilder, cfg config.PublishSubscribeDefaults) *PubSubBuilder[Payload] {
	return &PubSubBuilder[Payload]{
		b:                    sb,
		maxPublishers:        cfg.MaxPublishers,
		maxSubscribers:       cfg.MaxSubscribers,
		subscriberBufferSize: cfg.SubscriberMaxBufferSize,
		historySize:          cfg.HistorySize,
		safeOverflow:         cfg.EnableSafeOverflow,
	}
}

func (p *PubSubBuilder[Payload]) WithMaxPublishers(n uint32) *PubSubBuilder[Payload] {
	p.maxPublishers = n
	return p
}

func (p *PubSubBuilder[Payload]) WithMaxSubscribers(n uint32) *PubSubBuilder[Payload] {
	p.maxSubscribers = n
	return p
}

func (p *PubSubBuilder[Payload]) WithSubscriberBufferSize(n uint32) *PubSubBuilder[Payload] {
	p.subscriberBufferSize = n
	return p
}

func (p *PubSubBuilder[Payload]) WithHistorySize(n uint32) *PubSubBuilder[Payload] {
	p.historySize = n
	return p
}

func (p *PubSubBuilder[Payload]) WithSafeOverflow(enable bool) *PubSubBuilder[Payload] {
	p.safeOverflow = enable
	return p
}

// OpenOrCreate runs the registry's create-or-open protocol for this
// service and returns a PubSubPortFactory that constructs Publisher and
// Subscriber ports against it.
func (p *PubSubBuilder[Payload]) OpenOrCreate(mode registry.OpenMode) (*PubSubPortFactory[Payload], error) {
	payload := typeDetail[Payload]()
	header := typeDetail[struct{}]()
	id := registry.ComputeServiceId(p.b.name, registry.PatternPublishSubscribe, payload, header, p.b.configPrefix)
	want := &registry.StaticConfig{
		Id:                   id,
		Name:                 p.b.name,
		Pattern:              registry.PatternPublishSubscribe,
		Payload:              payload,
		Header:               header,
		MaxPublishers:        p.maxPublishers,
		MaxSubscribers:       p.maxSubscribers,
		SubscriberBufferSize: p.subscriberBufferSize,
		HistorySize:          p.historySize,
		EnableSafeOverflow:   p.safeOverflow,
	}
	svc, err := p.b.node.OpenOrCreateService(p.b.reg, want, mode)
	if err != nil {
		return nil, err
	}
	return newPubSubPortFactory[Payload](p.b.node, p.b.reg, svc), nil
}

// EventBuilder narrows a ServiceBuilder to the event pattern.
type EventBuilder struct {
	b *ServiceBuilder

	maxNotifiers  uint32
	maxListeners  uint32
	eventIDMaxVal uint64
	deadline      time.Duration

	createdEvent uint64
	droppedEvent uint64
	deadEvent    uint64
}

func Event(sb *ServiceBuilder, cfg config.EventDefaults) *EventBuilder {
	return &EventBuilder{
		b:             sb,
		maxNotifiers:  cfg.MaxNotifiers,
		maxListeners:  cfg.MaxListeners,
		eventIDMaxVal: cfg.EventIdMaxValue,
		deadline:      time.Duration(cfg.DeadlineMillis) * time.Millisecond,
		createdEvent:  cfg.NotifierCreatedEvent,
		droppedEvent:  cfg.NotifierDroppedEvent,
		deadEvent:     cfg.NotifierDeadEvent,
	}
}

func (e *EventBuilder) WithMaxNotifiers(n uint32) *EventBuilder {
	e.maxNotifiers = n
	return e
}

func (e *EventBuilder) WithMaxListeners(n uint32) *EventBuilder {
	e.maxListeners = n
	return e
}

func (e *EventBuilder) WithEventIdMaxValue(n uint64) *EventBuilder {
	e.eventIDMaxVal = n
	return e
}

// WithDeadline arms every Listener this factory later constructs with a
// missed-deadline window; zero disables it, matching the event pattern's
// deadline being optional.
func (e *EventBuilder) WithDeadline(d time.Duration) *EventBuilder {
	e.deadline = d
	return e
}

// WithNotifierLifecycleEvents arms the factory's automatic lifecycle
// notifications: created fires on every successful Notifier() call,
// dropped on every NotifierPort.Drop(), dead when reclamation finds a
// Notifier whose owning node died without dropping it. Zero disables the
// corresponding notification.
func (e *EventBuilder) WithNotifierLifecycleEvents(created, dropped, dead uint64) *EventBuilder {
	e.createdEvent = created
	e.droppedEvent = dropped
	e.deadEvent = dead
	return e
}

func (e *EventBuilder) OpenOrCreate(mode registry.OpenMode) (*EventPortFactory, error) {
	empty := typeDetail[struct{}]()
	id := registry.ComputeServiceId(e.b.name, registry.PatternEvent, empty, empty, e.b.configPrefix)
	want := &registry.StaticConfig{
		Id:             id,
		Name:           e.b.name,
		Pattern:        registry.PatternEvent,
		Payload:        empty,
		Header:         empty,
		MaxPublishers:  e.maxNotifiers,
		MaxSubscribers: e.maxListeners,
	}
	svc, err := e.b.node.OpenOrCreateService(e.b.reg, want, mode)
	if err != nil {
		return nil, err
	}
	return newEventPortFactory(e.b.node, e.b.reg, svc, e.eventIDMaxVal, e.deadline, e.createdEvent, e.droppedEvent, e.deadEvent), nil
}
