package event

import "time"

// Notifier is the sending half of an Event service: notify() uses the
// service's configured default event id, notify_with_custom_event_id lets
// the caller pick any id up to the service's max value.
type Notifier struct {
	carrier    Carrier
	defaultID  EventId
}

func NewNotifier(carrier Carrier, defaultID EventId) *Notifier {
	return &Notifier{carrier: carrier, defaultID: defaultID}
}

func (n *Notifier) Notify() error                       { return n.carrier.Notify(n.defaultID) }
func (n *Notifier) NotifyWithCustomEventId(id EventId) error { return n.carrier.Notify(id) }

// Listener is the receiving half; it implements the WaitSet's
// signal-source contract (TryWaitOne/Fd-ability via its Carrier) alongside
// direct polling for callers that don't go through a WaitSet at all.
type Listener struct {
	carrier  Carrier
	deadline time.Duration
	lastFire time.Time
}

func NewListener(carrier Carrier, deadline time.Duration) *Listener {
	return &Listener{carrier: carrier, deadline: deadline, lastFire: time.Now()}
}

func (l *Listener) TryWaitOne() (EventId, bool, error) {
	id, ok, err := l.carrier.Wait(time.Microsecond)
	if ok {
		l.lastFire = time.Now()
	}
	return id, ok, err
}

func (l *Listener) TimedWaitOne(d time.Duration) (EventId, bool, error) {
	id, ok, err := l.carrier.Wait(d)
	if ok {
		l.lastFire = time.Now()
	}
	return id, ok, err
}

func (l *Listener) BlockingWaitOne() (EventId, error) {
	id, _, err := l.carrier.Wait(0)
	if err == nil {
		l.lastFire = time.Now()
	}
	return id, err
}

// TryWaitAll drains every pending id under one wake and invokes cb for
// each, matching the spec's batched-drain contract.
func (l *Listener) TryWaitAll(cb func(EventId)) {
	ids := l.carrier.Drain()
	if len(ids) > 0 {
		l.lastFire = time.Now()
	}
	for _, id := range ids {
		cb(id)
	}
}

// Deadline reports whether this listener has a deadline configured, and if
// so, the duration window itself.
func (l *Listener) Deadline() (time.Duration, bool) {
	return l.deadline, l.deadline > 0
}

// DeadlineMissed reports whether the window has elapsed since the last
// observed firing. Calling it re-arms nothing: the window restarts on every
// notification a TryWaitOne/TimedWaitOne/BlockingWaitOne/TryWaitAll call
// observes, or on Rearm. A WaitSet checks it on every wake.
func (l *Listener) DeadlineMissed() bool {
	if l.deadline <= 0 {
		return false
	}
	return time.Since(l.lastFire) >= l.deadline
}

// Rearm resets the deadline window's clock without requiring an actual
// notification - used when the WaitSet reports a miss and must start the
// next window fresh rather than immediately re-reporting the same miss.
func (l *Listener) Rearm() { l.lastFire = time.Now() }

func (l *Listener) Close() error { return l.carrier.Close() }

// Carrier exposes the underlying signal transport, letting a WaitSet probe
// whether it implements FdCarrier before deciding which poller to use.
func (l *Listener) Carrier() Carrier { return l.carrier }
