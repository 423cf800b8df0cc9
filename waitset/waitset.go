// Package waitset implements the event multiplexer: a single blocking
// wait over any mix of Notification, Tick, and Deadline attachments, with
// an epoll-backed poller on Linux for descriptor-based carriers and a
// portable polling fallback for everything else.
package waitset

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shmbus/shmbus/cmn/nlog"
	"github.com/shmbus/shmbus/event"
	"github.com/shmbus/shmbus/metrics"
)

// AttachmentKind tags what woke a WaitSet's wait loop.
type AttachmentKind uint8

const (
	KindNotification AttachmentKind = iota
	KindTick
	KindDeadline
	KindSignal
)

// WaitSet multiplexes any number of event.Listener notifications plus
// interval timers and deadlines into one blocking call
// (WaitAndProcessOnce/WaitAndProcessOnceWithTimeout/WaitAndProcess), the same way
// an application would otherwise have to run one goroutine per source.
type WaitSet struct {
	mu        sync.Mutex
	nextID    uint64
	sources   []*notificationSource
	deadlines []*deadlineSource
	timers    timers
	fallback *fallbackPoller
	epoll    *epollPoller // nil off Linux, or if epoll_create1 failed

	sigCh  chan os.Signal
	sigCb  func(os.Signal)
	closed atomic.Bool
}

// deadlineSource binds one attached Listener to the callback a WaitSet
// invokes when that Listener's deadline window elapses without a fresh
// notification through it.
type deadlineSource struct {
	id       uint64
	listener *event.Listener
	cb       func()
}

func New() *WaitSet {
	ws := &WaitSet{fallback: newFallbackPoller()}
	if p, err := tryNewEpollPoller(); err == nil {
		ws.epoll = p
	}
	return ws
}

// tryNewEpollPoller is overridden per-platform; see poller_epoll_linux.go.
// The non-Linux default always reports unavailable so every source routes
// through fallbackPoller.
var tryNewEpollPoller = func() (*epollPoller, error) { return nil, errUnsupported }

var errUnsupported = &unsupportedError{}

type unsupportedError struct{}

func (*unsupportedError) Error() string { return "waitset: epoll unsupported on this platform" }

// AttachNotification registers l so Wait invokes cb for every EventId it
// drains. If l's carrier exposes a file descriptor, the attachment is
// registered with the epoll poller (when available) instead of the
// polling fallback.
func (ws *WaitSet) AttachNotification(l *event.Listener, cb func(event.EventId)) uint64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.nextID++
	id := ws.nextID
	src := &notificationSource{id: id, listener: l, cb: cb}
	if ws.epoll != nil {
		if fc, ok := l.Carrier().(event.FdCarrier); ok {
			if err := ws.epoll.register(src, fc); err == nil {
				return id
			}
		}
	}
	ws.sources = append(ws.sources, src)
	return id
}

// AttachTick registers a callback invoked every interval, starting after
// the first interval elapses.
func (ws *WaitSet) AttachTick(interval time.Duration, cb func()) uint64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.nextID++
	id := ws.nextID
	ws.timers.add(id, interval, interval, cb)
	return id
}

// AttachDeadline registers l's deadline window with the wait loop: cb
// fires whenever l.DeadlineMissed() is true on a wake, after which l is
// re-armed so the next window starts fresh rather than re-reporting the
// same miss on every subsequent wake. l must already carry a nonzero
// deadline (see event.NewListener) or cb never fires.
func (ws *WaitSet) AttachDeadline(l *event.Listener, cb func()) uint64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.nextID++
	id := ws.nextID
	ws.deadlines = append(ws.deadlines, &deadlineSource{id: id, listener: l, cb: cb})
	return id
}

// AttachSignals wires SIGINT/SIGTERM into the wait loop as an internal
// attachment, invoking cb on the first signal received.
func (ws *WaitSet) AttachSignals(cb func(os.Signal)) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.sigCb = cb
	ws.sigCh = make(chan os.Signal, 1)
	signal.Notify(ws.sigCh, os.Interrupt, syscall.SIGTERM)
}

// Detach removes a Notification, Tick, or Deadline attachment by id. A
// Notification attachment that went to the epoll poller is not removed and
// keeps firing.
func (ws *WaitSet) Detach(id uint64) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for i, src := range ws.sources {
		if src.id == id {
			ws.sources = append(ws.sources[:i], ws.sources[i+1:]...)
			return
		}
	}
	for i, d := range ws.deadlines {
		if d.id == id {
			ws.deadlines = append(ws.deadlines[:i], ws.deadlines[i+1:]...)
			return
		}
	}
	ws.timers.remove(id)
}

// WaitAndProcessOnceWithTimeout blocks up to timeout for any attachment to
// fire, runs the due callbacks, and returns how many fired. A timeout of
// zero sets no bound of its own: the wait is then bounded by the nearest
// Tick or Deadline, if any; polled (non-epoll) sources are waited on until
// one fires, epoll-registered ones for at most 10ms per call, and with no
// polled sources the call returns after that single pass.
func (ws *WaitSet) WaitAndProcessOnceWithTimeout(timeout time.Duration) int {
	ws.mu.Lock()
	sources := append([]*notificationSource(nil), ws.sources...)
	deadlines := append([]*deadlineSource(nil), ws.deadlines...)
	nextTimer, hasTimer := ws.timers.nextWait()
	sigCh, sigCb := ws.sigCh, ws.sigCb
	ws.mu.Unlock()

	budget := timeout
	if hasTimer && (budget == 0 || nextTimer < budget) {
		budget = nextTimer
	}
	for _, d := range deadlines {
		if window, ok := d.listener.Deadline(); ok && (budget == 0 || window < budget) {
			budget = window
		}
	}

	if sigCh != nil {
		select {
		case sig := <-sigCh:
			if sigCb != nil {
				sigCb(sig)
			}
			metrics.WaitSetWakeupsTotal.Inc()
			return 1
		default:
		}
	}

	fired := 0
	if ws.epoll != nil {
		fired += ws.epoll.wait(nil, minDuration(budget, 10*time.Millisecond))
	}
	fired += ws.fallback.wait(sources, budget)

	ws.mu.Lock()
	fired += ws.timers.fireDue()
	ws.mu.Unlock()

	for _, d := range deadlines {
		if d.listener.DeadlineMissed() {
			d.cb()
			d.listener.Rearm()
			fired++
		}
	}

	if fired > 0 {
		metrics.WaitSetWakeupsTotal.Inc()
	}
	return fired
}

// WaitAndProcessOnce is WaitAndProcessOnceWithTimeout with a zero timeout.
func (ws *WaitSet) WaitAndProcessOnce() int {
	return ws.WaitAndProcessOnceWithTimeout(0)
}

// WaitAndProcess runs the wait loop until Close is called, processing
// every fired attachment on each iteration.
func (ws *WaitSet) WaitAndProcess() {
	for !ws.closed.Load() {
		ws.WaitAndProcessOnceWithTimeout(100 * time.Millisecond)
	}
}

func (ws *WaitSet) Close() {
	if !ws.closed.CompareAndSwap(false, true) {
		return
	}
	if ws.sigCh != nil {
		signal.Stop(ws.sigCh)
	}
	if ws.epoll != nil {
		ws.epoll.close()
	}
	nlog.Infoln("waitset: closed")
}

func minDuration(a, b time.Duration) time.Duration {
	if a == 0 || b < a {
		return b
	}
	return a
}
