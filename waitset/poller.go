package waitset

import (
	"time"

	"github.com/shmbus/shmbus/event"
)

// notificationSource binds one attached Listener to the callback a WaitSet
// invokes for each id it drains.
type notificationSource struct {
	id       uint64
	listener *event.Listener
	cb       func(event.EventId)
}

// poller is how a WaitSet actually blocks for notification activity. A
// WaitSet holds both implementations: AttachNotification hands a source to
// the epoll poller (Linux) when its carrier exposes a descriptor, and to
// the portable polling fallback otherwise.
type poller interface {
	// wait blocks up to budget for any source to have pending ids,
	// invoking each source's callback for every id it drained. Returns the
	// number of ids delivered across all sources.
	wait(sources []*notificationSource, budget time.Duration) int
	close()
}

// fallbackPoller round-robins every source with a slice of the overall
// budget, which is the only option available for a SemaphoreCarrier-backed
// Listener (no descriptor to hand to epoll) and is always correct,
// just less efficient under a large attachment count.
type fallbackPoller struct{}

func newFallbackPoller() *fallbackPoller { return &fallbackPoller{} }

func (p *fallbackPoller) wait(sources []*notificationSource, budget time.Duration) int {
	if len(sources) == 0 {
		if budget > 0 {
			time.Sleep(budget)
		}
		return 0
	}
	deadline := time.Now().Add(budget)
	slice := budget / time.Duration(len(sources))
	if slice <= 0 {
		slice = time.Millisecond
	}
	for {
		fired := 0
		for _, src := range sources {
			src.listener.TryWaitAll(func(id event.EventId) {
				fired++
				src.cb(id)
			})
		}
		if fired > 0 {
			return fired
		}
		if budget == 0 {
			time.Sleep(slice)
			continue
		}
		if time.Now().After(deadline) {
			return 0
		}
		time.Sleep(slice)
	}
}

func (p *fallbackPoller) close() {}
