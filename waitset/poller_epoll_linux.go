//go:build linux

package waitset

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/shmbus/shmbus/event"
)

// epollPoller blocks on a real epoll instance for every source whose
// carrier exposes a file descriptor (SocketPairCarrier, UnixSocketCarrier);
// a WaitSet falls back to fallbackPoller for the rest (SemaphoreCarrier)
// and merges both every wait cycle.
type epollPoller struct {
	epfd int
	fds  map[int]*notificationSource
}

func init() {
	tryNewEpollPoller = newEpollPoller
}

func newEpollPoller() (*epollPoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd, fds: make(map[int]*notificationSource)}, nil
}

func (p *epollPoller) register(src *notificationSource, carrier event.FdCarrier) error {
	rawFd, err := carrier.Fd()
	if err != nil {
		return err
	}
	fd := int(rawFd)
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.fds[fd] = src
	return nil
}

func (p *epollPoller) wait(sources []*notificationSource, budget time.Duration) int {
	ms := -1
	if budget > 0 {
		ms = int(budget / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}
	events := make([]unix.EpollEvent, len(p.fds))
	if len(events) == 0 {
		if ms > 0 {
			time.Sleep(budget)
		}
		return 0
	}
	n, err := unix.EpollWait(p.epfd, events, ms)
	if err != nil || n <= 0 {
		return 0
	}
	fired := 0
	for i := 0; i < n; i++ {
		src, ok := p.fds[int(events[i].Fd)]
		if !ok {
			continue
		}
		src.listener.TryWaitAll(func(id event.EventId) {
			fired++
			src.cb(id)
		})
	}
	return fired
}

func (p *epollPoller) close() {
	unix.Close(p.epfd)
}
