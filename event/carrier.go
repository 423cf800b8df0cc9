// Package event implements the Event core: a lightweight publish-subscribe
// variant whose payload is a small EventId, delivered over one of three
// interchangeable signal carriers and consumed through Notifier/Listener.
package event

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/shmbus/shmbus/lfq"
)

// EventId is the payload of an Event service notification, bounded by the
// service's configured EventIdMaxValue.
type EventId uint64

// Carrier abstracts the underlying signal transport so Notifier/Listener
// code is the same regardless of which one a StaticConfig selected.
type Carrier interface {
	// Notify wakes one waiter and records id as pending.
	Notify(id EventId) error
	// Wait blocks until a pending id is available or timeout elapses (zero
	// means block indefinitely); ok is false on timeout.
	Wait(timeout time.Duration) (id EventId, ok bool, err error)
	// Drain returns every currently pending id without blocking.
	Drain() []EventId
	Close() error
}

// SemaphoreCarrier emulates a POSIX semaphore in shared memory with a
// bitset of pending ids plus a condition variable to wake a blocked
// waiter - the default carrier, since it needs no OS descriptor beyond the
// process's own memory once the DynamicConfig region is mapped.
type SemaphoreCarrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *lfq.Bitset
	maxID   EventId
	closed  bool
}

func NewSemaphoreCarrier(maxID EventId) *SemaphoreCarrier {
	c := &SemaphoreCarrier{pending: lfq.NewBitset(int(maxID) + 1), maxID: maxID}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *SemaphoreCarrier) Notify(id EventId) error {
	if id > c.maxID {
		return fmt.Errorf("event: id %d exceeds max value %d", id, c.maxID)
	}
	c.mu.Lock()
	c.pending.Set(int(id))
	c.cond.Signal()
	c.mu.Unlock()
	return nil
}

func (c *SemaphoreCarrier) Wait(timeout time.Duration) (EventId, bool, error) {
	if id, ok := c.tryOne(); ok {
		return id, true, nil
	}
	if timeout == 0 {
		c.mu.Lock()
		for !c.anyPendingLocked() && !c.closed {
			c.cond.Wait()
		}
		c.mu.Unlock()
		id, ok := c.tryOne()
		return id, ok, nil
	}
	deadline := time.Now().Add(timeout)
	done := make(chan struct{})
	go func() {
		c.mu.Lock()
		for !c.anyPendingLocked() && !c.closed && time.Now().Before(deadline) {
			c.cond.Wait()
		}
		c.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		id, ok := c.tryOne()
		return id, ok, nil
	case <-time.After(timeout):
		return 0, false, nil
	}
}

func (c *SemaphoreCarrier) anyPendingLocked() (found bool) {
	c.pending.Each(func(int) { found = true })
	return
}

func (c *SemaphoreCarrier) tryOne() (id EventId, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Each(func(i int) {
		if !ok {
			id, ok = EventId(i), true
		}
	})
	if ok {
		c.pending.TestAndClear(int(id))
	}
	return
}

func (c *SemaphoreCarrier) Drain() (ids []EventId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Each(func(i int) { ids = append(ids, EventId(i)) })
	for _, id := range ids {
		c.pending.TestAndClear(int(id))
	}
	return
}

func (c *SemaphoreCarrier) Close() error {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
	return nil
}

// FdCarrier is implemented by carriers backed by a real file descriptor,
// letting a WaitSet register them with epoll instead of falling back to
// polled Wait calls. SemaphoreCarrier does not implement it, since it has
// no descriptor; a WaitSet polls it instead.
type FdCarrier interface {
	Carrier
	Fd() (uintptr, error)
}

// SocketPairCarrier delivers one 8-byte datagram (the EventId) per
// notification over a connected unix datagram socket pair, giving the WaitSet a real file descriptor to
// hand to epoll instead of a condition variable.
type SocketPairCarrier struct {
	notify *net.UnixConn
	listen *net.UnixConn
	mu     sync.Mutex
}

// Fd returns the listening half's file descriptor for epoll registration.
// The returned descriptor is the carrier's own, not a dup; it stays valid
// only until Close, and closing it closes the carrier's connection.
func (c *SocketPairCarrier) Fd() (uintptr, error) {
	raw, err := c.listen.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd uintptr
	err = raw.Control(func(f uintptr) { fd = f })
	return fd, err
}

func NewSocketPairCarrier() (*SocketPairCarrier, error) {
	a, b, err := socketpair()
	if err != nil {
		return nil, err
	}
	return &SocketPairCarrier{notify: a, listen: b}, nil
}

func (c *SocketPairCarrier) Notify(id EventId) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b [8]byte
	putUint64(b[:], uint64(id))
	_, err := c.notify.Write(b[:])
	return err
}

func (c *SocketPairCarrier) Wait(timeout time.Duration) (EventId, bool, error) {
	if timeout > 0 {
		c.listen.SetReadDeadline(time.Now().Add(timeout))
	} else {
		c.listen.SetReadDeadline(time.Time{})
	}
	var b [8]byte
	_, err := c.listen.Read(b[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, false, nil
		}
		return 0, false, err
	}
	return EventId(getUint64(b[:])), true, nil
}

func (c *SocketPairCarrier) Drain() (ids []EventId) {
	c.listen.SetReadDeadline(time.Now())
	for {
		id, ok, err := c.Wait(time.Microsecond)
		if err != nil || !ok {
			return
		}
		ids = append(ids, id)
	}
}

func (c *SocketPairCarrier) Close() error {
	c.notify.Close()
	return c.listen.Close()
}

// UnixSocketCarrier is a named Unix-domain socket under the registry root,
// for many-to-one fan-in where an arbitrary number of notifiers share one
// listener outside this process's own pipe.
type UnixSocketCarrier struct {
	path   string
	conn   net.Conn
	l      net.Listener
	accept net.Conn
	mu     sync.Mutex
}

func NewUnixSocketListener(path string) (*UnixSocketCarrier, error) {
	os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &UnixSocketCarrier{path: path, l: l}, nil
}

func DialUnixSocketNotifier(path string) (*UnixSocketCarrier, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	return &UnixSocketCarrier{path: path, conn: conn}, nil
}

func (c *UnixSocketCarrier) Notify(id EventId) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b [8]byte
	putUint64(b[:], uint64(id))
	_, err := c.conn.Write(b[:])
	return err
}

func (c *UnixSocketCarrier) accepted() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accept != nil {
		return c.accept, nil
	}
	conn, err := c.l.Accept()
	if err != nil {
		return nil, err
	}
	c.accept = conn
	return conn, nil
}

func (c *UnixSocketCarrier) Wait(timeout time.Duration) (EventId, bool, error) {
	conn, err := c.accepted()
	if err != nil {
		return 0, false, err
	}
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		conn.SetReadDeadline(time.Time{})
	}
	var b [8]byte
	if _, err := conn.Read(b[:]); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, false, nil
		}
		return 0, false, err
	}
	return EventId(getUint64(b[:])), true, nil
}

// Fd returns the accepted connection's file descriptor for epoll
// registration, accepting the first peer connection if none has arrived
// yet. Only meaningful on the listener side of a DialUnixSocketNotifier
// pair.
func (c *UnixSocketCarrier) Fd() (uintptr, error) {
	conn, err := c.accepted()
	if err != nil {
		return 0, err
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, fmt.Errorf("event: unix socket carrier connection is not a *net.UnixConn")
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd uintptr
	err = raw.Control(func(f uintptr) { fd = f })
	return fd, err
}

func (c *UnixSocketCarrier) Drain() (ids []EventId) {
	for {
		id, ok, err := c.Wait(time.Microsecond)
		if err != nil || !ok {
			return
		}
		ids = append(ids, id)
	}
}

func (c *UnixSocketCarrier) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.accept != nil {
		c.accept.Close()
	}
	if c.l != nil {
		c.l.Close()
	}
	os.Remove(c.path)
	return nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint64(b []byte) (v uint64) {
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return
}
