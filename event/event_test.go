package event_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shmbus/shmbus/event"
)

func TestSemaphoreCarrierNotifyWait(t *testing.T) {
	c := event.NewSemaphoreCarrier(15)
	defer c.Close()

	n := event.NewNotifier(c, 3)
	l := event.NewListener(c, 0)

	if err := n.Notify(); err != nil {
		t.Fatal(err)
	}
	id, ok, err := l.TryWaitOne()
	if err != nil || !ok || id != 3 {
		t.Fatalf("expected id 3, got id=%v ok=%v err=%v", id, ok, err)
	}

	if err := n.NotifyWithCustomEventId(16); err == nil {
		t.Fatal("expected EventIdOutOfBounds-equivalent error for id beyond max")
	}
}

func TestSemaphoreCarrierDrainBatches(t *testing.T) {
	c := event.NewSemaphoreCarrier(15)
	defer c.Close()
	n := event.NewNotifier(c, 0)
	l := event.NewListener(c, 0)

	n.NotifyWithCustomEventId(1)
	n.NotifyWithCustomEventId(2)
	n.NotifyWithCustomEventId(5)

	var got []event.EventId
	l.TryWaitAll(func(id event.EventId) { got = append(got, id) })
	if len(got) != 3 {
		t.Fatalf("expected 3 drained ids, got %v", got)
	}
}

func TestListenerDeadline(t *testing.T) {
	c := event.NewSemaphoreCarrier(15)
	defer c.Close()
	l := event.NewListener(c, 50*time.Millisecond)

	if l.DeadlineMissed() {
		t.Fatal("deadline should not be missed immediately after construction")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.DeadlineMissed() {
		t.Fatal("deadline should be missed after the window elapses with no notification")
	}
	l.Rearm()
	if l.DeadlineMissed() {
		t.Fatal("deadline should reset after Rearm")
	}
}

func TestSocketPairCarrierRoundTrip(t *testing.T) {
	c, err := event.NewSocketPairCarrier()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Notify(7); err != nil {
		t.Fatal(err)
	}
	id, ok, err := c.Wait(time.Second)
	if err != nil || !ok || id != 7 {
		t.Fatalf("expected id 7, got id=%v ok=%v err=%v", id, ok, err)
	}
}

func TestUnixSocketCarrierRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.sock")
	listener, err := event.NewUnixSocketListener(path)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	notifier, err := event.DialUnixSocketNotifier(path)
	if err != nil {
		t.Fatal(err)
	}
	defer notifier.Close()

	if err := notifier.Notify(4); err != nil {
		t.Fatal(err)
	}
	id, ok, err := listener.Wait(time.Second)
	if err != nil || !ok || id != 4 {
		t.Fatalf("expected id 4, got id=%v ok=%v err=%v", id, ok, err)
	}
}
