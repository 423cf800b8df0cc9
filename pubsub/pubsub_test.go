package pubsub_test

import (
	"path/filepath"
	"testing"

	"github.com/shmbus/shmbus/memsys"
	"github.com/shmbus/shmbus/pubsub"
)

func newData(t *testing.T, slots int) *memsys.Resizable {
	t.Helper()
	fqn := filepath.Join(t.TempDir(), "seg")
	d, err := memsys.NewResizable(fqn, pubsub.HeaderSize+64, slots)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func mkConnected(t *testing.T, data *memsys.Resizable, bufCap int) (*pubsub.Publisher, *pubsub.Subscriber) {
	t.Helper()
	table := pubsub.NewConnectionTable()
	pub := pubsub.NewPublisher("pub-1", data, 0)
	sub := pubsub.NewSubscriber("sub-1")

	pub.UpdateConnections(table, []pubsub.UniquePortId{"sub-1"}, bufCap)
	sub.UpdateConnections(table, []pubsub.UniquePortId{"pub-1"}, bufCap, func(pubsub.UniquePortId) *memsys.Resizable { return data })
	return pub, sub
}

func TestSendReceiveRoundTrip(t *testing.T) {
	data := newData(t, 4)
	pub, sub := mkConnected(t, data, 4)

	s, err := pub.Loan()
	if err != nil {
		t.Fatal(err)
	}
	copy(s.Payload, []byte("hello"))
	if err := pub.Send(s); err != nil {
		t.Fatal(err)
	}

	got, ok := sub.Receive()
	if !ok {
		t.Fatal("expected a sample to be receivable")
	}
	if string(got.Payload[:5]) != "hello" {
		t.Fatalf("payload mismatch: %q", got.Payload[:5])
	}
	if got.Header.PublisherPortId != "pub-1" || got.Header.SequenceNumber != 1 {
		t.Fatalf("unexpected header: %+v", got.Header)
	}
	got.Release()
}

func TestSlotsConserveAcrossManySends(t *testing.T) {
	data := newData(t, 4)
	pub, sub := mkConnected(t, data, 4)

	for i := 0; i < 20; i++ {
		s, err := pub.Loan()
		if err != nil {
			t.Fatal(err)
		}
		if err := pub.Send(s); err != nil {
			t.Fatal(err)
		}
		got, ok := sub.Receive()
		if !ok {
			t.Fatal("expected a sample")
		}
		got.Release()
		pub.ReclaimReturns()
	}
}

func TestFIFOOrderWithinOneConnection(t *testing.T) {
	data := newData(t, 8)
	pub, sub := mkConnected(t, data, 8)

	for i := 0; i < 3; i++ {
		s, _ := pub.Loan()
		pub.Send(s)
	}
	for i := uint64(1); i <= 3; i++ {
		got, ok := sub.Receive()
		if !ok {
			t.Fatalf("expected sample %d", i)
		}
		if got.Header.SequenceNumber != i {
			t.Fatalf("expected sequence %d, got %d", i, got.Header.SequenceNumber)
		}
		got.Release()
	}
}

func TestOverflowEvictsOldest(t *testing.T) {
	data := newData(t, 8)
	pub, sub := mkConnected(t, data, 2)

	for i := 0; i < 2; i++ {
		s, err := pub.Loan()
		if err != nil {
			t.Fatal(err)
		}
		if err := pub.Send(s); err != nil {
			t.Fatal(err)
		}
	}
	// connection is now full (2 pending, capacity 2); a third send must
	// evict the oldest entry since nothing has been received yet.
	s, err := pub.Loan()
	if err != nil {
		t.Fatal(err)
	}
	if err := pub.Send(s); err != nil {
		t.Fatal(err)
	}

	got, ok := sub.Receive()
	if !ok {
		t.Fatal("expected a sample after eviction")
	}
	if got.Header.SequenceNumber != 2 {
		t.Fatalf("expected the oldest (seq 1) to have been evicted, got seq %d", got.Header.SequenceNumber)
	}
	got.Release()
}

func TestHistoryReplayOnConnect(t *testing.T) {
	data := newData(t, 8)
	table := pubsub.NewConnectionTable()
	pub := pubsub.NewPublisher("pub-1", data, 2)

	for i := 0; i < 5; i++ {
		s, err := pub.Loan()
		if err != nil {
			t.Fatal(err)
		}
		if err := pub.Send(s); err != nil {
			t.Fatal(err)
		}
	}

	sub := pubsub.NewSubscriber("late-sub")
	pub.UpdateConnections(table, []pubsub.UniquePortId{"late-sub"}, 8)
	sub.UpdateConnections(table, []pubsub.UniquePortId{"pub-1"}, 8, func(pubsub.UniquePortId) *memsys.Resizable { return data })

	var seqs []uint64
	for {
		s, ok := sub.Receive()
		if !ok {
			break
		}
		seqs = append(seqs, s.Header.SequenceNumber)
		s.Release()
	}
	if len(seqs) != 2 || seqs[0] != 4 || seqs[1] != 5 {
		t.Fatalf("expected history replay of the last 2 sequence numbers [4 5], got %v", seqs)
	}
}
