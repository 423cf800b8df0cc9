package portfactory_test

import (
	"testing"

	"github.com/shmbus/shmbus/config"
	"github.com/shmbus/shmbus/node"
	"github.com/shmbus/shmbus/portfactory"
	"github.com/shmbus/shmbus/registry"
)

type frame struct {
	Seq   uint64
	Value [8]byte
}

func newNode(t *testing.T) (*node.Node, *registry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })
	n, err := node.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { n.Drop() })
	return n, reg, dir
}

func pubSubDefaults() config.PublishSubscribeDefaults {
	return config.PublishSubscribeDefaults{
		MaxPublishers:           4,
		MaxSubscribers:          4,
		SubscriberMaxBufferSize: 8,
		HistorySize:             2,
	}
}

func TestPubSubPortFactoryRoundTrip(t *testing.T) {
	n, reg, _ := newNode(t)

	sb := portfactory.NewServiceBuilder(n, reg, "frames")
	factory, err := portfactory.PublishSubscribe[frame](sb, pubSubDefaults()).OpenOrCreate(registry.OpenOrCreate)
	if err != nil {
		t.Fatal(err)
	}

	pub, err := factory.Publisher()
	if err != nil {
		t.Fatal(err)
	}
	sub, err := factory.Subscriber()
	if err != nil {
		t.Fatal(err)
	}

	s, err := pub.Loan()
	if err != nil {
		t.Fatal(err)
	}
	s.Value.Seq = 42
	if err := pub.Send(s); err != nil {
		t.Fatal(err)
	}

	got, ok := sub.Receive()
	if !ok {
		t.Fatal("expected a sample to be receivable")
	}
	if got.Value.Seq != 42 {
		t.Fatalf("expected seq 42, got %d", got.Value.Seq)
	}
	got.Release()

	if err := sub.Drop(); err != nil {
		t.Fatal(err)
	}
	if err := pub.Drop(); err != nil {
		t.Fatal(err)
	}
}

func TestPubSubPortFactoryMultiplePublishersResolveIndependentSegments(t *testing.T) {
	n, reg, _ := newNode(t)

	sb := portfactory.NewServiceBuilder(n, reg, "frames-multi")
	factory, err := portfactory.PublishSubscribe[frame](sb, pubSubDefaults()).OpenOrCreate(registry.OpenOrCreate)
	if err != nil {
		t.Fatal(err)
	}

	pubA, err := factory.Publisher()
	if err != nil {
		t.Fatal(err)
	}
	pubB, err := factory.Publisher()
	if err != nil {
		t.Fatal(err)
	}
	sub, err := factory.Subscriber()
	if err != nil {
		t.Fatal(err)
	}

	sA, _ := pubA.Loan()
	sA.Value.Seq = 1
	if err := pubA.Send(sA); err != nil {
		t.Fatal(err)
	}
	sB, _ := pubB.Loan()
	sB.Value.Seq = 2
	if err := pubB.Send(sB); err != nil {
		t.Fatal(err)
	}

	seen := map[uint64]bool{}
	for i := 0; i < 2; i++ {
		got, ok := sub.Receive()
		if !ok {
			t.Fatal("expected a sample from each publisher")
		}
		seen[got.Value.Seq] = true
		got.Release()
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected samples from both publishers, got %v", seen)
	}
}
