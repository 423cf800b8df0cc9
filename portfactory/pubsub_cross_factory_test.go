package portfactory_test

import (
	"testing"

	"github.com/shmbus/shmbus/node"
	"github.com/shmbus/shmbus/portfactory"
	"github.com/shmbus/shmbus/registry"
)

// TestPubSubPortFactoryCrossFactoryRoundTrip opens two independent
// registries/nodes/factories against the same root directory - the closest
// this process can get to two genuinely separate processes attached to the
// same service - and checks a sample published through one factory's
// Publisher is resolvable and receivable through the other factory's
// Subscriber. Both factories share the connection table and data cache
// kept per service in sharedstate.go, so the Subscriber resolves the
// Publisher's segment chain from that cache; dataFor's OpenResizable
// fallback is not reached here.
func TestPubSubPortFactoryCrossFactoryRoundTrip(t *testing.T) {
	dir := t.TempDir()

	regA, err := registry.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer regA.Close()
	nodeA, err := node.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer nodeA.Drop()

	regB, err := registry.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer regB.Close()
	nodeB, err := node.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer nodeB.Drop()

	sbA := portfactory.NewServiceBuilder(nodeA, regA, "frames-cross")
	factoryA, err := portfactory.PublishSubscribe[frame](sbA, pubSubDefaults()).OpenOrCreate(registry.OpenOrCreate)
	if err != nil {
		t.Fatal(err)
	}

	sbB := portfactory.NewServiceBuilder(nodeB, regB, "frames-cross")
	factoryB, err := portfactory.PublishSubscribe[frame](sbB, pubSubDefaults()).OpenOrCreate(registry.OpenOrCreate)
	if err != nil {
		t.Fatal(err)
	}

	pub, err := factoryA.Publisher()
	if err != nil {
		t.Fatal(err)
	}
	sub, err := factoryB.Subscriber()
	if err != nil {
		t.Fatal(err)
	}

	s, err := pub.Loan()
	if err != nil {
		t.Fatal(err)
	}
	s.Value.Seq = 99
	if err := pub.Send(s); err != nil {
		t.Fatal(err)
	}

	var got *portfactory.TypedSample[frame]
	for i := 0; i < 10 && got == nil; i++ {
		if sample, ok := sub.Receive(); ok {
			got = sample
		}
	}
	if got == nil {
		t.Fatal("expected the cross-factory subscriber to receive a sample")
	}
	if got.Value.Seq != 99 {
		t.Fatalf("expected seq 99, got %d", got.Value.Seq)
	}
	got.Release()

	if err := sub.Drop(); err != nil {
		t.Fatal(err)
	}
	if err := pub.Drop(); err != nil {
		t.Fatal(err)
	}
}
