package node_test

import (
	"testing"

	"github.com/shmbus/shmbus/node"
	"github.com/shmbus/shmbus/registry"
)

func sampleConfig(id registry.ServiceId) *registry.StaticConfig {
	payload := registry.TypeDetail{Variant: registry.FixedSize, TypeName: "demo.Frame", Size: 64, Alignment: 8}
	header := registry.TypeDetail{Variant: registry.FixedSize, TypeName: "demo.Header", Size: 16, Alignment: 8}
	return &registry.StaticConfig{
		Id: id, Name: "demo", Pattern: registry.PatternPublishSubscribe,
		Payload: payload, Header: header,
		MaxPublishers: 2, MaxSubscribers: 2, SubscriberBufferSize: 4, HistorySize: 1,
	}
}

func TestNodeLifecycleDeregistersOnDrop(t *testing.T) {
	dir := t.TempDir()
	reg, err := registry.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	n, err := node.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	n.SetAttribute("executable", "demo")

	id := registry.ComputeServiceId("demo", registry.PatternPublishSubscribe,
		registry.TypeDetail{Variant: registry.FixedSize, TypeName: "demo.Frame", Size: 64, Alignment: 8},
		registry.TypeDetail{Variant: registry.FixedSize, TypeName: "demo.Header", Size: 16, Alignment: 8}, "")
	want := sampleConfig(id)

	svc, err := n.OpenOrCreateService(reg, want, registry.OpenOrCreate)
	if err != nil {
		t.Fatal(err)
	}
	if len(svc.Dynamic.Nodes()) != 1 {
		t.Fatalf("expected 1 registered node, got %v", svc.Dynamic.Nodes())
	}

	if err := n.Drop(); err != nil {
		t.Fatal(err)
	}
	dynFqn := dir + "/services/" + string(id) + ".dynamic"
	reopened, err := registry.OpenDynamicConfig(dynFqn, [4]int{2, 2, 2, 2}, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if len(reopened.Nodes()) != 0 {
		t.Fatalf("expected node to be deregistered after Drop, got %v", reopened.Nodes())
	}

	alive, err := registry.IsNodeAlive(dir, n.Id())
	if err != nil {
		t.Fatal(err)
	}
	if alive {
		t.Fatal("node should be dead after Drop")
	}

	if err := n.Drop(); err != nil {
		t.Fatalf("second Drop should be a no-op, got %v", err)
	}
}
