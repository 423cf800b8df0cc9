package registry_test

import (
	"path/filepath"
	"testing"

	"github.com/shmbus/shmbus/registry"
)

func TestDynamicConfigRegisterUnregister(t *testing.T) {
	dir := t.TempDir()
	capacity := [4]int{2, 2, 1, 1}
	dc, err := registry.CreateDynamicConfig(filepath.Join(dir, "svc.dynamic"), capacity, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	if !dc.Register(registry.KindPublisher, "port-aaa", "node-1") {
		t.Fatal("first publisher registration should succeed")
	}
	if !dc.Register(registry.KindPublisher, "port-bbb", "node-1") {
		t.Fatal("second publisher registration should succeed")
	}
	if dc.Register(registry.KindPublisher, "port-ccc", "node-1") {
		t.Fatal("registration beyond capacity should fail")
	}
	ports, nodes := dc.Entries(registry.KindPublisher)
	if len(ports) != 2 || len(nodes) != 2 {
		t.Fatalf("expected 2 entries, got %v %v", ports, nodes)
	}
	dc.Unregister(registry.KindPublisher, "port-aaa")
	ports, _ = dc.Entries(registry.KindPublisher)
	if len(ports) != 1 || ports[0] != "port-bbb" {
		t.Fatalf("expected only port-bbb to remain, got %v", ports)
	}
	if !dc.Register(registry.KindPublisher, "port-ddd", "node-2") {
		t.Fatal("slot freed by unregister should be reusable")
	}
}

func TestDynamicConfigNodes(t *testing.T) {
	dir := t.TempDir()
	capacity := [4]int{1, 1, 1, 1}
	dc, err := registry.CreateDynamicConfig(filepath.Join(dir, "svc.dynamic"), capacity, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	if !dc.RegisterNode("node-1") || !dc.RegisterNode("node-2") {
		t.Fatal("both node registrations should succeed")
	}
	if dc.RegisterNode("node-3") {
		t.Fatal("registration beyond node capacity should fail")
	}
	nodes := dc.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %v", nodes)
	}
	dc.UnregisterNode("node-1")
	if len(dc.Nodes()) != 1 {
		t.Fatal("expected 1 node after unregister")
	}
}
