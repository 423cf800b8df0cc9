// Package node implements the process-scoped participant: construction and
// orderly teardown of a Node's monitoring token, and the registry of
// services it has opened through this node.
package node

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shmbus/shmbus/cmn/cos"
	"github.com/shmbus/shmbus/cmn/nlog"
	"github.com/shmbus/shmbus/registry"
)

// Node is a process-level participant: exactly one per process is the
// common root from which every Service/port is built.
type Node struct {
	id   string
	root string

	mu       sync.Mutex
	token    *registry.MonitorToken
	attrs    map[string]string
	services map[registry.ServiceId]*registry.Service
	dropped  bool
}

// New creates the monitoring token under root/nodes/ and returns a live
// Node; the caller must call Drop on orderly shutdown.
func New(root string) (*Node, error) {
	id := cos.GenNodeID()
	epoch := registry.NewEpoch()
	cos.InitIDGen(uint64(epoch))
	token, err := registry.CreateMonitorToken(root, id, epoch)
	if err != nil {
		return nil, err
	}
	n := &Node{
		id:       id,
		root:     root,
		token:    token,
		attrs:    make(map[string]string),
		services: make(map[registry.ServiceId]*registry.Service),
	}
	if exe, err := os.Executable(); err == nil {
		n.attrs["executable"] = filepath.Base(exe)
	}
	return n, nil
}

func (n *Node) Id() string   { return n.id }
func (n *Node) Root() string { return n.root }

// NewUniquePortId mints a fresh text identity for a Publisher, Subscriber,
// Notifier, or Listener this node is about to open. Two ports racing to
// create the same connection resolve the tie by comparing these strings
// lexicographically (see pubsub.ResolveCreator), so the text form - not
// creation order - is the only thing that needs to be unique and stable.
func (n *Node) NewUniquePortId() string { return cos.GenUniquePortIDText() }

// SetAttribute attaches user key-value metadata to the node; follows the
// attribute-set idiom of a typed AttributeSet/AttributeSpecifier without
// introducing a separate builder type, since this core only ever reads the
// flat set back, never negotiates it against a peer's specifier.
func (n *Node) SetAttribute(key, val string) {
	n.mu.Lock()
	n.attrs[key] = val
	n.mu.Unlock()
}

// Attributes returns a copy of the attribute set; being a map, it carries
// no key order.
func (n *Node) Attributes() map[string]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]string, len(n.attrs))
	for k, v := range n.attrs {
		out[k] = v
	}
	return out
}

// sortedAttrKeys returns attribute keys in deterministic order, used when
// rendering the attribute set for logging.
func (n *Node) sortedAttrKeys() []string {
	keys := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the node id plus a deterministically ordered attribute
// list, for nlog call sites that log a Node's identity.
func (n *Node) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.id
	for _, k := range n.sortedAttrKeys() {
		s += " " + k + "=" + n.attrs[k]
	}
	return s
}

// track records a Service this node opened, so Drop can deregister it.
func (n *Node) track(svc *registry.Service) {
	n.mu.Lock()
	n.services[svc.Static.Id] = svc
	n.mu.Unlock()
}

// Drop deregisters from every Service this node touched, then removes its
// monitoring token. Idempotent: a second call is a no-op.
func (n *Node) Drop() error {
	n.mu.Lock()
	if n.dropped {
		n.mu.Unlock()
		return nil
	}
	n.dropped = true
	services := n.services
	n.services = nil
	n.mu.Unlock()

	for id, svc := range services {
		for kind := registry.PortKind(0); kind < 4; kind++ {
			ports, nodes := svc.Dynamic.Entries(kind)
			for i, owner := range nodes {
				if owner == n.id {
					svc.Dynamic.Unregister(kind, ports[i])
				}
			}
		}
		svc.Dynamic.UnregisterNode(n.id)
		if err := svc.Dynamic.Close(); err != nil {
			nlog.Warningf("node %s: close dynamic config for %s: %v", n.id, id, err)
		}
	}
	return n.token.Drop()
}
