package registry

import (
	"os"

	"github.com/shmbus/shmbus/cmn/nlog"
	"github.com/shmbus/shmbus/metrics"
)

// ReapDeadNodes scans every service's DynamicConfig and every registered
// node; for each node that IsNodeAlive does not report alive (token
// missing, lock not held, recorded pid gone, or token unreadable), it
// deregisters that node and every port it owned, so a crashed
// process's share of a service's slot tables does not sit unreclaimed
// forever waiting for a survivor to notice on the hot path. onDeadPort, if
// non-nil, is invoked for every port unregistered this way - notifier dead
// events ride along on this same sweep rather than running a second one.
func (r *Registry) ReapDeadNodes(onDeadPort func(id ServiceId, kind PortKind, portID string)) {
	count := 0
	err := r.List(func(sum Summary) WalkDecision {
		sc, err := r.openStaticConfig(sum.Id)
		if err != nil {
			return Continue
		}
		dyn, err := OpenDynamicConfig(r.dynamicConfigPath(sum.Id), portCapacities(sc), defaultNodeCap)
		if err != nil {
			return Continue
		}
		for _, nodeID := range dyn.Nodes() {
			alive, err := IsNodeAlive(r.root, nodeID)
			if err == nil && alive {
				continue
			}
			reapNode(sum.Id, dyn, nodeID, onDeadPort)
			count++
		}
		dyn.Close()
		return Continue
	})
	if err != nil {
		nlog.Warningf("reap dead nodes: %v", err)
		return
	}
	if count > 0 {
		nlog.Infof("reap dead nodes: reclaimed %d node(s)", count)
		metrics.ReclaimedNodesTotal.Add(float64(count))
	}
}

func reapNode(id ServiceId, dyn *DynamicConfig, nodeID string, onDeadPort func(id ServiceId, kind PortKind, portID string)) {
	for kind := PortKind(0); kind < numKinds; kind++ {
		ports, nodes := dyn.Entries(kind)
		for i, n := range nodes {
			if n != nodeID {
				continue
			}
			dyn.Unregister(kind, ports[i])
			if onDeadPort != nil {
				onDeadPort(id, kind, ports[i])
			}
		}
	}
	dyn.UnregisterNode(nodeID)
}

func (r *Registry) openStaticConfig(id ServiceId) (*StaticConfig, error) {
	if sc, ok := r.cacheGet(id); ok {
		return sc, nil
	}
	data, err := os.ReadFile(r.staticConfigPath(id))
	if err != nil {
		return nil, err
	}
	return UnmarshalStaticConfig(data)
}
