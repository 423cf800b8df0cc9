package registry

import (
	"os"

	"github.com/shmbus/shmbus/cmn/mono"
	"github.com/shmbus/shmbus/metrics"
	"github.com/shmbus/shmbus/sys"
)

// OpenMode distinguishes "create only if absent, otherwise open with
// compatibility checks" (OpenOrCreate) from CreateOnly, which also attaches
// to an existing service but only if its payload/header types and
// publisher/subscriber maxima match the request exactly — both run through
// the same protocol, differing only in how strictly step 5 compares.
type OpenMode uint8

const (
	OpenOrCreate OpenMode = iota
	CreateOnly
)

// Service is the live handle returned by OpenOrCreate: the persisted
// StaticConfig plus the opened DynamicConfig shared-memory block.
type Service struct {
	Static  *StaticConfig
	Dynamic *DynamicConfig
}

// portCapacities derives DynamicConfig table sizes from the requested
// maxima; notifiers/listeners default to publishers/subscribers since the
// spec does not give the event pattern independent maxima.
func portCapacities(want *StaticConfig) [numKinds]int {
	var cap [numKinds]int
	cap[KindPublisher] = int(want.MaxPublishers)
	cap[KindSubscriber] = int(want.MaxSubscribers)
	cap[KindNotifier] = int(want.MaxPublishers)
	cap[KindListener] = int(want.MaxSubscribers)
	return cap
}

// OpenOrCreateService runs the five-step create-or-open protocol: compute
// the candidate id, take the per-id file lock, then either validate and
// attach to an existing static config or create a fresh one. nodeID is
// registered into the resulting DynamicConfig's node table before the lock
// is released.
func (r *Registry) OpenOrCreateService(want *StaticConfig, mode OpenMode, nodeID string) (*Service, error) {
	result, err, _ := r.group.Do(string(want.Id)+"/"+nodeID, func() (any, error) {
		return r.openOrCreateLocked(want, mode, nodeID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Service), nil
}

func (r *Registry) openOrCreateLocked(want *StaticConfig, mode OpenMode, nodeID string) (*Service, error) {
	staticFqn := r.staticConfigPath(want.Id)
	lockFqn := staticFqn + ".lock"

	lock, ok, err := sys.AcquireFileLock(lockFqn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHangsInCreation("service %s: create-or-open lock held by another process", want.Name)
	}
	defer lock.Release()

	data, err := os.ReadFile(staticFqn)
	switch {
	case err == nil:
		return r.attachExisting(data, want, mode, nodeID, staticFqn)
	case os.IsNotExist(err):
		return r.createFresh(want, nodeID, staticFqn)
	default:
		return nil, err
	}
}

func (r *Registry) attachExisting(data []byte, want *StaticConfig, mode OpenMode, nodeID, staticFqn string) (*Service, error) {
	persisted, err := UnmarshalStaticConfig(data)
	if err != nil {
		return r.reclaimCorrupted(want, nodeID, staticFqn, err)
	}
	if mode == CreateOnly {
		if !persisted.Payload.Equal(want.Payload) || !persisted.Header.Equal(want.Header) ||
			persisted.MaxPublishers != want.MaxPublishers || persisted.MaxSubscribers != want.MaxSubscribers {
			return nil, ErrIncompatibleType("create-only: existing service %s does not match exactly", want.Name)
		}
	} else if err := persisted.CompatibleForOpen(want); err != nil {
		return nil, err
	}
	dyn, err := OpenDynamicConfig(r.dynamicConfigPath(persisted.Id), portCapacities(persisted), defaultNodeCap)
	if err != nil {
		return r.reclaimCorrupted(want, nodeID, staticFqn, err)
	}
	if !dyn.RegisterNode(nodeID) {
		dyn.Close()
		return nil, ErrExceedsMaxSupported("nodes")
	}
	r.rememberExists(persisted.Id)
	r.cachePut(persisted)
	return &Service{Static: persisted, Dynamic: dyn}, nil
}

const defaultNodeCap = 64

func (r *Registry) createFresh(want *StaticConfig, nodeID, staticFqn string) (*Service, error) {
	dyn, err := CreateDynamicConfig(r.dynamicConfigPath(want.Id), portCapacities(want), defaultNodeCap)
	if err != nil {
		return nil, err
	}
	if !dyn.RegisterNode(nodeID) {
		dyn.Close()
		dyn.Unlink()
		return nil, ErrExceedsMaxSupported("nodes")
	}
	if err := os.WriteFile(staticFqn+".tmp", want.Marshal(), 0o644); err != nil {
		dyn.Close()
		dyn.Unlink()
		return nil, err
	}
	if err := os.Rename(staticFqn+".tmp", staticFqn); err != nil {
		dyn.Close()
		dyn.Unlink()
		return nil, err
	}
	r.rememberExists(want.Id)
	r.cachePut(want)
	metrics.ServicesTotal.Inc()
	return &Service{Static: want, Dynamic: dyn}, nil
}

// reclaimCorrupted implements the failure semantics of §4.1: a corrupted
// static config is removed and creation retried once iff no live node is
// registered against it; otherwise the corruption is reported as-is.
func (r *Registry) reclaimCorrupted(want *StaticConfig, nodeID, staticFqn string, cause error) (*Service, error) {
	dynFqn := r.dynamicConfigPath(want.Id)
	var anyLive bool
	if dyn, err := OpenDynamicConfig(dynFqn, portCapacities(want), defaultNodeCap); err == nil {
		for _, node := range dyn.Nodes() {
			if alive, _ := IsNodeAlive(r.root, node); alive {
				anyLive = true
				break
			}
		}
		dyn.Close()
	}
	if anyLive {
		return nil, ErrCorrupted("service %s is corrupted and has live participants: %v", want.Name, cause)
	}
	os.Remove(staticFqn)
	os.Remove(dynFqn)
	return r.createFresh(want, nodeID, staticFqn)
}

// NewEpoch returns the cmn/mono clock reading recorded in a monitoring
// token's epoch field. In the default build that clock counts from this
// process's start, and IsNodeAlive does not compare epochs, so the value
// does not tell a restarted process from its predecessor.
func NewEpoch() int64 { return mono.NanoTime() }
