package node

import (
	"time"

	"github.com/shmbus/shmbus/registry"
)

const (
	createLockRetryDelay = 20 * time.Millisecond
	createLockRetryBound = 10
)

// OpenOrCreateService runs the registry's create-or-open protocol under
// this node's identity and tracks the result so Drop can deregister it.
// A peer racing to create the same service briefly holds the per-id file
// lock; rather than surface that as a hard failure, this retries a bounded
// number of times with a fixed sleep, since the lock is only ever held for
// the few syscalls open_or_create needs to finish.
func (n *Node) OpenOrCreateService(reg *registry.Registry, want *registry.StaticConfig, mode registry.OpenMode) (*registry.Service, error) {
	var svc *registry.Service
	var err error
	for attempt := 0; attempt <= createLockRetryBound; attempt++ {
		svc, err = reg.OpenOrCreateService(want, mode, n.id)
		if err == nil || registry.Kind(err) != "HangsInCreation" {
			break
		}
		time.Sleep(createLockRetryDelay)
	}
	if err != nil {
		return nil, err
	}
	n.track(svc)
	return svc, nil
}
