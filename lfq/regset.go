package lfq

import (
	"sort"
	"sync"

	"github.com/shmbus/shmbus/cmn/cos"
)

// RegSet is a fixed-capacity, mutex-guarded registration table mapping a
// UniquePortId's text form to an arbitrary slot value, publishing "who is
// currently attached" without the reader needing its own lock - reads take
// a brief RLock and copy out a snapshot slice. registry.DynamicConfig does
// not use it; its port tables are seqlock slot records in shared memory.
type RegSet struct {
	mu   sync.RWMutex
	cap  int
	byID map[string]any
}

func NewRegSet(capacity int) *RegSet {
	return &RegSet{cap: capacity, byID: make(map[string]any, capacity)}
}

var ErrFull = cos.NewErrNotFound("capacity")

// Register adds id->val; returns false if the set is already at capacity or
// id is already present.
func (s *RegSet) Register(id string, val any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; exists {
		return false
	}
	if len(s.byID) >= s.cap {
		return false
	}
	s.byID[id] = val
	return true
}

func (s *RegSet) Unregister(id string) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

func (s *RegSet) Get(id string) (val any, ok bool) {
	s.mu.RLock()
	val, ok = s.byID[id]
	s.mu.RUnlock()
	return
}

// Snapshot returns a stable copy of all registered ids, sorted so that
// callers resolving a connection-creation race by lexicographic UniquePortId
// comparison see a deterministic order.
func (s *RegSet) Snapshot() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *RegSet) Len() int {
	s.mu.RLock()
	n := len(s.byID)
	s.mu.RUnlock()
	return n
}
