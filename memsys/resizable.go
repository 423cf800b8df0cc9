package memsys

import (
	"fmt"
	"sync"
)

// Resizable is a growable chain of Segments backing slice payloads whose
// element count is not known at service-creation time. Grow-by-reallocation
// means a new, larger Segment is appended; the old one is kept reachable
// until every slot borrowed from it has been released, then retired.
//
// owned distinguishes a chain this process allocated (NewResizable) from
// one it only attached to (OpenResizable): an opened chain's free/borrowed
// bookkeeping is this process's own private view, not the writer's, so it
// must never decide to unlink a generation out from under the writer.
type Resizable struct {
	mu       sync.Mutex
	fqnBase  string
	slotSize int
	gen      int
	segs     []*Segment // oldest first; segs[len-1] is current
	owned    bool
}

func NewResizable(fqnBase string, slotSize, initialSlots int) (*Resizable, error) {
	r := &Resizable{fqnBase: fqnBase, slotSize: slotSize, owned: true}
	if err := r.grow(initialSlots); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenResizable attaches to a chain another process's NewResizable call
// created under fqnBase, without needing to be told how many generations
// it has grown into: openGenLocked discovers each generation's segment
// lazily, the first time a (gen, idx) pair naming it shows up.
func OpenResizable(fqnBase string, slotSize int) (*Resizable, error) {
	r := &Resizable{fqnBase: fqnBase, slotSize: slotSize}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.openGenLocked(0); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resizable) grow(nslots int) error {
	fqn := fmt.Sprintf("%s.g%d", r.fqnBase, r.gen)
	seg, err := NewSegment(fqn, r.slotSize, nslots)
	if err != nil {
		return err
	}
	r.gen++
	r.segs = append(r.segs, seg)
	return nil
}

// openGenLocked ensures generation gen is mapped, opening every generation
// up to it in order if this is the first time it has been referenced.
// Called with mu held.
func (r *Resizable) openGenLocked(gen int) error {
	for len(r.segs) <= gen {
		fqn := fmt.Sprintf("%s.g%d", r.fqnBase, len(r.segs))
		seg, err := OpenSegment(fqn, r.slotSize, 0)
		if err != nil {
			return err
		}
		r.segs = append(r.segs, seg)
		r.gen++
	}
	return nil
}

// Loan returns a slot from the current generation, growing to double the
// latest generation's slot count if it is exhausted.
func (r *Resizable) Loan() (gen int, idx uint32, slot []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.segs[len(r.segs)-1]
	idx, ok := cur.Loan()
	if !ok {
		if err := r.grow(cur.NumSlots() * 2); err != nil {
			return 0, 0, nil, err
		}
		cur = r.segs[len(r.segs)-1]
		idx, ok = cur.Loan()
		if !ok {
			return 0, 0, nil, fmt.Errorf("memsys: resizable segment exhausted immediately after growth")
		}
	}
	r.reapLocked()
	return len(r.segs) - 1, idx, cur.Slot(idx), nil
}

func (r *Resizable) Retain(gen int, idx uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.openGenLocked(gen); err != nil {
		return
	}
	r.segs[gen].Retain(idx)
}

// Slot returns the byte range backing (gen, idx), opening that generation
// first if this Resizable only just learned about it.
func (r *Resizable) Slot(gen int, idx uint32) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.openGenLocked(gen); err != nil {
		return nil
	}
	return r.segs[gen].Slot(idx)
}

func (r *Resizable) Release(gen int, idx uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.openGenLocked(gen); err != nil {
		return
	}
	r.segs[gen].Release(idx)
	r.reapLocked()
}

// reapLocked closes and unlinks every fully-drained generation older than
// the current one; called with mu held. A reaped generation keeps its place
// in segs, so the gen of every (gen, idx) pair keeps naming the same
// generation file. A chain this process only opened
// never reaps - its free-list is a private view, not the writer's, so
// "fully drained" here would not mean what it means for the owner.
func (r *Resizable) reapLocked() {
	if !r.owned {
		return
	}
	for i, seg := range r.segs {
		if i < len(r.segs)-1 && seg.NumFree() == seg.NumSlots() {
			seg.Close()
			seg.Unlink()
		}
	}
}

func (r *Resizable) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, seg := range r.segs {
		seg.Close()
	}
	return nil
}
