package sys

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/shmbus/shmbus/cmn/cos"
	"github.com/shmbus/shmbus/cmn/debug"
)

// SharedRegion is an mmap-backed POSIX shared memory segment: the low-level
// substrate DataSegment and the registry's DynamicConfig files are built on
// top of (a StaticConfig is a plain file, not a SharedRegion). A zero-length region is never mapped; Bytes returns
// nil until Create or Open has run.
type SharedRegion struct {
	name string
	fqn  string
	mem  []byte
	size int
	f    *os.File
	own  bool
}

// CreateSharedRegion creates and maps a new region of the given size at fqn,
// failing with os.ErrExist if the backing file is already present - the
// create-or-open protocol relies on this to detect a race with a concurrent
// creator.
func CreateSharedRegion(fqn string, size int) (*SharedRegion, error) {
	f, err := os.OpenFile(fqn, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(fqn)
		return nil, err
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(fqn)
		return nil, err
	}
	return &SharedRegion{name: fqn, fqn: fqn, mem: mem, size: size, f: f, own: true}, nil
}

// OpenSharedRegion maps an existing region at fqn read-write; there is no
// read-only variant.
func OpenSharedRegion(fqn string) (*SharedRegion, error) {
	f, err := os.OpenFile(fqn, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := int(fi.Size())
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("shm %s: empty region", fqn)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &SharedRegion{name: fqn, fqn: fqn, mem: mem, size: size, f: f}, nil
}

func (r *SharedRegion) Bytes() []byte { return r.mem }
func (r *SharedRegion) Size() int     { return r.size }
func (r *SharedRegion) Name() string  { return r.name }

// Grow extends the region in place via truncate+remap. memsys.Resizable does
// not use it: it grows by adding a new generation segment instead.
func (r *SharedRegion) Grow(newSize int) error {
	debug.Assert(newSize > r.size)
	if err := r.f.Truncate(int64(newSize)); err != nil {
		return err
	}
	if err := unix.Munmap(r.mem); err != nil {
		return err
	}
	mem, err := unix.Mmap(int(r.f.Fd()), 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	r.mem, r.size = mem, newSize
	return nil
}

func (r *SharedRegion) Close() error {
	if r.mem != nil {
		unix.Munmap(r.mem)
		r.mem = nil
	}
	if r.f != nil {
		r.f.Close()
		r.f = nil
	}
	return nil
}

// Unlink removes the backing file if it is still present; mappings that
// other holders already have stay valid until they close them.
func (r *SharedRegion) Unlink() error {
	if !cos.FileExists(r.fqn) {
		return nil
	}
	return os.Remove(r.fqn)
}
