package sys_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shmbus/shmbus/sys"
)

func TestSharedRegionCreateOpenGrow(t *testing.T) {
	dir := t.TempDir()
	fqn := filepath.Join(dir, "seg.data")

	r, err := sys.CreateSharedRegion(fqn, 64)
	if err != nil {
		t.Fatal(err)
	}
	copy(r.Bytes(), []byte("hello"))

	if _, err := sys.CreateSharedRegion(fqn, 64); err == nil {
		t.Fatal("expected create-on-existing to fail")
	}

	r2, err := sys.OpenSharedRegion(fqn)
	if err != nil {
		t.Fatal(err)
	}
	if string(r2.Bytes()[:5]) != "hello" {
		t.Fatalf("unexpected content: %q", r2.Bytes()[:5])
	}
	if err := r.Grow(128); err != nil {
		t.Fatal(err)
	}
	if r.Size() != 128 {
		t.Fatalf("expected size 128, got %d", r.Size())
	}
	r.Close()
	r2.Close()
	if err := r.Unlink(); err != nil {
		t.Fatal(err)
	}
	if sys.ProcessAlive(0) {
		t.Fatal("pid 0 is not a real process")
	}
}

func TestFileLockExclusivity(t *testing.T) {
	dir := t.TempDir()
	fqn := filepath.Join(dir, "node.lock")

	lock, ok, err := sys.AcquireFileLock(fqn)
	if err != nil || !ok {
		t.Fatalf("expected first lock to succeed: ok=%v err=%v", ok, err)
	}
	held, err := sys.TryLock(fqn)
	if err != nil {
		t.Fatal(err)
	}
	if !held {
		t.Fatal("expected lock to be reported held")
	}
	lock.Release()
	held, err = sys.TryLock(fqn)
	if err != nil {
		t.Fatal(err)
	}
	if held {
		t.Fatal("expected lock to be free after release")
	}
	os.Remove(fqn)
}

func TestProcessAliveSelf(t *testing.T) {
	if !sys.ProcessAlive(sys.Getpid()) {
		t.Fatal("own pid must be alive")
	}
}
