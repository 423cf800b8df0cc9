package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// FileLock is an advisory, whole-file flock(2) lock: a Node's monitoring
// token holds one for its own lifetime so that a reclaimer can tell a live
// process from a crashed one by attempting a non-blocking exclusive lock -
// success means the owner is gone.
type FileLock struct {
	f *os.File
}

// AcquireFileLock opens (creating if needed) fqn and takes an exclusive,
// non-blocking flock. ok is false, err is nil when the lock is already held
// by another process - the caller should treat that as "still alive".
func AcquireFileLock(fqn string) (lock *FileLock, ok bool, err error) {
	f, err := os.OpenFile(fqn, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &FileLock{f: f}, true, nil
}

// TryLock probes whether fqn's lock is currently held by taking a
// non-blocking exclusive flock on a separate descriptor and, if that
// succeeds, releasing it at once - so the probe never keeps the lock.
func TryLock(fqn string) (held bool, err error) {
	f, err := os.OpenFile(fqn, os.O_RDONLY, 0o644)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return true, nil
		}
		return false, err
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false, nil
}

func (l *FileLock) Release() error {
	if l.f == nil {
		return nil
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
