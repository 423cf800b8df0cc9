package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// ProcessAlive reports whether pid still names a live process, via the
// conventional kill(pid, 0) probe. It is a coarse, PID-reuse-vulnerable
// signal on its own - the registry's reclaimer always pairs it with a
// monitoring-token file-lock check rather than trusting it alone.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}

func Getpid() int { return os.Getpid() }
