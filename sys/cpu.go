// Package sys provides the platform-abstraction primitives the rest of the
// core builds on: shared memory regions, advisory file locks, process
// liveness probes, and basic host information.
package sys

import (
	"os"
	"runtime"

	"github.com/shmbus/shmbus/cmn/nlog"
)

const maxProcsEnvVar = "GOMAXPROCS"

func NumCPU() int { return runtime.NumCPU() }

// SetMaxProcs caps GOMAXPROCS at NumCPU unless the caller already overrode it
// via the Go environment.
func SetMaxProcs() {
	if val, exists := os.LookupEnv(maxProcsEnvVar); exists {
		nlog.Warningf("GOMAXPROCS is set via Go environment %q: %q", maxProcsEnvVar, val)
		return
	}
	maxprocs := runtime.GOMAXPROCS(0)
	ncpu := NumCPU()
	if maxprocs > ncpu {
		runtime.GOMAXPROCS(ncpu)
	}
}
