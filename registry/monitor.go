package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shmbus/shmbus/cmn/cos"
	"github.com/shmbus/shmbus/cmn/fname"
	"github.com/shmbus/shmbus/sys"
)

// MonitorToken is a Node's proof-of-life: an exclusive flock on a per-node
// file under nodes/, plus a pid+epoch record peers can read to corroborate
// file-lock monitoring with process-state monitoring.
type MonitorToken struct {
	fqn   string
	lock  *sys.FileLock
	pid   int
	epoch int64
}

// CreateMonitorToken writes pid+epoch to nodes/<nodeID>.node and takes its
// exclusive lock; the file's existence plus a held lock is what peers
// observe as "this node is alive".
func CreateMonitorToken(root, nodeID string, epoch int64) (*MonitorToken, error) {
	fqn := tokenPath(root, nodeID)
	pid := sys.Getpid()
	content := fmt.Sprintf("%d %d\n", pid, epoch)
	if err := cos.CreateFileExcl(fqn, []byte(content)); err != nil {
		return nil, err
	}
	lock, ok, err := sys.AcquireFileLock(fqn)
	if err != nil {
		os.Remove(fqn)
		return nil, err
	}
	if !ok {
		os.Remove(fqn)
		return nil, ErrHangsInCreation("monitoring token %s already locked", fqn)
	}
	return &MonitorToken{fqn: fqn, lock: lock, pid: pid, epoch: epoch}, nil
}

func tokenPath(root, nodeID string) string {
	return filepath.Join(root, fname.NodesDir, nodeID+fname.NodeSuffix)
}

// Drop releases the lock and removes the token file - the orderly-shutdown
// path. A crashed process never reaches this; its token is reclaimed by a
// survivor instead.
func (t *MonitorToken) Drop() error {
	if err := t.lock.Release(); err != nil {
		return err
	}
	return os.Remove(t.fqn)
}

// IsNodeAlive corroborates file-lock monitoring (is the token's exclusive
// lock held?) with process-state monitoring (is the recorded pid alive?). A
// missing token or an unheld lock reports dead without reading the record.
// The record's epoch field is not checked; only its pid is used.
func IsNodeAlive(root, nodeID string) (alive bool, err error) {
	fqn := tokenPath(root, nodeID)
	if !cos.FileExists(fqn) {
		return false, nil
	}
	held, err := sys.TryLock(fqn)
	if err != nil {
		return false, err
	}
	if !held {
		return false, nil
	}
	line, err := cos.ReadOneLine(fqn)
	if err != nil {
		return false, err
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return false, ErrCorrupted("monitoring token %s: malformed record %q", fqn, line)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return false, ErrCorrupted("monitoring token %s: bad pid: %v", fqn, err)
	}
	return sys.ProcessAlive(pid), nil
}
