package registry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
	"github.com/tidwall/buntdb"
	"golang.org/x/sync/singleflight"

	"github.com/shmbus/shmbus/cmn/cos"
	"github.com/shmbus/shmbus/cmn/fname"
	"github.com/shmbus/shmbus/cmn/nlog"
	"github.com/karrick/godirwalk"
)

// WalkDecision is returned by a list() callback to continue or stop the scan.
type WalkDecision uint8

const (
	Continue WalkDecision = iota
	Stop
)

// Summary is what list() hands its callback for each discovered service -
// enough to filter without touching DynamicConfig.
type Summary struct {
	Id   ServiceId
	Name ServiceName
	Path string
}

// Registry is the filesystem-backed directory of services plus an
// in-process accelerant cache: a buntdb-backed map from ServiceId to the
// static config this process last created or attached to (never
// invalidated; openStaticConfig reads it before the file on disk), and a
// cuckoo filter of the ServiceIds this process has created or attached to,
// which DoesExist consults before it stats the filesystem.
type Registry struct {
	root string

	cacheMu sync.RWMutex
	cache   *buntdb.DB
	filter  *cuckoo.Filter

	group singleflight.Group
}

func Open(root string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Join(root, fname.ServicesDir), 0o755); err != nil {
		return nil, err
	}
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Registry{
		root:   root,
		cache:  db,
		filter: cuckoo.NewFilter(4096),
	}, nil
}

func (r *Registry) Close() error { return r.cache.Close() }

func (r *Registry) servicesDir() string { return filepath.Join(r.root, fname.ServicesDir) }

func (r *Registry) staticConfigPath(id ServiceId) string {
	return filepath.Join(r.servicesDir(), string(id)+fname.StaticSuffix)
}

func (r *Registry) dynamicConfigPath(id ServiceId) string {
	return filepath.Join(r.servicesDir(), string(id)+fname.DynamicSuffix)
}

// DataSegmentFqnBase returns the path prefix a publish-subscribe service's
// data segment chain is built under; memsys.Resizable appends the
// generation suffix (.g<n>) itself.
func (r *Registry) DataSegmentFqnBase(id ServiceId, publisherPortId string) string {
	return filepath.Join(r.servicesDir(), string(id)+".data."+publisherPortId)
}

// List streams every static-config file under the registry root, invoking
// cb with a Summary for each; it stops as soon as cb returns Stop. Uses a
// single-allocation directory walker so scanning a large registry does not
// build an intermediate slice of every service.
func (r *Registry) List(cb func(Summary) WalkDecision) error {
	stopped := false
	err := godirwalk.Walk(r.servicesDir(), &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if stopped {
				return filepath.SkipDir
			}
			if de.IsDir() || !strings.HasSuffix(osPathname, fname.StaticSuffix) {
				return nil
			}
			data, err := os.ReadFile(osPathname)
			if err != nil {
				nlog.Warningf("list: skipping unreadable %s: %v", osPathname, err)
				return nil
			}
			sc, err := UnmarshalStaticConfig(data)
			if err != nil {
				nlog.Warningf("list: skipping corrupted %s: %v", osPathname, err)
				return nil
			}
			if cb(Summary{Id: sc.Id, Name: sc.Name, Path: osPathname}) == Stop {
				stopped = true
			}
			return nil
		},
	})
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DoesExist hashes the candidate ServiceId for name under pattern/types and
// reports whether its static-config file is present, consulting the cuckoo
// filter first so a process that has never seen this id avoids a stat call.
func (r *Registry) DoesExist(name ServiceName, pattern Pattern, payload, header TypeDetail, configPrefix string) (ServiceId, bool) {
	id := ComputeServiceId(name, pattern, payload, header, configPrefix)
	key := []byte(id)
	if !r.filter.Lookup(key) {
		return id, false
	}
	return id, cos.FileExists(r.staticConfigPath(id))
}

func (r *Registry) rememberExists(id ServiceId) {
	r.filter.InsertUnique([]byte(id))
}

func (r *Registry) cacheGet(id ServiceId) (*StaticConfig, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	var raw string
	err := r.cache.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(string(id))
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err != nil {
		return nil, false
	}
	sc, err := UnmarshalStaticConfig([]byte(raw))
	if err != nil {
		return nil, false
	}
	return sc, true
}

func (r *Registry) cachePut(sc *StaticConfig) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(string(sc.Id), string(sc.Marshal()), nil)
		return err
	})
}
