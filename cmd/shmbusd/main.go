// Package main runs a long-lived node process: it loads configuration,
// opens a Node against the registry root, and idles on a WaitSet until
// signaled, so services opened by other processes against the same root
// have a monitor token to reconcile against on reclaim.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shmbus/shmbus/cmn/nlog"
	"github.com/shmbus/shmbus/config"
	"github.com/shmbus/shmbus/hk"
	"github.com/shmbus/shmbus/node"
	"github.com/shmbus/shmbus/portfactory"
	"github.com/shmbus/shmbus/registry"
	"github.com/shmbus/shmbus/waitset"
)

const reapInterval = 10 * time.Second

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "path to a shmbusd TOML configuration file")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmbusd: load config: %v\n", err)
		os.Exit(1)
	}

	reg, err := registry.Open(cfg.Global.RootPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmbusd: open registry at %s: %v\n", cfg.Global.RootPath, err)
		os.Exit(1)
	}
	defer reg.Close()

	n, err := node.New(cfg.Global.RootPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmbusd: start node: %v\n", err)
		os.Exit(1)
	}
	defer n.Drop()

	nlog.Infof("shmbusd: node %s up under %s", n.Id(), cfg.Global.RootPath)

	ws := waitset.New()
	defer ws.Close()

	done := make(chan struct{})
	ws.AttachSignals(func(sig os.Signal) {
		nlog.Infof("shmbusd: received %v, shutting down", sig)
		close(done)
	})
	ws.AttachTick(30*time.Second, func() {
		nlog.Debugf("shmbusd: node %s heartbeat", n.Id())
	})

	hk.Reg("reap-dead-nodes", func() time.Duration {
		reg.ReapDeadNodes(func(id registry.ServiceId, kind registry.PortKind, portID string) {
			if kind == registry.KindNotifier {
				portfactory.NotifyNotifierDead(reg, id)
			}
		})
		return reapInterval
	}, reapInterval)
	go hk.DefaultHK.Run()
	defer hk.DefaultHK.Stop()

	for {
		select {
		case <-done:
			return
		default:
			ws.WaitAndProcessOnceWithTimeout(time.Second)
		}
	}
}
