// Package metrics is the ambient Prometheus surface shared by registry,
// pubsub, and waitset: a small set of counters a host process can mount
// under its own /metrics handler. This is observability, not a transport -
// nothing in this core depends on these being scraped.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ServicesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shmbus_services_total",
		Help: "Number of services currently present in the registry.",
	})
	ReclaimedNodesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmbus_reclaimed_nodes_total",
		Help: "Number of dead nodes reclaimed by the housekeeping sweep.",
	})
	WaitSetWakeupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmbus_waitset_wakeups_total",
		Help: "Number of times a WaitSet's wait loop returned with fired attachments.",
	})
	SamplesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmbus_samples_sent_total",
		Help: "Number of samples successfully delivered by a Publisher.",
	})
)

// Register adds this package's collectors to reg; callers that don't want
// ambient metrics simply never call it.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{ServicesTotal, ReclaimedNodesTotal, WaitSetWakeupsTotal, SamplesSentTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
