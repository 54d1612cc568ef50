// Package metrics exposes the ambient Prometheus instrumentation this
// control plane carries regardless of the spec's Non-goals around
// observability: SSH pool occupancy per host, and fan-out latency per
// operation. Grounded on the teacher's pervasive prometheus/client_golang
// usage (every long-lived teacher subsystem registers its own gauges on
// the default registerer); this package generalizes that habit to the two
// concerns this control plane actually has concurrency over.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SSHPoolTotal is the number of live sessions (idle + leased) per host.
	SSHPoolTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dockfleet",
		Subsystem: "sshpool",
		Name:      "sessions_total",
		Help:      "Live SSH sessions per host, idle or leased.",
	}, []string{"host"})

	// SSHPoolIdle is the number of idle (unleased) sessions per host.
	SSHPoolIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dockfleet",
		Subsystem: "sshpool",
		Name:      "sessions_idle",
		Help:      "Idle SSH sessions per host, available for immediate reuse.",
	}, []string{"host"})

	// FanoutLatency records one fan-out op's wall-clock duration, labeled by
	// the handler-supplied operation name (e.g. "container.list").
	FanoutLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dockfleet",
		Subsystem: "fanout",
		Name:      "latency_seconds",
		Help:      "Wall-clock duration of one fan-out run across hosts or targets.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// ObservePoolState records a host's current idle/total session counts.
// Called by sshpool after every acquire/release/discard that changes them.
func ObservePoolState(host string, total, idle int) {
	SSHPoolTotal.WithLabelValues(host).Set(float64(total))
	SSHPoolIdle.WithLabelValues(host).Set(float64(idle))
}

// ObserveFanout records how long a named fan-out operation took.
func ObserveFanout(operation string, d time.Duration) {
	FanoutLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// Since is a small helper for the common `metrics.ObserveFanout(op,
// metrics.Since(start))` call shape at a fan-out call site.
func Since(start time.Time) time.Duration {
	return time.Since(start)
}
