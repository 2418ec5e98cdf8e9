// Package kmetrics exports Prometheus instrumentation over the object
// cache's aging lists, the Depend table/RevMap, and invocation result
// counts. It is pure debug/ops tooling layered beside the engine (see
// SPEC_FULL.md §6.4) and never participates in a commit-point decision.
package kmetrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the collector registry kmetrics registers into. A fresh
// registry is used by default so tests never collide with a global
// process-wide default registry.
var Registry = prometheus.NewRegistry()

var (
	// CacheAgingGauge reports the number of frames in each (type, list)
	// pair of an ObFrameCache, e.g. {type="Page",list="active"}.
	CacheAgingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "coyotos",
		Subsystem: "objcache",
		Name:      "aging_frames",
		Help:      "Number of frames currently in a given object-cache aging list.",
	}, []string{"type", "list"})

	// DependEntries reports the current number of Depend table entries.
	DependEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coyotos",
		Subsystem: "walker",
		Name:      "depend_entries",
		Help:      "Number of entries currently tracked in the Depend table.",
	})

	// RevMapEntries reports the current number of reverse-map entries.
	RevMapEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coyotos",
		Subsystem: "walker",
		Name:      "revmap_entries",
		Help:      "Number of entries currently tracked in the reverse map.",
	})

	// InvocationResults counts completed invocations by result code.
	InvocationResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coyotos",
		Subsystem: "invoke",
		Name:      "results_total",
		Help:      "Total invocations completed, partitioned by result code.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(CacheAgingGauge, DependEntries, RevMapEntries, InvocationResults)
}
