// Package metrics exposes prometheus counters for the detection and
// dispatch pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters. A single instance is registered with
// a registry at startup and shared by the event subscriber.
type Metrics struct {
	ChangesDetected   *prometheus.CounterVec
	ChangeSetsRouted  *prometheus.CounterVec
	DispatchesTotal   *prometheus.CounterVec
	DigestsFlushed    prometheus.Counter
	DetectionFailures prometheus.Counter
}

// New creates and registers the pipeline metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChangesDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visitwatch_changes_detected_total",
			Help: "Total change records produced by the detector, by change type",
		}, []string{"type"}),

		ChangeSetsRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visitwatch_changesets_routed_total",
			Help: "Total ChangeSets routed, by decision (dispatch or accumulate)",
		}, []string{"decision"}),

		DispatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visitwatch_dispatches_total",
			Help: "Total notification dispatch attempts, by channel and status",
		}, []string{"channel", "status"}),

		DigestsFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "visitwatch_digests_flushed_total",
			Help: "Total digest queues flushed and delivered",
		}),

		DetectionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "visitwatch_detection_failures_total",
			Help: "Total detection cycles that failed for a user",
		}),
	}
}
