// Package metrics registers the Prometheus collectors for the runtime. The
// call engine feeds the call and rejection counters and the scheduler feeds
// the formation gauges and missed-execution counter; the stage-latency
// histogram and the breathing gauges are registered but nothing in the
// runtime records into them. It does not run an HTTP exporter;
// registering on the default registry lets a host process mount /metrics
// itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal counts every Call() invocation by channel and outcome.
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyre_calls_total",
			Help: "Total number of channel calls by outcome",
		},
		[]string{"channel", "outcome"},
	)

	// RejectionsTotal counts calls rejected by the bouncer or compiler, by reason.
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyre_rejections_total",
			Help: "Total number of rejected calls by reason",
		},
		[]string{"channel", "reason"},
	)

	// StageLatencySeconds measures per-stage pipeline latency.
	StageLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cyre_stage_latency_seconds",
			Help:    "Latency of compiled pipeline stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		},
		[]string{"channel", "stage"},
	)

	// ActiveFormations tracks the number of formations currently held by the
	// scheduler, by status.
	ActiveFormations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyre_active_formations",
			Help: "Current number of scheduled formations by status",
		},
		[]string{"status"},
	)

	// MissedExecutionsTotal counts formations deferred while recuperating.
	MissedExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyre_missed_executions_total",
			Help: "Total number of formation executions deferred by breathing recuperation",
		},
		[]string{"formation"},
	)

	// BreathingStress reports the current stress value in [0,1].
	BreathingStress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyre_breathing_stress",
			Help: "Current breathing controller stress value, 0 to 1",
		},
	)

	// BreathingRecuperating reports 1 when the controller is in recuperation.
	BreathingRecuperating = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyre_breathing_recuperating",
			Help: "1 when the breathing controller is in recuperation, 0 otherwise",
		},
	)
)

// Outcome labels for CallsTotal, matching cyrecore.Response.OK semantics.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Formation status labels for ActiveFormations, mirroring timekeeper.Status.
const (
	FormationActive    = "active"
	FormationPaused    = "paused"
	FormationCompleted = "completed"
	FormationFailed    = "failed"
)
