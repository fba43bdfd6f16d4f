package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Solver Metrics ─────────────────────────────────────────────────────────

var SolverRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fhops",
	Subsystem: "solver",
	Name:      "runs_total",
	Help:      "Total solver runs started, by algorithm.",
}, []string{"algorithm"})

var SolverObjective = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fhops",
	Subsystem: "solver",
	Name:      "objective",
	Help:      "Best objective value of the most recently completed run, by scenario.",
}, []string{"scenario"})

var SolverIterationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "fhops",
	Subsystem: "solver",
	Name:      "iteration_duration_seconds",
	Help:      "Wall-clock duration of one solver iteration batch.",
}, []string{"algorithm"})

var SolverTimeLimitReached = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fhops",
	Subsystem: "solver",
	Name:      "time_limit_reached_total",
	Help:      "Total runs that returned the best-known schedule at their wall-clock deadline.",
}, []string{"algorithm"})

// ─── Operator Metrics ───────────────────────────────────────────────────────

var OperatorProposals = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fhops",
	Subsystem: "operator",
	Name:      "proposals_total",
	Help:      "Total candidate moves proposed, by operator name.",
}, []string{"operator"})

var OperatorAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fhops",
	Subsystem: "operator",
	Name:      "accepted_total",
	Help:      "Total candidate moves accepted, by operator name.",
}, []string{"operator"})

// ─── Playback / KPI Metrics ─────────────────────────────────────────────────

var PlaybackTotalProduction = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fhops",
	Subsystem: "playback",
	Name:      "total_production",
	Help:      "Total production of the most recently replayed schedule, by scenario.",
}, []string{"scenario"})

var PlaybackSequencingViolations = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fhops",
	Subsystem: "playback",
	Name:      "sequencing_violations",
	Help:      "Sequencing violation count of the most recently replayed schedule, by scenario.",
}, []string{"scenario"})

var PlaybackRepairUsageAlert = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fhops",
	Subsystem: "playback",
	Name:      "repair_usage_alert",
	Help:      "Whether the most recently replayed schedule used a non-default repair-usage bucket (0/1), by scenario.",
}, []string{"scenario"})

// ─── Controller Metrics ─────────────────────────────────────────────────────

var ControllerWindowsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "fhops",
	Subsystem: "controller",
	Name:      "windows_total",
	Help:      "Total rolling-horizon windows solved across all controller runs.",
})

var ControllerWatcherClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "fhops",
	Subsystem: "controller",
	Name:      "watcher_clients",
	Help:      "Current number of connected watcher-feed SSE clients across all runs.",
})
