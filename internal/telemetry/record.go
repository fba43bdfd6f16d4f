package telemetry

import (
	"encoding/json"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/fhops/fhops/internal/heuristic"
	"github.com/fhops/fhops/internal/infra/sqlite"
	"github.com/fhops/fhops/internal/playback"
)

// NewRunID mints a run identifier, grounded on the teacher's use of
// google/uuid for opaque entity ids throughout internal/domain.
func NewRunID() string { return uuid.NewString() }

// RunMeta carries the caller-supplied fields a Result/KPIBundle cannot
// derive on its own (§4.6 run record: source, scenario, solver, seed,
// config).
type RunMeta struct {
	RunID     string
	Timestamp string
	Source    string
	Scenario  string
	Solver    string
	Seed      int64
	Config    any
}

// Recorder bridges a completed (or in-progress) solver run to the
// JSONL log, the optional sqlite mirror, the optional watcher feed,
// and the Prometheus metrics — the single place that fans a solver's
// heuristic.Result out to every telemetry surface named in §4.6.
type Recorder struct {
	Runs  *Writer
	Steps *Writer // nil to skip the sibling step log
	DB    *sqlite.DB // nil disables the relational mirror
	Feed  *Feed      // nil disables the watcher feed
	Log   *log.Logger
}

func (r *Recorder) logger() *log.Logger {
	if r.Log != nil {
		return r.Log
	}
	return log.Default()
}

// RecordResult writes the run record, every step record, and the KPI
// mirror for one completed solver run, and pushes a final Snapshot to
// the watcher feed if attached.
func (r *Recorder) RecordResult(meta RunMeta, res heuristic.Result, kpi playback.KPIBundle) {
	opStats, err := json.Marshal(res.OperatorStats)
	if err != nil {
		r.logger().Printf("[telemetry] marshal operator stats failed: %v", err)
		opStats = []byte("[]")
	}
	kpiJSON, err := json.Marshal(kpi)
	if err != nil {
		r.logger().Printf("[telemetry] marshal kpis failed: %v", err)
		kpiJSON = []byte("{}")
	}
	cfgJSON, err := json.Marshal(meta.Config)
	if err != nil {
		r.logger().Printf("[telemetry] marshal config failed: %v", err)
		cfgJSON = []byte("{}")
	}

	run := RunRecord{
		SchemaVersion:    SchemaVersion,
		Timestamp:        meta.Timestamp,
		Source:           meta.Source,
		Scenario:         meta.Scenario,
		Solver:           meta.Solver,
		Seed:             meta.Seed,
		Iterations:       len(res.Steps),
		Config:           cfgJSON,
		Objective:        res.Score.Total(),
		KPIs:             kpiJSON,
		OperatorsConfig:  cfgJSON,
		OperatorsStats:   opStats,
		TimeLimitReached: res.TimeLimitReached,
		RepairUsageAlert: kpi.RepairUsageAlert,
	}
	if r.Runs != nil {
		r.Runs.Submit(run)
	}

	if r.Steps != nil {
		for _, step := range res.Steps {
			r.Steps.Submit(StepRecord{
				SchemaVersion:    SchemaVersion,
				RunID:            meta.RunID,
				Iteration:        step.Iteration,
				Best:             step.Best,
				Current:          step.Current,
				RollingMean:      step.RollingMean,
				Temperature:      step.Temperature,
				DeltaBest:        step.DeltaBest,
				AcceptanceWindow: step.AcceptanceWindow,
				Operator:         step.Operator,
			})
		}
	}

	if r.DB != nil {
		if err := r.DB.UpsertRun(sqlite.RunRow{
			RunID: meta.RunID, Timestamp: meta.Timestamp, Source: meta.Source,
			Scenario: meta.Scenario, Solver: meta.Solver, Seed: meta.Seed,
			Iterations: len(res.Steps), ConfigJSON: string(cfgJSON),
			Objective: res.Score.Total(), KPIsJSON: string(kpiJSON),
			OperatorsConfig: string(cfgJSON), OperatorsStats: string(opStats),
			TimeLimitReached: res.TimeLimitReached, RepairUsageAlert: kpi.RepairUsageAlert,
		}); err != nil {
			r.logger().Printf("[telemetry] sqlite upsert run failed: %v", err)
		}
		if err := r.DB.UpsertKPIs(sqlite.KPIRow{
			RunID: meta.RunID, TotalProduction: kpi.TotalProduction,
			CompletedBlocks: kpi.CompletedBlocks, MobilisationCost: kpi.MobilisationCost,
			UtilisationRatio: kpi.UtilisationRatio, Makespan: kpi.Makespan,
			SequencingViolationCount: kpi.SequencingViolationCount, RepairUsageAlert: kpi.RepairUsageAlert,
		}); err != nil {
			r.logger().Printf("[telemetry] sqlite upsert kpis failed: %v", err)
		}
	}

	SolverRunsTotal.WithLabelValues(meta.Solver).Inc()
	SolverObjective.WithLabelValues(meta.Scenario).Set(res.Score.Total())
	PlaybackTotalProduction.WithLabelValues(meta.Scenario).Set(kpi.TotalProduction)
	PlaybackSequencingViolations.WithLabelValues(meta.Scenario).Set(float64(kpi.SequencingViolationCount))
	if kpi.RepairUsageAlert {
		PlaybackRepairUsageAlert.WithLabelValues(meta.Scenario).Set(1)
	} else {
		PlaybackRepairUsageAlert.WithLabelValues(meta.Scenario).Set(0)
	}
	if res.TimeLimitReached {
		SolverTimeLimitReached.WithLabelValues(meta.Solver).Inc()
	}
	for _, s := range res.OperatorStats {
		OperatorProposals.WithLabelValues(s.Name).Add(float64(s.Proposals))
		OperatorAccepted.WithLabelValues(s.Name).Add(float64(s.Accepted))
	}

	if r.Feed != nil && len(res.Steps) > 0 {
		last := res.Steps[len(res.Steps)-1]
		sparkline := make([]float64, 0, len(res.Steps))
		for _, st := range res.Steps {
			sparkline = append(sparkline, st.Best)
		}
		r.Feed.Broadcast(Snapshot{
			RunID: meta.RunID, Best: last.Best, Current: last.Current,
			Rolling: last.RollingMean, Temperature: last.Temperature,
			DeltaBest: last.DeltaBest, WindowedAcceptance: last.AcceptanceWindow,
			HistorySparkline: sparkline,
		})
	}

	r.logger().Printf("[telemetry] run=%s solver=%s objective=%s production=%s completed_blocks=%d",
		meta.RunID, meta.Solver, humanize.Commaf(res.Score.Total()), humanize.Commaf(kpi.TotalProduction), kpi.CompletedBlocks)
}

// RecordSummary writes one sweep-level summary record to the run
// writer and, if attached, the sqlite mirror.
func (r *Recorder) RecordSummary(algorithm, scenario string, bestObjective float64, runs int) {
	if r.Runs != nil {
		r.Runs.Submit(SummaryRecord{
			SchemaVersion: SchemaVersion, Algorithm: algorithm, Scenario: scenario,
			BestObjective: bestObjective, Runs: runs,
		})
	}
	if r.DB != nil {
		if err := r.DB.InsertTunerSummary(sqlite.SummaryRow{
			Algorithm: algorithm, Scenario: scenario, BestObjective: bestObjective, Runs: runs,
		}); err != nil {
			r.logger().Printf("[telemetry] sqlite insert summary failed: %v", err)
		}
	}
}
