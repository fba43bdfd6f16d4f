// Package sqlite is the relational mirror for telemetry records (§4.6,
// "structured mirror"), adapted from the teacher's internal/infra/sqlite
// phase files: raw database/sql over modernc.org/sqlite, migrations as an
// ordered []string, Upsert/Get pairs per table. The JSONL log stays
// canonical; this mirror is optional and best-effort.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite connection opened against a single file (or
// "file::memory:?cache=shared" for tests).
type DB struct {
	db *sql.DB
}

// Open opens path and applies every pending migration in order.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	d := &DB{db: conn}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Migrations returns the telemetry mirror's schema migration statements
// (§3.6: runs, run_metrics, run_kpis, tuner_summaries).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id           TEXT PRIMARY KEY,
			timestamp        TEXT NOT NULL,
			source           TEXT NOT NULL,
			scenario         TEXT NOT NULL,
			solver           TEXT NOT NULL,
			seed             INTEGER NOT NULL,
			iterations       INTEGER NOT NULL DEFAULT 0,
			config_json      TEXT NOT NULL DEFAULT '{}',
			objective        REAL NOT NULL DEFAULT 0,
			kpis_json        TEXT NOT NULL DEFAULT '{}',
			operators_config TEXT NOT NULL DEFAULT '{}',
			operators_stats  TEXT NOT NULL DEFAULT '{}',
			time_limit_reached INTEGER NOT NULL DEFAULT 0,
			repair_usage_alert INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario)`,

		`CREATE TABLE IF NOT EXISTS run_metrics (
			run_id            TEXT NOT NULL,
			iteration         INTEGER NOT NULL,
			best              REAL NOT NULL,
			current           REAL NOT NULL,
			rolling_mean      REAL NOT NULL,
			temperature        REAL NOT NULL,
			delta_best        REAL NOT NULL,
			acceptance_window REAL NOT NULL,
			operator          TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, iteration)
		)`,

		`CREATE TABLE IF NOT EXISTS run_kpis (
			run_id                     TEXT PRIMARY KEY,
			total_production           REAL NOT NULL DEFAULT 0,
			completed_blocks           INTEGER NOT NULL DEFAULT 0,
			mobilisation_cost          REAL NOT NULL DEFAULT 0,
			utilisation_ratio          REAL NOT NULL DEFAULT 0,
			makespan                   INTEGER NOT NULL DEFAULT 0,
			sequencing_violation_count INTEGER NOT NULL DEFAULT 0,
			repair_usage_alert         INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS tuner_summaries (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			algorithm      TEXT NOT NULL,
			scenario       TEXT NOT NULL,
			best_objective REAL NOT NULL,
			runs           INTEGER NOT NULL,
			created_at     TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tuner_scenario ON tuner_summaries(scenario)`,
	}
}

// UpsertRun inserts or updates one run record.
func (d *DB) UpsertRun(r RunRow) error {
	_, err := d.db.Exec(`
		INSERT INTO runs (run_id, timestamp, source, scenario, solver, seed, iterations,
			config_json, objective, kpis_json, operators_config, operators_stats,
			time_limit_reached, repair_usage_alert)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			timestamp = excluded.timestamp,
			iterations = excluded.iterations,
			objective = excluded.objective,
			kpis_json = excluded.kpis_json,
			operators_stats = excluded.operators_stats,
			time_limit_reached = excluded.time_limit_reached,
			repair_usage_alert = excluded.repair_usage_alert
	`, r.RunID, r.Timestamp, r.Source, r.Scenario, r.Solver, r.Seed, r.Iterations,
		r.ConfigJSON, r.Objective, r.KPIsJSON, r.OperatorsConfig, r.OperatorsStats,
		boolToInt(r.TimeLimitReached), boolToInt(r.RepairUsageAlert))
	return err
}

// RunRow mirrors one telemetry run record (§4.6).
type RunRow struct {
	RunID            string
	Timestamp        string
	Source           string
	Scenario         string
	Solver           string
	Seed             int64
	Iterations       int
	ConfigJSON       string
	Objective        float64
	KPIsJSON         string
	OperatorsConfig  string
	OperatorsStats   string
	TimeLimitReached bool
	RepairUsageAlert bool
}

// InsertMetric appends one step record for run_id.
func (d *DB) InsertMetric(m MetricRow) error {
	_, err := d.db.Exec(`
		INSERT INTO run_metrics (run_id, iteration, best, current, rolling_mean,
			temperature, delta_best, acceptance_window, operator)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, iteration) DO UPDATE SET
			best = excluded.best, current = excluded.current,
			rolling_mean = excluded.rolling_mean, temperature = excluded.temperature,
			delta_best = excluded.delta_best, acceptance_window = excluded.acceptance_window,
			operator = excluded.operator
	`, m.RunID, m.Iteration, m.Best, m.Current, m.RollingMean, m.Temperature,
		m.DeltaBest, m.AcceptanceWindow, m.Operator)
	return err
}

// MetricRow mirrors one telemetry step record (§4.6).
type MetricRow struct {
	RunID            string
	Iteration        int
	Best             float64
	Current          float64
	RollingMean      float64
	Temperature      float64
	DeltaBest        float64
	AcceptanceWindow float64
	Operator         string
}

// UpsertKPIs mirrors the playback KPI bundle for run_id.
func (d *DB) UpsertKPIs(k KPIRow) error {
	_, err := d.db.Exec(`
		INSERT INTO run_kpis (run_id, total_production, completed_blocks, mobilisation_cost,
			utilisation_ratio, makespan, sequencing_violation_count, repair_usage_alert)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			total_production = excluded.total_production,
			completed_blocks = excluded.completed_blocks,
			mobilisation_cost = excluded.mobilisation_cost,
			utilisation_ratio = excluded.utilisation_ratio,
			makespan = excluded.makespan,
			sequencing_violation_count = excluded.sequencing_violation_count,
			repair_usage_alert = excluded.repair_usage_alert
	`, k.RunID, k.TotalProduction, k.CompletedBlocks, k.MobilisationCost,
		k.UtilisationRatio, k.Makespan, k.SequencingViolationCount, boolToInt(k.RepairUsageAlert))
	return err
}

// KPIRow mirrors the KPI bundle totals (§4.5) for one run.
type KPIRow struct {
	RunID                    string
	TotalProduction          float64
	CompletedBlocks          int
	MobilisationCost         float64
	UtilisationRatio         float64
	Makespan                 int
	SequencingViolationCount int
	RepairUsageAlert         bool
}

// InsertTunerSummary records one sweep-level summary (§4.6 summary records).
func (d *DB) InsertTunerSummary(s SummaryRow) error {
	_, err := d.db.Exec(`
		INSERT INTO tuner_summaries (algorithm, scenario, best_objective, runs)
		VALUES (?, ?, ?, ?)
	`, s.Algorithm, s.Scenario, s.BestObjective, s.Runs)
	return err
}

// SummaryRow mirrors one sweep-level summary record.
type SummaryRow struct {
	Algorithm     string
	Scenario      string
	BestObjective float64
	Runs          int
}

// GetRun retrieves one run's objective and completion flags. A missing
// run yields (0, false, nil).
func (d *DB) GetRun(runID string) (objective float64, timeLimitReached bool, err error) {
	var t int
	err = d.db.QueryRow(`SELECT objective, time_limit_reached FROM runs WHERE run_id = ?`, runID).Scan(&objective, &t)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	return objective, t == 1, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
