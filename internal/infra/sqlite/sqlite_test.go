package sqlite

import (
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telemetry.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertAndGetRun(t *testing.T) {
	db := newTestDB(t)

	row := RunRow{
		RunID: "run-1", Timestamp: "2026-01-01T00:00:00Z", Source: "controller",
		Scenario: "minitoy", Solver: "sa", Seed: 42, Iterations: 10,
		ConfigJSON: "{}", Objective: 123.5, KPIsJSON: "{}",
		OperatorsConfig: "{}", OperatorsStats: "{}",
	}
	if err := db.UpsertRun(row); err != nil {
		t.Fatalf("UpsertRun() error: %v", err)
	}

	obj, timeLimit, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if obj != 123.5 {
		t.Errorf("objective = %v, want 123.5", obj)
	}
	if timeLimit {
		t.Error("time_limit_reached = true, want false")
	}

	row.Objective = 200
	row.TimeLimitReached = true
	if err := db.UpsertRun(row); err != nil {
		t.Fatalf("UpsertRun() (update) error: %v", err)
	}
	obj, timeLimit, err = db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if obj != 200 || !timeLimit {
		t.Errorf("GetRun() after update = (%v, %v), want (200, true)", obj, timeLimit)
	}
}

func TestInsertMetricAndKPIsAndSummary(t *testing.T) {
	db := newTestDB(t)

	if err := db.InsertMetric(MetricRow{RunID: "run-1", Iteration: 0, Best: 10, Current: 10, Operator: "swap"}); err != nil {
		t.Fatalf("InsertMetric() error: %v", err)
	}
	if err := db.InsertMetric(MetricRow{RunID: "run-1", Iteration: 1, Best: 12, Current: 11, Operator: "move"}); err != nil {
		t.Fatalf("InsertMetric() error: %v", err)
	}

	if err := db.UpsertKPIs(KPIRow{RunID: "run-1", TotalProduction: 50, CompletedBlocks: 2}); err != nil {
		t.Fatalf("UpsertKPIs() error: %v", err)
	}

	if err := db.InsertTunerSummary(SummaryRow{Algorithm: "sa", Scenario: "minitoy", BestObjective: 200, Runs: 3}); err != nil {
		t.Fatalf("InsertTunerSummary() error: %v", err)
	}
}

func TestGetRunMissing(t *testing.T) {
	db := newTestDB(t)
	obj, timeLimit, err := db.GetRun("does-not-exist")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if obj != 0 || timeLimit {
		t.Errorf("GetRun() for missing run = (%v, %v), want (0, false)", obj, timeLimit)
	}
}
