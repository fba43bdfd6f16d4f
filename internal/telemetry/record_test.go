package telemetry

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/fhops/fhops/internal/costing"
	"github.com/fhops/fhops/internal/heuristic"
	"github.com/fhops/fhops/internal/playback"
	"github.com/fhops/fhops/internal/problemview"
	"github.com/fhops/fhops/internal/scenario"
)

func buildTestView(t *testing.T) *problemview.View {
	t.Helper()
	fsys := fstest.MapFS{
		"scenario.yaml": &fstest.MapFile{Data: []byte(`
schema_version: 1
horizon: 3
tables:
  blocks: blocks.csv
  machines: machines.csv
  landings: landings.csv
  production_rates: rates.csv
timeline:
  shifts:
    - id: D
      hours: 8
`)},
		"blocks.csv": &fstest.MapFile{Data: []byte(
			"id,landing_id,required_work,earliest_start,latest_finish\n" +
				"B1,L1,10,1,3\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\nM1,feller_buncher,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte("id,capacity\nL1,2\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\nM1,B1,5\n")},
	}
	s, err := scenario.Load(fsys, "scenario.yaml", costing.Bundled{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	v, err := problemview.Build(s)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return v
}

func TestRecorderRecordResult(t *testing.T) {
	v := buildTestView(t)
	seed, err := heuristic.GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error: %v", err)
	}
	res := heuristic.RunSA(v, heuristic.DefaultRegistry(), seed, heuristic.SAParams{
		Iterations: 5, Seed: 1, Temp0: 1.0, CoolingRate: 0.9, RestartInterval: 5,
	})

	rows := make([]playback.AssignmentRow, 0)
	for _, a := range res.Best.Assignments() {
		rows = append(rows, playback.AssignmentRow{MachineID: a.MachineID, BlockID: a.BlockID, Day: a.Day, ShiftID: a.ShiftID, Assigned: true})
	}
	kpi, err := playback.Deterministic(v, rows, false)
	if err != nil {
		t.Fatalf("Deterministic() error: %v", err)
	}

	runsPath := filepath.Join(t.TempDir(), "runs.jsonl")
	stepsPath := filepath.Join(t.TempDir(), "steps.jsonl")
	runsW, err := NewWriter(runsPath, nil)
	if err != nil {
		t.Fatalf("NewWriter(runs) error: %v", err)
	}
	stepsW, err := NewWriter(stepsPath, nil)
	if err != nil {
		t.Fatalf("NewWriter(steps) error: %v", err)
	}
	defer runsW.Close()
	defer stepsW.Close()

	feed := NewFeed()
	rec := &Recorder{Runs: runsW, Steps: stepsW, Feed: feed}
	rec.RecordResult(RunMeta{
		RunID: NewRunID(), Timestamp: "2026-01-01T00:00:00Z", Source: "test",
		Scenario: "minitoy", Solver: "sa", Seed: 1,
	}, res, kpi)
	rec.RecordSummary("sa", "minitoy", res.Score.Total(), 1)
}
