package playback

import (
	"testing"
	"testing/fstest"

	"github.com/fhops/fhops/internal/costing"
	"github.com/fhops/fhops/internal/problemview"
	"github.com/fhops/fhops/internal/scenario"
)

func buildView(t *testing.T) *problemview.View {
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

func TestDeterministicReconciliation(t *testing.T) {
	v := buildView(t)
	rows := []AssignmentRow{
		{MachineID: "M1", BlockID: "B1", Day: 1, ShiftID: "D", Assigned: true},
		{MachineID: "M1", BlockID: "B1", Day: 2, ShiftID: "D", Assigned: true},
	}
	kpi, err := Deterministic(v, rows, true)
	if err != nil {
		t.Fatalf("Deterministic() error = %v", err)
	}

	var dayTotal, shiftTotal float64
	for _, s := range kpi.Shifts {
		shiftTotal += s.Production
	}
	for _, d := range kpi.Days {
		dayTotal += d.Production
	}
	if shiftTotal != dayTotal || dayTotal != kpi.TotalProduction {
		t.Fatalf("reconciliation failed: shift=%v day=%v kpi=%v", shiftTotal, dayTotal, kpi.TotalProduction)
	}
	if kpi.TotalProduction != 10 {
		t.Errorf("TotalProduction = %v, want 10 (capped at required_work)", kpi.TotalProduction)
	}
	if kpi.CompletedBlocks != 1 {
		t.Errorf("CompletedBlocks = %d, want 1", kpi.CompletedBlocks)
	}
}

func TestStochasticEqualsDeterministicWhenZeroProbability(t *testing.T) {
	v := buildView(t)
	rows := []AssignmentRow{
		{MachineID: "M1", BlockID: "B1", Day: 1, ShiftID: "D", Assigned: true},
	}
	det, err := Deterministic(v, rows, true)
	if err != nil {
		t.Fatalf("Deterministic() error = %v", err)
	}
	samples, err := Stochastic(v, rows, SamplingConfig{Samples: 8}, 99, true)
	if err != nil {
		t.Fatalf("Stochastic() error = %v", err)
	}
	if len(samples) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(samples))
	}
	for i, s := range samples {
		if s.TotalProduction != det.TotalProduction {
			t.Errorf("sample %d TotalProduction = %v, want %v", i, s.TotalProduction, det.TotalProduction)
		}
		if s.MobilisationCost != det.MobilisationCost {
			t.Errorf("sample %d MobilisationCost = %v, want %v", i, s.MobilisationCost, det.MobilisationCost)
		}
	}
}

func TestPlaybackViolationStrictMode(t *testing.T) {
	v := buildView(t)
	rows := []AssignmentRow{
		{MachineID: "GHOST", BlockID: "B1", Day: 1, ShiftID: "D", Assigned: true},
	}
	if _, err := Deterministic(v, rows, true); err == nil {
		t.Fatal("expected a playback violation in strict mode")
	}
	kpi, err := Deterministic(v, rows, false)
	if err != nil {
		t.Fatalf("lenient mode should not error, got %v", err)
	}
	if kpi.TotalProduction != 0 {
		t.Errorf("expected the bad row to be skipped, got production %v", kpi.TotalProduction)
	}
}
