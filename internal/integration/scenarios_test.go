// Package integration exercises the full ingest -> seed -> solve ->
// playback -> rolling-horizon pipeline against the canonical scenario
// fixtures (§8), rather than unit-testing any one package in isolation.
package integration

import (
	"context"
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/fhops/fhops/internal/controller"
	"github.com/fhops/fhops/internal/costing"
	"github.com/fhops/fhops/internal/heuristic"
	"github.com/fhops/fhops/internal/playback"
	"github.com/fhops/fhops/internal/problemview"
	"github.com/fhops/fhops/internal/scenario"
)

func loadView(t *testing.T, fsys fstest.MapFS) *problemview.View {
	t.Helper()
	s, err := scenario.Load(fsys, "scenario.yaml", costing.Bundled{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	v, err := problemview.Build(s)
	if err != nil {
		t.Fatalf("problemview.Build() error = %v", err)
	}
	return v
}

func rowsFromAssignments(v *problemview.View, assignments []heuristic.Assignment) []playback.AssignmentRow {
	rows := make([]playback.AssignmentRow, len(assignments))
	for i, a := range assignments {
		rows[i] = playback.AssignmentRow{
			MachineID: a.MachineID,
			BlockID:   a.BlockID,
			Day:       a.Day,
			ShiftID:   a.ShiftID,
			Assigned:  true,
		}
	}
	return rows
}

// S1 — minitoy sanity: uniform rate-1 machines, ample capacity, no
// mobilisation. Every block should complete with zero mobilisation
// cost and zero sequencing violations.
func TestS1MinitoySanity(t *testing.T) {
	fsys := fstest.MapFS{
		"scenario.yaml": &fstest.MapFile{Data: []byte(`
schema_version: 1
horizon: 7
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
				"B1,L1,2,1,7\nB2,L1,2,1,7\nB3,L1,2,1,7\nB4,L1,2,1,7\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\nM1,feller_buncher,8\nM2,feller_buncher,8\nM3,feller_buncher,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte("id,capacity\nL1,2\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\n" +
				"M1,B1,1\nM1,B2,1\nM1,B3,1\nM1,B4,1\n" +
				"M2,B1,1\nM2,B2,1\nM2,B3,1\nM2,B4,1\n" +
				"M3,B1,1\nM3,B2,1\nM3,B3,1\nM3,B4,1\n")},
	}
	v := loadView(t, fsys)

	seed, err := heuristic.GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error = %v", err)
	}
	heuristic.Repair(seed)
	score := heuristic.Score(seed)

	var required float64
	for _, b := range v.Scenario.Blocks {
		required += b.RequiredWork
	}
	if score.Production < required {
		t.Errorf("Production = %v, want >= required work %v (ample capacity/rate-1)", score.Production, required)
	}
	if score.Mobilisation != 0 {
		t.Errorf("Mobilisation = %v, want 0 (no mobilisation configured)", score.Mobilisation)
	}
	if score.SequencingViol != 0 {
		t.Errorf("SequencingViol = %d, want 0", score.SequencingViol)
	}
}

// S2 — mobilisation trade-off: two machines, two blocks 5000m apart
// (a move, not a walk, against the 1000m threshold), move_cost_per_km
// 10, two shifts per day so a machine can switch blocks within a day
// (§4.2's mobilisation cost is a per-day, per-machine, shift-to-shift
// transition). A schedule that keeps one machine per block has zero
// mobilisation cost under any weight; a schedule that alternates
// machines between blocks shift-to-shift pays one move cost per
// machine per switch. Setting w_mob = 1.0 must make the
// non-alternating schedule score strictly higher; setting w_mob = 0
// must erase the gap entirely.
func s2Fixture(mobilisationWeight float64) fstest.MapFS {
	return fstest.MapFS{
		"scenario.yaml": &fstest.MapFile{Data: []byte(`
schema_version: 1
horizon: 1
tables:
  blocks: blocks.csv
  machines: machines.csv
  landings: landings.csv
  production_rates: rates.csv
timeline:
  shifts:
    - id: D1
      hours: 4
    - id: D2
      hours: 4
mobilisation:
  walk_threshold_m: 1000
  walk_cost: 5
  setup_cost: 0
  move_cost_per_km: 10
  distances: distances.csv
objective_weights:
  production: 1.0
  mobilisation: ` + fmt.Sprintf("%v", mobilisationWeight) + `
`)},
		"blocks.csv": &fstest.MapFile{Data: []byte(
			"id,landing_id,required_work,earliest_start,latest_finish\n" +
				"B1,L1,4,1,1\nB2,L1,4,1,1\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\nM1,feller_buncher,8\nM2,feller_buncher,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte("id,capacity\nL1,2\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\nM1,B1,2\nM1,B2,2\nM2,B1,2\nM2,B2,2\n")},
		"distances.csv": &fstest.MapFile{Data: []byte(
			"id,B1,B2\nB1,0,5000\nB2,5000,0\n")},
	}
}

func buildExplicitSchedule(v *problemview.View, alternate bool) *heuristic.Schedule {
	s := heuristic.NewSchedule(v)
	if !alternate {
		s.Set("M1", 1, "D1", "B1")
		s.Set("M1", 1, "D2", "B1")
		s.Set("M2", 1, "D1", "B2")
		s.Set("M2", 1, "D2", "B2")
		return s
	}
	s.Set("M1", 1, "D1", "B1")
	s.Set("M1", 1, "D2", "B2")
	s.Set("M2", 1, "D1", "B2")
	s.Set("M2", 1, "D2", "B1")
	return s
}

func TestS2MobilisationTradeoff(t *testing.T) {
	vHigh := loadView(t, s2Fixture(1.0))
	vZero := loadView(t, s2Fixture(0.0))

	noAltHigh := heuristic.Score(buildExplicitSchedule(vHigh, false))
	altHigh := heuristic.Score(buildExplicitSchedule(vHigh, true))
	noAltZero := heuristic.Score(buildExplicitSchedule(vZero, false))
	altZero := heuristic.Score(buildExplicitSchedule(vZero, true))

	if altHigh.Mobilisation <= 0 {
		t.Errorf("alternating schedule Mobilisation = %v, want > 0 under w_mob=1.0 (5000m gap exceeds the 1000m walk threshold)", altHigh.Mobilisation)
	}
	if noAltHigh.Mobilisation != 0 {
		t.Errorf("single-machine-per-block schedule Mobilisation = %v, want 0 (no machine ever switches blocks)", noAltHigh.Mobilisation)
	}
	wantCost := 2 * (0 + 10*5000.0/1000.0) // 2 machines, one move each, setup 0 + move_cost_per_km*km
	if altHigh.Mobilisation != wantCost {
		t.Errorf("alternating Mobilisation = %v, want %v (2 moves at move_cost_per_km=10, dist=5km)", altHigh.Mobilisation, wantCost)
	}
	if noAltHigh.Total() <= altHigh.Total() {
		t.Errorf("w_mob=1.0: no-alternation Total() = %v, want strictly greater than alternation's %v", noAltHigh.Total(), altHigh.Total())
	}

	if altZero.Mobilisation != 0 {
		t.Errorf("alternating schedule Mobilisation = %v, want 0 under w_mob=0", altZero.Mobilisation)
	}
	if noAltZero.Total() != altZero.Total() {
		t.Errorf("w_mob=0: no-alternation Total() = %v, alternation Total() = %v, want equal (mobilisation zeroed out)", noAltZero.Total(), altZero.Total())
	}
}

// S3 — hard sequencing: a single block with three roles A -> B -> C
// must be harvested in that order. After repair, no role produces
// ahead of its prerequisite.
func TestS3HardSequencing(t *testing.T) {
	fsys := fstest.MapFS{
		"scenario.yaml": &fstest.MapFile{Data: []byte(`
schema_version: 1
horizon: 6
tables:
  blocks: blocks.csv
  machines: machines.csv
  landings: landings.csv
  production_rates: rates.csv
timeline:
  shifts:
    - id: D
      hours: 8
harvest_systems:
  feller_skid_load:
    jobs:
      - name: fell
        role: feller_buncher
      - name: skid
        role: skidder
        prereqs: [fell]
      - name: load
        role: loader
        prereqs: [skid]
`)},
		"blocks.csv": &fstest.MapFile{Data: []byte(
			"id,landing_id,required_work,earliest_start,latest_finish,harvest_system\n" +
				"B1,L1,9,1,6,feller_skid_load\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\nMA,feller_buncher,8\nMB,skidder,8\nMC,loader,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte("id,capacity\nL1,3\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\nMA,B1,3\nMB,B1,3\nMC,B1,3\n")},
	}
	v := loadView(t, fsys)

	seed, err := heuristic.GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error = %v", err)
	}
	heuristic.Repair(seed)
	score := heuristic.Score(seed)
	if score.SequencingViol != 0 {
		t.Errorf("SequencingViol = %d, want 0 after repair", score.SequencingViol)
	}

	rows := rowsFromAssignments(v, seed.Assignments())
	kpi, err := playback.Deterministic(v, rows, false)
	if err != nil {
		t.Fatalf("Deterministic() error = %v", err)
	}
	if kpi.SequencingViolationCount != 0 {
		t.Errorf("playback SequencingViolationCount = %d, want 0", kpi.SequencingViolationCount)
	}
}

// S4 — lock enforcement: a locked (machine, block, day, shift) tuple
// must appear in every returned schedule.
func TestS4LockEnforcement(t *testing.T) {
	fsys := fstest.MapFS{
		"scenario.yaml": &fstest.MapFile{Data: []byte(`
schema_version: 1
horizon: 7
tables:
  blocks: blocks.csv
  machines: machines.csv
  landings: landings.csv
  production_rates: rates.csv
timeline:
  shifts:
    - id: D
      hours: 8
locked_assignments:
  - machine: M1
    block: B2
    day: 3
    shift: D
`)},
		"blocks.csv": &fstest.MapFile{Data: []byte(
			"id,landing_id,required_work,earliest_start,latest_finish\n" +
				"B1,L1,10,1,7\nB2,L1,10,1,7\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\nM1,feller_buncher,8\nM2,feller_buncher,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte("id,capacity\nL1,2\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\nM1,B1,3\nM1,B2,3\nM2,B1,3\nM2,B2,3\n")},
	}
	v := loadView(t, fsys)
	if len(v.Scenario.Locks) != 1 {
		t.Fatalf("expected 1 lock to be ingested, got %d", len(v.Scenario.Locks))
	}

	seed, err := heuristic.GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error = %v", err)
	}
	heuristic.Repair(seed)

	found := false
	for _, a := range seed.Assignments() {
		if a.MachineID == "M1" && a.BlockID == "B2" && a.Day == 3 && a.ShiftID == "D" {
			found = true
		}
	}
	if !found {
		t.Error("locked tuple (M1, B2, day 3, shift D) missing from seeded/repaired schedule")
	}

	res := heuristic.RunSA(v, heuristic.DefaultRegistry(), seed, heuristic.SAParams{
		Iterations: 20, Seed: 1, Temp0: 1.0, CoolingRate: 0.9, RestartInterval: 20,
	})
	found = false
	for _, a := range res.Best.Assignments() {
		if a.MachineID == "M1" && a.BlockID == "B2" && a.Day == 3 && a.ShiftID == "D" {
			found = true
		}
	}
	if !found {
		t.Error("locked tuple (M1, B2, day 3, shift D) missing after SA run")
	}
}

// S5 — stochastic equivalence: with every perturbation probability at
// zero, every sample's KPI bundle equals the deterministic bundle.
func TestS5StochasticEquivalence(t *testing.T) {
	fsys := fstest.MapFS{
		"scenario.yaml": &fstest.MapFile{Data: []byte(`
schema_version: 1
horizon: 5
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
				"B1,L1,6,1,5\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\nM1,feller_buncher,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte("id,capacity\nL1,1\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\nM1,B1,2\n")},
	}
	v := loadView(t, fsys)

	seed, err := heuristic.GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error = %v", err)
	}
	heuristic.Repair(seed)
	rows := rowsFromAssignments(v, seed.Assignments())

	det, err := playback.Deterministic(v, rows, false)
	if err != nil {
		t.Fatalf("Deterministic() error = %v", err)
	}

	samples, err := playback.Stochastic(v, rows, playback.SamplingConfig{Samples: 8}, 42, false)
	if err != nil {
		t.Fatalf("Stochastic() error = %v", err)
	}
	if len(samples) != 8 {
		t.Fatalf("len(samples) = %d, want 8", len(samples))
	}
	for i, s := range samples {
		if s.TotalProduction != det.TotalProduction {
			t.Errorf("sample %d TotalProduction = %v, want %v (deterministic)", i, s.TotalProduction, det.TotalProduction)
		}
		if s.MobilisationCost != det.MobilisationCost {
			t.Errorf("sample %d MobilisationCost = %v, want %v (deterministic)", i, s.MobilisationCost, det.MobilisationCost)
		}
	}
}

// S6 — rolling-horizon reconstruction: a (master=H, sub=H, lock=H)
// window collapses to a single monolithic solve; a narrower sub/lock
// window takes several iterations and its last one locks through the
// full master horizon.
func TestS6RollingHorizonReconstruction(t *testing.T) {
	fsys := fstest.MapFS{
		"scenario.yaml": &fstest.MapFile{Data: []byte(`
schema_version: 1
horizon: 14
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
				"B1,L1,20,1,14\nB2,L1,20,1,14\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\nM1,feller_buncher,8\nM2,feller_buncher,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte("id,capacity\nL1,2\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\nM1,B1,3\nM1,B2,3\nM2,B1,3\nM2,B2,3\n")},
	}
	v := loadView(t, fsys)

	solve := func(v *problemview.View, seed *heuristic.Schedule, deadline time.Time) heuristic.Result {
		return heuristic.RunSA(v, heuristic.DefaultRegistry(), seed, heuristic.SAParams{
			Iterations: 30, Seed: 7, Temp0: 1.0, CoolingRate: 0.9, RestartInterval: 30, Deadline: deadline,
		})
	}

	monolithic, err := controller.Run(context.Background(), v.Scenario, solve,
		controller.Params{MasterDays: 14, SubDays: 14, LockDays: 14})
	if err != nil {
		t.Fatalf("monolithic Run() error = %v", err)
	}
	if len(monolithic.Iterations) != 1 {
		t.Errorf("monolithic Iterations = %d, want 1 (single window == master)", len(monolithic.Iterations))
	}

	rolling, err := controller.Run(context.Background(), v.Scenario, solve,
		controller.Params{MasterDays: 14, SubDays: 4, LockDays: 2})
	if err != nil {
		t.Fatalf("rolling Run() error = %v", err)
	}
	if len(rolling.Iterations) <= 1 {
		t.Errorf("rolling Iterations = %d, want > 1 for a narrower sub/lock window", len(rolling.Iterations))
	}
	last := rolling.Iterations[len(rolling.Iterations)-1]
	if last.LockedThrough < 14 {
		t.Errorf("rolling final LockedThrough = %d, want >= 14 (master_days)", last.LockedThrough)
	}
}
