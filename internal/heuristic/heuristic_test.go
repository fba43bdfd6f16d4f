package heuristic

import (
	"testing"
	"testing/fstest"

	"github.com/fhops/fhops/internal/costing"
	"github.com/fhops/fhops/internal/problemview"
	"github.com/fhops/fhops/internal/scenario"
)

func minitoyView(t *testing.T) *problemview.View {
	t.Helper()
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
				"B1,L1,5,1,7\n" +
				"B2,L1,5,1,7\n" +
				"B3,L1,5,1,7\n" +
				"B4,L1,5,1,7\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\n" +
				"M1,feller_buncher,8\n" +
				"M2,grapple_skidder,8\n" +
				"M3,processor,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte("id,capacity\nL1,2\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\n" +
				"M1,B1,1\nM1,B2,1\nM1,B3,1\nM1,B4,1\n" +
				"M2,B1,1\nM2,B2,1\nM2,B3,1\nM2,B4,1\n" +
				"M3,B1,1\nM3,B2,1\nM3,B3,1\nM3,B4,1\n")},
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

func TestGreedySeedProducesAssignments(t *testing.T) {
	v := minitoyView(t)
	s, err := GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error = %v", err)
	}
	if len(s.Assignments()) == 0 {
		t.Fatal("expected some assignments from the greedy seed")
	}
}

func TestScoreNonNegativeProductionOnFeasibleSchedule(t *testing.T) {
	v := minitoyView(t)
	s, err := GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error = %v", err)
	}
	sb := Score(s)
	if sb.Production <= 0 {
		t.Errorf("expected positive production, got %+v", sb)
	}
	if sb.SequencingViol != 0 {
		t.Errorf("expected zero sequencing violations after repair, got %d", sb.SequencingViol)
	}
}

func TestRunSADoesNotLowerBestBelowSeed(t *testing.T) {
	v := minitoyView(t)
	seed, err := GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error = %v", err)
	}
	seedScore := Score(seed).Total()

	res := RunSA(v, DefaultRegistry(), seed, SAParams{
		Iterations: 50, Seed: 42, Temp0: 2.0, CoolingRate: 0.95, RestartInterval: 20,
	})
	if res.Score.Total() < seedScore {
		t.Errorf("RunSA best score %v is worse than seed %v", res.Score.Total(), seedScore)
	}
}

func TestRunSADeterministic(t *testing.T) {
	v := minitoyView(t)
	seed, _ := GreedySeed(v)

	params := SAParams{Iterations: 30, Seed: 7, Temp0: 1.5, CoolingRate: 0.9, RestartInterval: 10, BatchSize: 4, MaxWorkers: 2}
	r1 := RunSA(v, DefaultRegistry(), seed, params)
	r2 := RunSA(v, DefaultRegistry(), seed, params)

	if r1.Score.Total() != r2.Score.Total() {
		t.Errorf("two identically-seeded SA runs diverged: %v != %v", r1.Score.Total(), r2.Score.Total())
	}
	a1, a2 := r1.Best.Assignments(), r2.Best.Assignments()
	if len(a1) != len(a2) {
		t.Fatalf("assignment counts diverged: %d != %d", len(a1), len(a2))
	}
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("assignment %d diverged: %+v != %+v", i, a1[i], a2[i])
		}
	}
}

func TestRunTabuNonNegativeScore(t *testing.T) {
	v := minitoyView(t)
	seed, _ := GreedySeed(v)
	res := RunTabu(v, DefaultRegistry(), seed, TabuParams{Iterations: 20, Seed: 3, SampleSize: 4})
	if res.Score.Total() < 0 {
		t.Errorf("unexpectedly negative score: %+v", res.Score)
	}
}

func TestRunMultiStartPicksBest(t *testing.T) {
	v := minitoyView(t)
	seed, _ := GreedySeed(v)
	mr := RunMultiStart(v, DefaultRegistry(), seed, MultiStartParams{
		Runs: 3, Seed: 11, MaxWorkers: 2, Algorithm: AlgorithmSA,
		SA: SAParams{Iterations: 20, Temp0: 1.0, CoolingRate: 0.9, RestartInterval: 10},
	})
	if len(mr.Runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(mr.Runs))
	}
	best := mr.Runs[mr.BestIndex].Score.Total()
	for _, r := range mr.Runs {
		if r.Score.Total() > best {
			t.Fatalf("BestIndex did not point at the best run")
		}
	}
}
