package mip

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/fhops/fhops/internal/costing"
	"github.com/fhops/fhops/internal/domain"
	"github.com/fhops/fhops/internal/heuristic"
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

func TestBuildProducesXVarsForEveryEligibleSlot(t *testing.T) {
	v := buildTestView(t)
	p := Build(v)

	want := xName("M1", "B1", 1, "D")
	if _, ok := p.Variable(want); !ok {
		t.Fatalf("Build() did not declare %s", want)
	}
	if _, ok := p.Variable(completedName("B1")); !ok {
		t.Fatalf("Build() did not declare completed var for B1")
	}
	if _, ok := p.Variable(leftoverName("B1")); !ok {
		t.Fatalf("Build() did not declare leftover var for B1")
	}
	if _, ok := p.Variable(creditedName("B1")); !ok {
		t.Fatalf("Build() did not declare credited var for B1")
	}
}

func TestBuildLocksProduceFixedLowerBound(t *testing.T) {
	v := buildTestView(t)
	v.Scenario.Locks = append(v.Scenario.Locks, domain.ScheduleLock{
		MachineID: "M1", BlockID: "B1", Day: 1, ShiftID: "D",
	})

	p := Build(v)
	vr, ok := p.Variable(xName("M1", "B1", 1, "D"))
	if !ok {
		t.Fatalf("x var missing after lock")
	}
	if vr.Lower != 1 {
		t.Errorf("locked var Lower = %v, want 1", vr.Lower)
	}
}

func TestBuildLandingCapacityConstraintPresent(t *testing.T) {
	v := buildTestView(t)
	p := Build(v)
	found := false
	for _, c := range p.Constraints {
		if c.Name == "landing_capacity|L1|1" {
			found = true
			if c.RHS != 2 {
				t.Errorf("landing capacity RHS = %v, want 2", c.RHS)
			}
		}
	}
	if !found {
		t.Fatalf("landing_capacity|L1|1 constraint not found")
	}
}

func TestStubBackendMatchesHeuristicScore(t *testing.T) {
	v := buildTestView(t)
	p := Build(v)

	seed, err := heuristic.GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error: %v", err)
	}
	heuristic.Repair(seed)
	want := heuristic.Score(seed).Total()

	backend := StubBackend{View: v}
	sol, err := backend.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	if sol.Objective != want {
		t.Errorf("Solve() objective = %v, want %v (heuristic.Score equivalence)", sol.Objective, want)
	}
}

func TestExternalBackendWithoutFuncReturnsBackendError(t *testing.T) {
	b := ExternalBackend{}
	_, err := b.Solve(context.Background(), &Problem{})
	var serr *SolverError
	if err == nil {
		t.Fatal("expected error from unconfigured ExternalBackend")
	}
	if !asSolverError(err, &serr) || serr.Kind != Backend {
		t.Errorf("err = %v, want SolverError{Kind: Backend}", err)
	}
}

func asSolverError(err error, target **SolverError) bool {
	se, ok := err.(*SolverError)
	if !ok {
		return false
	}
	*target = se
	return true
}
