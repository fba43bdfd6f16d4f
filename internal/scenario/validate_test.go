package scenario

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/fhops/fhops/internal/costing"
	"github.com/fhops/fhops/internal/domain"
)

func minimalFS() fstest.MapFS {
	return fstest.MapFS{
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
harvest_systems:
  conventional:
    jobs:
      - name: fell
        role: feller_buncher
      - name: skid
        role: grapple_skidder
        prereqs: [fell]
locked_assignments:
  - machine: M1
    block: B1
    day: 1
    shift: D
`)},
		"blocks.csv": &fstest.MapFile{Data: []byte(
			"id,landing_id,required_work,earliest_start,latest_finish,harvest_system\n" +
				"B1,L1,100,1,5,conventional\n" +
				"B2,L1,50,1,5,\n")},
		"machines.csv": &fstest.MapFile{Data: []byte(
			"id,role,daily_hours\n" +
				"M1,feller_buncher,8\n" +
				"M2,grapple_skidder,8\n")},
		"landings.csv": &fstest.MapFile{Data: []byte(
			"id,capacity\n" +
				"L1,2\n")},
		"rates.csv": &fstest.MapFile{Data: []byte(
			"machine_id,block_id,rate\n" +
				"M1,B1,20\n" +
				"M1,B2,20\n" +
				"M2,B1,15\n" +
				"M2,B2,15\n")},
	}
}

func TestLoadValidScenario(t *testing.T) {
	fsys := minimalFS()
	s, err := Load(fsys, "scenario.yaml", costing.Bundled{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(s.Blocks) != 2 || len(s.Machines) != 2 || len(s.Landings) != 1 {
		t.Fatalf("unexpected scenario shape: %+v", s)
	}
	if len(s.Locks) != 1 {
		t.Fatalf("expected 1 validated lock, got %d: %+v", len(s.Locks), s.Locks)
	}
	m1, ok := s.Machine("M1")
	if !ok || m1.OperatingCostHr <= 0 {
		t.Fatalf("expected bundled operating cost to be applied, got %+v", m1)
	}
	if !Eligible(s, "M1", "B1") {
		t.Error("expected M1 eligible on B1")
	}
}

func TestLoadUnknownLandingReference(t *testing.T) {
	fsys := minimalFS()
	fsys["blocks.csv"] = &fstest.MapFile{Data: []byte(
		"id,landing_id,required_work,earliest_start,latest_finish,harvest_system\n" +
			"B1,GHOST,100,1,5,\n")}
	_, err := Load(fsys, "scenario.yaml", costing.Bundled{})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !errors.Is(err, domain.ErrInvalidScenario) {
		t.Errorf("expected errors.Is(err, ErrInvalidScenario), got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidReference) {
		t.Errorf("expected errors.Is(err, ErrInvalidReference), got %v", err)
	}
}

func TestLoadLockOutsideBlockWindow(t *testing.T) {
	fsys := minimalFS()
	fsys["scenario.yaml"] = &fstest.MapFile{Data: []byte(`
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
locked_assignments:
  - machine: M1
    block: B1
    day: 99
    shift: D
`)}
	_, err := Load(fsys, "scenario.yaml", costing.Bundled{})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !errors.Is(err, domain.ErrLockConflict) {
		t.Errorf("expected errors.Is(err, ErrLockConflict), got %v", err)
	}
}

func TestLoadDuplicateBlockID(t *testing.T) {
	fsys := minimalFS()
	fsys["blocks.csv"] = &fstest.MapFile{Data: []byte(
		"id,landing_id,required_work,earliest_start,latest_finish,harvest_system\n" +
			"B1,L1,100,1,5,\n" +
			"B1,L1,50,1,5,\n")}
	fsys["scenario.yaml"] = &fstest.MapFile{Data: []byte(`
schema_version: 1
horizon: 5
tables:
  blocks: blocks.csv
  machines: machines.csv
  landings: landings.csv
  production_rates: rates.csv
`)}
	_, err := Load(fsys, "scenario.yaml", costing.Bundled{})
	var violations Violations
	if !errors.As(err, &violations) {
		t.Fatalf("expected a Violations error, got %v (%T)", err, err)
	}
	found := false
	for _, v := range violations {
		if v.Rule == "duplicate" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a duplicate violation, got %v", violations)
	}
}
