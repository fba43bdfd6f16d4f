package scenario

import (
	"testing"

	"github.com/fhops/fhops/internal/domain"
)

func TestLayerHarvestSystemLinearChain(t *testing.T) {
	hs := domain.HarvestSystem{
		ID: "conventional",
		Jobs: []domain.Job{
			{Name: "fell", Role: "feller_buncher"},
			{Name: "skid", Role: "grapple_skidder", Prereqs: []string{"fell"}},
			{Name: "process", Role: "processor", Prereqs: []string{"skid"}},
		},
	}
	c := &collector{}
	jl, ok := layerHarvestSystem(hs, c, "harvest_systems", -1)
	if !ok || !c.ok() {
		t.Fatalf("expected a valid DAG, got violations: %v", c.violations)
	}
	if jl.Layer["fell"] != 0 || jl.Layer["skid"] != 1 || jl.Layer["process"] != 2 {
		t.Fatalf("unexpected layering: %+v", jl.Layer)
	}

	layers := jl.rolesByLayer(hs)
	want := [][]string{{"feller_buncher"}, {"grapple_skidder"}, {"processor"}}
	if len(layers) != len(want) {
		t.Fatalf("got %d layers, want %d", len(layers), len(want))
	}
	for i := range want {
		if len(layers[i]) != 1 || layers[i][0] != want[i][0] {
			t.Errorf("layer %d = %v, want %v", i, layers[i], want[i])
		}
	}
}

func TestLayerHarvestSystemCycle(t *testing.T) {
	hs := domain.HarvestSystem{
		ID: "broken",
		Jobs: []domain.Job{
			{Name: "a", Prereqs: []string{"b"}},
			{Name: "b", Prereqs: []string{"a"}},
		},
	}
	c := &collector{}
	if _, ok := layerHarvestSystem(hs, c, "harvest_systems", -1); ok {
		t.Fatal("expected cycle detection to fail")
	}
	if c.ok() {
		t.Fatal("expected a dag_cycle violation")
	}
	found := false
	for _, v := range c.violations {
		if v.Rule == "dag_cycle" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a dag_cycle violation, got %v", c.violations)
	}
}

func TestLayerHarvestSystemUnknownPrereq(t *testing.T) {
	hs := domain.HarvestSystem{
		ID: "dangling",
		Jobs: []domain.Job{
			{Name: "a", Prereqs: []string{"ghost"}},
		},
	}
	c := &collector{}
	if _, ok := layerHarvestSystem(hs, c, "harvest_systems", -1); ok {
		t.Fatal("expected unknown prerequisite to fail")
	}
	if c.ok() {
		t.Fatal("expected a reference violation")
	}
}
