package mip

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/fhops/fhops/internal/heuristic"
)

func TestExtractAssignmentsMatchesStubBackendSchedule(t *testing.T) {
	v := buildTestView(t)
	p := Build(v)

	seed, err := heuristic.GreedySeed(v)
	if err != nil {
		t.Fatalf("GreedySeed() error: %v", err)
	}
	heuristic.Repair(seed)
	want := seed.Assignments()

	backend := StubBackend{View: v}
	sol, err := backend.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}

	got := ExtractAssignments(v, sol)
	sortAssignments(want)
	sortAssignments(got)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractAssignments() = %+v, want %+v", got, want)
	}
}

func TestExtractAssignmentsIgnoresFractionalAndZeroValues(t *testing.T) {
	v := buildTestView(t)
	p := Build(v)
	name := xName("M1", "B1", 1, "D")

	sol := Solution{Values: map[string]float64{name: 0.4}}
	if got := ExtractAssignments(v, sol); len(got) != 0 {
		t.Errorf("ExtractAssignments() with value 0.4 = %+v, want empty", got)
	}

	sol = Solution{Values: map[string]float64{name: 1}}
	got := ExtractAssignments(v, sol)
	if len(got) != 1 || got[0].MachineID != "M1" || got[0].BlockID != "B1" || got[0].Day != 1 || got[0].ShiftID != "D" {
		t.Errorf("ExtractAssignments() with value 1 = %+v, want single M1/B1/1/D", got)
	}
	_ = p
}

func sortAssignments(a []heuristic.Assignment) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].MachineID != a[j].MachineID {
			return a[i].MachineID < a[j].MachineID
		}
		if a[i].Day != a[j].Day {
			return a[i].Day < a[j].Day
		}
		if a[i].ShiftID != a[j].ShiftID {
			return a[i].ShiftID < a[j].ShiftID
		}
		return a[i].BlockID < a[j].BlockID
	})
}
