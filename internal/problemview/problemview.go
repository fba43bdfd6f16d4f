// Package problemview materialises the index sets every solver needs
// out of an immutable domain.Scenario (C2): shifts per day, available
// (machine, day, shift) triples, eligible (machine, block) pairs, rate
// lookups, and distance tiers. It is derived once per scenario and
// shared read-only by the MIP builder and the heuristic core (§3
// "Lifecycle & ownership").
package problemview

import (
	"sort"

	"github.com/fhops/fhops/internal/domain"
	"github.com/fhops/fhops/internal/scenario"
)

// Slot identifies one (machine, day, shift) triple.
type Slot struct {
	MachineID string
	Day       int
	ShiftID   string
}

// Pair identifies one (machine, block) combination.
type Pair struct {
	MachineID string
	BlockID   string
}

// View is the precomputed, read-only problem view for one scenario.
// Every solver receives a *View instead of re-deriving these sets.
type View struct {
	Scenario *domain.Scenario

	ShiftIDs     []string
	ShiftsPerDay int

	available map[Slot]bool
	eligible  map[Pair]bool
	rates     map[Pair]float64

	PrecedenceByHarvestSystem map[string][][]string // role layers, ascending
}

// Build derives a View from s. s must already be validated (e.g. via
// scenario.Load); Build does not re-check invariants, it only
// precomputes lookups over them.
func Build(s *domain.Scenario) (*View, error) {
	v := &View{
		Scenario:     s,
		ShiftIDs:     s.Timeline.ShiftIDs(),
		ShiftsPerDay: s.Timeline.ShiftsPerDay,
		available:    make(map[Slot]bool),
		eligible:     make(map[Pair]bool),
		rates:        make(map[Pair]float64),
	}
	if v.ShiftsPerDay == 0 {
		v.ShiftsPerDay = len(v.ShiftIDs)
	}

	for _, m := range s.Machines {
		for day := 1; day <= s.Horizon; day++ {
			for _, sid := range v.ShiftIDs {
				slot := Slot{MachineID: m.ID, Day: day, ShiftID: sid}
				v.available[slot] = scenario.Available(s, m.ID, day, sid)
			}
		}
		for _, b := range s.Blocks {
			pair := Pair{MachineID: m.ID, BlockID: b.ID}
			rate := scenario.RateOf(s, m.ID, b.ID)
			v.rates[pair] = rate
			v.eligible[pair] = scenario.Eligible(s, m.ID, b.ID)
		}
	}

	v.PrecedenceByHarvestSystem = make(map[string][][]string, len(s.HarvestSystems))
	names := make([]string, 0, len(s.HarvestSystems))
	for name := range s.HarvestSystems {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		layers, err := scenario.PrecedenceChain(s.HarvestSystems[name])
		if err != nil {
			return nil, err
		}
		v.PrecedenceByHarvestSystem[name] = layers
	}

	return v, nil
}

// Available reports whether machine m may be assigned on (day, shiftID).
func (v *View) Available(machineID string, day int, shiftID string) bool {
	return v.available[Slot{MachineID: machineID, Day: day, ShiftID: shiftID}]
}

// Eligible reports whether machine m may ever be assigned to block b.
func (v *View) Eligible(machineID, blockID string) bool {
	return v.eligible[Pair{MachineID: machineID, BlockID: blockID}]
}

// Rate returns the production rate for (machineID, blockID), zero if
// ineligible or absent.
func (v *View) Rate(machineID, blockID string) float64 {
	return v.rates[Pair{MachineID: machineID, BlockID: blockID}]
}

// DistanceTier classifies the inter-block distance against machineID's
// own walk threshold, delegating to the scenario package so MIP and
// heuristic scoring never diverge.
func (v *View) DistanceTier(machineID, blockA, blockB string) (domain.DistanceTier, float64) {
	return scenario.DistanceTier(v.Scenario, machineID, blockA, blockB)
}

// RoleLayers returns the ascending role-precedence layers for a
// block's harvest system, or nil when the block has none.
func (v *View) RoleLayers(blockID string) [][]string {
	b, ok := v.Scenario.Block(blockID)
	if !ok || b.HarvestSystem == "" {
		return nil
	}
	return v.PrecedenceByHarvestSystem[b.HarvestSystem]
}

// EligibleMachines returns, in scenario declaration order, every
// machine eligible for blockID.
func (v *View) EligibleMachines(blockID string) []string {
	var out []string
	for _, m := range v.Scenario.Machines {
		if v.Eligible(m.ID, blockID) {
			out = append(out, m.ID)
		}
	}
	return out
}
