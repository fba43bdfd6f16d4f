package mip

import (
	"sort"

	"github.com/fhops/fhops/internal/heuristic"
	"github.com/fhops/fhops/internal/problemview"
)

// ExtractAssignments decodes a solved Problem's x|... binaries back
// into the canonical assignment table (§4.3 "extracts assignments"),
// in the same (machine, day, shift, block) order Schedule.Assignments
// guarantees. It walks the same (machine, block, day, shift) domain
// Build used to declare the x variables rather than parsing variable
// names, since machine/block ids may themselves contain "|".
func ExtractAssignments(v *problemview.View, sol Solution) []heuristic.Assignment {
	var out []heuristic.Assignment
	for _, m := range v.Scenario.Machines {
		for _, b := range v.Scenario.Blocks {
			if !v.Eligible(m.ID, b.ID) {
				continue
			}
			for day := b.EarliestStart; day <= b.LatestFinish; day++ {
				for _, sid := range v.ShiftIDs {
					if sol.ValueOf(xName(m.ID, b.ID, day, sid)) <= 0.5 {
						continue
					}
					out = append(out, heuristic.Assignment{
						MachineID: m.ID, BlockID: b.ID, Day: day, ShiftID: sid,
					})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MachineID != b.MachineID {
			return a.MachineID < b.MachineID
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.ShiftID != b.ShiftID {
			return a.ShiftID < b.ShiftID
		}
		return a.BlockID < b.BlockID
	})
	return out
}
