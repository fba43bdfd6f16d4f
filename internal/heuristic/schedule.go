// Package heuristic implements the shared schedule representation,
// neighbourhood-operator registry, and the Simulated Annealing /
// Iterated Local Search / Tabu Search solvers that sit on top of it
// (C4). All three solvers share Score, the operator Registry, Repair,
// and the Result/Step/OperatorStats records; what differs (temperature
// schedule, tabu list, perturbation) stays local to each solver (§9
// "Inheritance-heavy solver hierarchy → composition").
package heuristic

import (
	"sort"

	"github.com/fhops/fhops/internal/problemview"
)

const unassigned = -1

// Schedule is a dense 3-D index (machine, day, shift) -> block index,
// backed by a flat slice rather than a nested map (§9 "Schedule as a
// nested hash map → flat indexed table"). Cloning is a slice copy;
// transition/playback scans are linear passes.
type Schedule struct {
	view *problemview.View

	machineIDs []string
	machineIdx map[string]int
	days       int
	shiftIDs   []string
	shiftIdx   map[string]int
	blockIDs   []string
	blockIdx   map[string]int

	// cell[m*days*shifts + d*shifts + s] = block index, or unassigned.
	cell []int

	// remaining[b] tracks work left on block b; kept in sync by Set.
	remaining []float64
}

// NewSchedule builds an empty schedule over the view's scenario.
func NewSchedule(v *problemview.View) *Schedule {
	s := v.Scenario
	machineIDs := make([]string, len(s.Machines))
	machineIdx := make(map[string]int, len(s.Machines))
	for i, m := range s.Machines {
		machineIDs[i] = m.ID
		machineIdx[m.ID] = i
	}
	blockIDs := make([]string, len(s.Blocks))
	blockIdx := make(map[string]int, len(s.Blocks))
	remaining := make([]float64, len(s.Blocks))
	for i, b := range s.Blocks {
		blockIDs[i] = b.ID
		blockIdx[b.ID] = i
		remaining[i] = b.RequiredWork
	}
	shiftIDs := v.ShiftIDs
	shiftIdx := make(map[string]int, len(shiftIDs))
	for i, id := range shiftIDs {
		shiftIdx[id] = i
	}

	cell := make([]int, len(machineIDs)*s.Horizon*len(shiftIDs))
	for i := range cell {
		cell[i] = unassigned
	}

	return &Schedule{
		view:       v,
		machineIDs: machineIDs,
		machineIdx: machineIdx,
		days:       s.Horizon,
		shiftIDs:   shiftIDs,
		shiftIdx:   shiftIdx,
		blockIDs:   blockIDs,
		blockIdx:   blockIdx,
		cell:       cell,
		remaining:  remaining,
	}
}

func (s *Schedule) index(m, d, sh int) int {
	return m*s.days*len(s.shiftIDs) + d*len(s.shiftIDs) + sh
}

// Clone deep-copies the schedule; operators mutate the clone, never
// the original, keeping the caller's current-best safe to keep around.
func (s *Schedule) Clone() *Schedule {
	out := *s
	out.cell = append([]int(nil), s.cell...)
	out.remaining = append([]float64(nil), s.remaining...)
	return &out
}

// Get returns the assigned block id at (machineID, day, shiftID), or
// "" if idle. day is 1-based.
func (s *Schedule) Get(machineID string, day int, shiftID string) string {
	mi, ok := s.machineIdx[machineID]
	if !ok {
		return ""
	}
	si, ok := s.shiftIdx[shiftID]
	if !ok {
		return ""
	}
	bi := s.cell[s.index(mi, day-1, si)]
	if bi == unassigned {
		return ""
	}
	return s.blockIDs[bi]
}

// Set assigns machineID to blockID at (day, shiftID); blockID == ""
// clears the slot. It does not check feasibility — operators and the
// greedy seed are responsible for only proposing feasible moves.
func (s *Schedule) Set(machineID string, day int, shiftID string, blockID string) {
	mi, ok := s.machineIdx[machineID]
	if !ok {
		return
	}
	si, ok := s.shiftIdx[shiftID]
	if !ok {
		return
	}
	idx := s.index(mi, day-1, si)
	bi := unassigned
	if blockID != "" {
		if bi, ok = s.blockIdx[blockID]; !ok {
			return
		}
	}
	if old := s.cell[idx]; old != unassigned {
		s.remaining[old] += s.view.Rate(machineID, s.blockIDs[old])
	}
	s.cell[idx] = bi
	if bi != unassigned {
		s.remaining[bi] -= s.view.Rate(machineID, blockID)
	}
}

// MachineIDs returns the scenario's machines in declaration order.
func (s *Schedule) MachineIDs() []string { return s.machineIDs }

// Days returns the scenario horizon.
func (s *Schedule) Days() int { return s.days }

// ShiftIDs returns the timeline's shift ids in order.
func (s *Schedule) ShiftIDs() []string { return s.shiftIDs }

// Assignment is one occupied (machine, day, shift) -> block cell.
type Assignment struct {
	MachineID string
	BlockID   string
	Day       int
	ShiftID   string
}

// Assignments returns every occupied cell, stable-sorted by
// (machine, day, shift, block) per §5's ordering guarantee so exports
// diff byte-exactly across runs.
func (s *Schedule) Assignments() []Assignment {
	var out []Assignment
	for mi, mid := range s.machineIDs {
		for d := 0; d < s.days; d++ {
			for si, sid := range s.shiftIDs {
				bi := s.cell[s.index(mi, d, si)]
				if bi == unassigned {
					continue
				}
				out = append(out, Assignment{MachineID: mid, BlockID: s.blockIDs[bi], Day: d + 1, ShiftID: sid})
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

// MachineBlocksOnDay returns, in shift order, the blocks machineID
// touches on day d with consecutive repeats collapsed (used by
// transition/mobilisation scoring and mobilisation_shake).
func (s *Schedule) MachineBlocksOnDay(machineID string, day int) []string {
	var out []string
	var last string
	for _, sid := range s.shiftIDs {
		b := s.Get(machineID, day, sid)
		if b == "" {
			continue
		}
		if b != last {
			out = append(out, b)
			last = b
		}
	}
	return out
}

// Produced returns how much work has been produced so far against
// block b's required work (RequiredWork - remaining).
func (s *Schedule) Produced(blockID string) float64 {
	bi, ok := s.blockIdx[blockID]
	if !ok {
		return 0
	}
	b, _ := s.view.Scenario.Block(blockID)
	return b.RequiredWork - s.remaining[bi]
}

func (s *Schedule) recomputeRemaining() {
	for i := range s.remaining {
		s.remaining[i] = 0
	}
	for i, id := range s.blockIDs {
		b, _ := s.view.Scenario.Block(id)
		s.remaining[i] = b.RequiredWork
	}
	for _, a := range s.Assignments() {
		rate := s.view.Rate(a.MachineID, a.BlockID)
		bi := s.blockIdx[a.BlockID]
		s.remaining[bi] -= rate
	}
}
