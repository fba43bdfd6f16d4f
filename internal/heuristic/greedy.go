package heuristic

import (
	"sort"

	"github.com/fhops/fhops/internal/domain"
	"github.com/fhops/fhops/internal/problemview"
)

// GreedySeed builds an initial feasible-ish schedule (§4.4 "Greedy
// seed"): blocks are sorted by earliest-start then remaining work
// descending; each block's valid window is walked in chronological
// (day, shift) order, assigning the highest-rate eligible, available,
// non-locked machine until the block completes or its window ends.
// Every lock is then force-inserted; a repair pass removes anything
// that ends up violating precedence or availability.
func GreedySeed(v *problemview.View) (*Schedule, error) {
	s := NewSchedule(v)

	blocks := append([]domain.Block(nil), v.Scenario.Blocks...)
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].EarliestStart != blocks[j].EarliestStart {
			return blocks[i].EarliestStart < blocks[j].EarliestStart
		}
		return blocks[i].RequiredWork > blocks[j].RequiredWork
	})

	busy := map[slotKey]bool{}

	for _, b := range blocks {
		seedBlock(s, v, b, busy)
	}

	if err := insertLocks(s, v, busy); err != nil {
		return nil, err
	}

	Repair(s)
	return s, nil
}

type slotKey struct {
	MachineID string
	Day       int
	ShiftID   string
}

func seedBlock(s *Schedule, v *problemview.View, b domain.Block, busy map[slotKey]bool) {
	remaining := b.RequiredWork
	layers := v.RoleLayers(b.ID)
	layerOf := roleLayerIndex(layers)
	threshold := 0.0
	if len(layers) > 1 {
		threshold = b.RequiredWork / float64(len(layers))
	}
	producedByLayer := map[int]float64{}

	for day := b.EarliestStart; day <= b.LatestFinish && remaining > 0; day++ {
		for _, sid := range v.ShiftIDs {
			if remaining <= 0 {
				break
			}
			machines := v.EligibleMachines(b.ID)
			best, bestRate, bestLayer := "", 0.0, 0
			for _, mid := range machines {
				key := slotKey{MachineID: mid, Day: day, ShiftID: sid}
				if busy[key] {
					continue
				}
				if !v.Available(mid, day, sid) {
					continue
				}
				m, ok := v.Scenario.Machine(mid)
				if !ok {
					continue
				}
				layer := layerOf[m.Role]
				if !roleAllowedOnDay(layer, threshold, producedByLayer) {
					continue
				}
				rate := v.Rate(mid, b.ID)
				if rate > bestRate {
					best, bestRate, bestLayer = mid, rate, layer
				}
			}
			if best == "" {
				continue
			}
			s.Set(best, day, sid, b.ID)
			busy[slotKey{MachineID: best, Day: day, ShiftID: sid}] = true
			remaining -= bestRate
			producedByLayer[bestLayer] += bestRate
		}
	}
}

// roleLayerIndex maps each role present in layers to its ascending
// layer index; a role absent from the block's harvest system (or a
// block with no harvest system at all) is left at the zero value,
// which roleAllowedOnDay treats as the unconstrained base layer.
func roleLayerIndex(layers [][]string) map[string]int {
	idx := map[string]int{}
	for i, roles := range layers {
		for _, r := range roles {
			idx[r] = i
		}
	}
	return idx
}

// roleAllowedOnDay approximates §4.4's role-precedence gate at seed
// time: a layer-k role may only be assigned once layer k-1 has
// produced at least required/|layers| of the block's work. Layer 0
// (or any role outside the harvest system's layering) is always
// allowed; Repair enforces the exact invariant afterward regardless.
func roleAllowedOnDay(layer int, threshold float64, producedByLayer map[int]float64) bool {
	if layer <= 0 {
		return true
	}
	return producedByLayer[layer-1] >= threshold
}

func insertLocks(s *Schedule, v *problemview.View, busy map[slotKey]bool) error {
	for _, l := range v.Scenario.Locks {
		key := slotKey{MachineID: l.MachineID, Day: l.Day, ShiftID: l.ShiftID}
		// clear whatever a greedy pass may have placed there, then force the lock
		s.Set(l.MachineID, l.Day, l.ShiftID, "")
		s.Set(l.MachineID, l.Day, l.ShiftID, l.BlockID)
		busy[key] = true
	}
	return nil
}

// Repair sweeps the schedule removing assignments that violate
// precedence or availability, the pass SA/ILS/Tabu re-run after every
// accepted move so every returned schedule has zero sequencing
// violations and zero availability violations (§4.4, §8 property 7).
func Repair(s *Schedule) {
	ctx := NewContext(s)

	for _, mid := range s.machineIDs {
		for d := 1; d <= s.days; d++ {
			for _, sid := range s.ShiftIDs() {
				blockID := s.Get(mid, d, sid)
				if blockID == "" {
					continue
				}
				if ctx.isLocked(mid, d, sid) {
					continue
				}
				if !s.view.Available(mid, d, sid) {
					s.Set(mid, d, sid, "")
					continue
				}
				if !withinWindow(s, blockID, d) {
					s.Set(mid, d, sid, "")
				}
			}
		}
	}

	repairSequencing(s, ctx)
}

// repairSequencing clears assignments to a dependent-role job on a
// block before its prerequisite layer has produced its required
// share, iterating day by day so later clears can unlock earlier
// layers' credit correctly.
func repairSequencing(s *Schedule, ctx *Context) {
	for _, b := range s.view.Scenario.Blocks {
		layers := s.view.RoleLayers(b.ID)
		if len(layers) < 2 {
			continue
		}
		prodByRole := map[string]float64{}
		threshold := b.RequiredWork / float64(len(layers))
		for d := 1; d <= s.days; d++ {
			dayByRole := map[string][]slotKey{}
			for _, mid := range s.machineIDs {
				m, ok := s.view.Scenario.Machine(mid)
				if !ok {
					continue
				}
				for _, sid := range s.ShiftIDs() {
					if s.Get(mid, d, sid) != b.ID {
						continue
					}
					dayByRole[m.Role] = append(dayByRole[m.Role], slotKey{MachineID: mid, Day: d, ShiftID: sid})
				}
			}
			for layerIdx, roles := range layers {
				if layerIdx == 0 {
					continue
				}
				var prevCum float64
				for _, r := range layers[layerIdx-1] {
					prevCum += prodByRole[r]
				}
				if prevCum >= threshold {
					continue
				}
				for _, r := range roles {
					for _, key := range append([]slotKey(nil), dayByRole[r]...) {
						if ctx.isLocked(key.MachineID, key.Day, key.ShiftID) {
							continue
						}
						s.Set(key.MachineID, key.Day, key.ShiftID, "")
						delete2D(dayByRole, r, key)
					}
				}
			}
			for role, keys := range dayByRole {
				for _, k := range keys {
					if s.Get(k.MachineID, k.Day, k.ShiftID) == b.ID {
						prodByRole[role] += s.view.Rate(k.MachineID, b.ID)
					}
				}
			}
		}
	}
}

func delete2D(m map[string][]slotKey, role string, key slotKey) {
	keys := m[role]
	for i, k := range keys {
		if k == key {
			m[role] = append(keys[:i], keys[i+1:]...)
			return
		}
	}
}
