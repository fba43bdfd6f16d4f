package scenario

import "github.com/fhops/fhops/internal/domain"

// Available reports whether machine m can be assigned on (day, shiftID),
// combining day-level calendar, shift-level calendar, and timeline
// blackouts (§4.2). Absent calendar entries mean "available". A present
// shift-calendar entry overrides the day-level calendar for that shift.
func Available(s *domain.Scenario, machineID string, day int, shiftID string) bool {
	if day < 1 || day > s.Horizon {
		return false
	}
	for _, bw := range s.Timeline.Blackouts {
		if day < bw.StartDay || day > bw.EndDay {
			continue
		}
		if len(bw.MachineIDs) == 0 {
			return false
		}
		for _, id := range bw.MachineIDs {
			if id == machineID {
				return false
			}
		}
	}

	for _, sc := range s.ShiftCalendar {
		if sc.MachineID == machineID && sc.Day == day && sc.ShiftID == shiftID {
			return sc.Available
		}
	}
	for _, ce := range s.Calendar {
		if ce.MachineID == machineID && ce.Day == day {
			return ce.Available
		}
	}
	return true
}

// RateOf returns the production rate for (machineID, blockID), or 0 if
// no rate row exists.
func RateOf(s *domain.Scenario, machineID, blockID string) float64 {
	for _, r := range s.Rates {
		if r.MachineID == machineID && r.BlockID == blockID {
			return r.Rate
		}
	}
	return 0
}

// Eligible reports whether machine m may ever be assigned to block b:
// when the block has a harvest system, m's canonical role must be
// required by some job of that system; in every case a positive rate
// must exist (§4.2).
func Eligible(s *domain.Scenario, machineID, blockID string) bool {
	m, ok := s.Machine(machineID)
	if !ok {
		return false
	}
	b, ok := s.Block(blockID)
	if !ok {
		return false
	}
	if RateOf(s, machineID, blockID) <= 0 {
		return false
	}
	if b.HarvestSystem == "" {
		return true
	}
	hs, ok := s.HarvestSystems[b.HarvestSystem]
	if !ok {
		return true // unresolvable reference is a validator error, not an eligibility concern
	}
	for _, j := range hs.Jobs {
		if j.Role == m.Role {
			return true
		}
	}
	return false
}

// DistanceTier classifies the distance between two blocks for
// mobilisation scoring (§4.2), tiering against machineID's own
// walk_threshold_m (§3 — the threshold is a per-machine parameter, not
// a scenario-wide constant). Same block is always TierSameBlock.
func DistanceTier(s *domain.Scenario, machineID, blockA, blockB string) (domain.DistanceTier, float64) {
	if blockA == blockB {
		return domain.TierSameBlock, 0
	}
	d, ok := lookupDistance(s, blockA, blockB)
	if !ok {
		return domain.TierUnknown, 0
	}
	threshold := MachineMobilisationParams(s, machineID).WalkThresholdM
	if d < threshold {
		return domain.TierWalkable, d
	}
	return domain.TierMove, d
}

func lookupDistance(s *domain.Scenario, a, b string) (float64, bool) {
	if d, ok := s.Mobilisation.Distances[[2]string{a, b}]; ok {
		return d, true
	}
	if d, ok := s.Mobilisation.Distances[[2]string{b, a}]; ok {
		return d, true
	}
	return 0, false
}

// MachineMobilisationParams resolves the effective mobilisation
// parameters for a machine, falling back to the scenario-wide defaults.
func MachineMobilisationParams(s *domain.Scenario, machineID string) domain.MobilisationParams {
	if p, ok := s.Mobilisation.PerMachine[machineID]; ok {
		return p
	}
	return s.Mobilisation.DefaultParams
}
