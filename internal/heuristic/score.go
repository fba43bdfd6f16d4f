package heuristic

import (
	"github.com/fhops/fhops/internal/domain"
)

// ScoreBreakdown is the additive decomposition of a schedule's score,
// exposed mainly for telemetry and for the scoring-equivalence property
// test against the MIP objective (§8 property 1).
type ScoreBreakdown struct {
	Production      float64
	CompletionBonus float64
	Mobilisation    float64
	Transitions     float64
	LandingSlack    float64
	LeftoverPenalty float64
	SequencingViol  int
}

// Total collapses the breakdown to the scalar score SA/ILS/Tabu
// maximise. It must use the exact same algebraic form as the MIP
// objective in §4.3 so that any schedule feasible for both produces an
// identical value (the "scoring equivalence" testable property).
func (b ScoreBreakdown) Total() float64 {
	return b.Production + b.CompletionBonus - b.Mobilisation - b.Transitions - b.LandingSlack - b.LeftoverPenalty
}

// Score evaluates schedule s against scenario weights. It does not
// itself enforce feasibility; operators/repair are responsible for
// only ever producing feasible schedules, so a violated hard
// constraint here simply scores badly rather than panicking.
func Score(s *Schedule) ScoreBreakdown {
	scn := s.view.Scenario
	w := scn.Weights

	var b ScoreBreakdown

	produced := make(map[string]float64, len(scn.Blocks))
	for _, blk := range scn.Blocks {
		produced[blk.ID] = 0
	}
	for _, a := range s.Assignments() {
		produced[a.BlockID] += s.view.Rate(a.MachineID, a.BlockID)
	}

	for _, blk := range scn.Blocks {
		p := produced[blk.ID]
		credited := p
		if credited > blk.RequiredWork {
			credited = blk.RequiredWork
		}
		b.Production += w.Production * credited
		if p >= blk.RequiredWork && blk.RequiredWork > 0 {
			b.CompletionBonus += blk.RequiredWork * w.Production
		}
		if shortfall := blk.RequiredWork - p; shortfall > 0 {
			b.LeftoverPenalty += w.EffectiveLeftoverPenalty() * shortfall
		}
	}

	b.Mobilisation, b.Transitions = mobilisationAndTransitions(s, w)

	b.LandingSlack = landingSlackPenalty(s, w)

	b.SequencingViol = countSequencingViolations(s)

	return b
}

func mobilisationAndTransitions(s *Schedule, w domain.ObjectiveWeights) (mob float64, transitions float64) {
	for _, mid := range s.machineIDs {
		for d := 1; d <= s.days; d++ {
			blocks := s.MachineBlocksOnDay(mid, d)
			for i := 1; i < len(blocks); i++ {
				transitions += w.Transitions
				tier, dist := s.view.DistanceTier(mid, blocks[i-1], blocks[i])
				mp := machineMobilisationParams(s, mid)
				switch tier {
				case domain.TierSameBlock:
					// no cost
				case domain.TierWalkable:
					mob += w.Mobilisation * mp.WalkCost
				case domain.TierMove:
					mob += w.Mobilisation * (mp.SetupCost + mp.MoveCostPerKm*dist/1000.0)
				case domain.TierUnknown:
					mob += w.Mobilisation * (mp.SetupCost + mp.MoveCostPerKm*dist/1000.0)
				}
			}
		}
	}
	return mob, transitions
}

func machineMobilisationParams(s *Schedule, machineID string) domain.MobilisationParams {
	if p, ok := s.view.Scenario.Mobilisation.PerMachine[machineID]; ok {
		return p
	}
	return s.view.Scenario.Mobilisation.DefaultParams
}

func landingSlackPenalty(s *Schedule, w domain.ObjectiveWeights) float64 {
	if w.LandingSlack == 0 {
		return 0
	}
	type key struct {
		landing string
		day     int
	}
	counts := map[key]map[string]bool{}
	for _, a := range s.Assignments() {
		blk, ok := s.view.Scenario.Block(a.BlockID)
		if !ok {
			continue
		}
		k := key{landing: blk.LandingID, day: a.Day}
		if counts[k] == nil {
			counts[k] = map[string]bool{}
		}
		counts[k][a.MachineID] = true
	}
	var slack float64
	for k, machines := range counts {
		landing, ok := s.view.Scenario.Landing(k.landing)
		if !ok {
			continue
		}
		if over := len(machines) - landing.Capacity; over > 0 {
			slack += float64(over)
		}
	}
	return w.LandingSlack * slack
}

// countSequencingViolations counts, for every (block, layer) pair, how
// many assignments to a later-layer role occur before the prior layer
// has produced its share (§8 property 7, §4.3 constraint 8).
func countSequencingViolations(s *Schedule) int {
	violations := 0
	for _, blk := range s.view.Scenario.Blocks {
		layers := s.view.RoleLayers(blk.ID)
		if len(layers) < 2 {
			continue
		}
		// cumulative production per role, recomputed day by day in order.
		prodByRoleUpToDay := map[string]float64{}
		for d := 1; d <= s.days; d++ {
			dayProd := map[string]float64{}
			for _, mid := range s.machineIDs {
				m, ok := s.view.Scenario.Machine(mid)
				if !ok {
					continue
				}
				for _, sid := range s.ShiftIDs() {
					if s.Get(mid, d, sid) != blk.ID {
						continue
					}
					dayProd[m.Role] += s.view.Rate(mid, blk.ID)
				}
			}
			for layerIdx, roles := range layers {
				if layerIdx == 0 {
					continue
				}
				prevRoles := layers[layerIdx-1]
				var prevCum float64
				for _, r := range prevRoles {
					prevCum += prodByRoleUpToDay[r]
				}
				threshold := blk.RequiredWork / float64(len(layers))
				for _, r := range roles {
					if dayProd[r] > 0 && prevCum < threshold {
						violations++
					}
				}
			}
			for r, p := range dayProd {
				prodByRoleUpToDay[r] += p
			}
		}
	}
	return violations
}
