package heuristic

import (
	"math/rand"
	"time"

	"github.com/fhops/fhops/internal/infra/rngsplit"
	"github.com/fhops/fhops/internal/problemview"
)

// ILSParams configures Iterated Local Search (§4.4): a short SA phase,
// perturbation by k random operator applications, and optional restart
// from best when stalled. No MIP seeding is performed: every inner SA
// phase starts from the perturbed current schedule.
type ILSParams struct {
	Outer               int
	InnerSA             SAParams
	PerturbationStrength int
	StallLimit           int
	Seed                 int64
	Deadline             time.Time
}

// RunILS wraps RunSA in an outer perturb/re-optimise loop.
func RunILS(v *problemview.View, registry *Registry, seed *Schedule, p ILSParams) Result {
	current := seed.Clone()
	best := current.Clone()
	Repair(best)
	bestScore := Score(best).Total()
	stall := 0

	var allSteps []Step
	combinedStats := map[string]*OperatorStats{}
	timeLimitHit := false

	for outer := 0; outer < p.Outer; outer++ {
		if !p.Deadline.IsZero() && time.Now().After(p.Deadline) {
			timeLimitHit = true
			break
		}

		inner := p.InnerSA
		inner.Seed = rngsplit.Split(p.Seed, outer)
		inner.Deadline = p.Deadline
		res := RunSA(v, registry, current, inner)
		allSteps = append(allSteps, res.Steps...)
		for _, st := range res.OperatorStats {
			if combinedStats[st.Name] == nil {
				combinedStats[st.Name] = &OperatorStats{Name: st.Name, Weight: st.Weight}
			}
			combinedStats[st.Name].Proposals += st.Proposals
			combinedStats[st.Name].Accepted += st.Accepted
			combinedStats[st.Name].Skipped += st.Skipped
		}
		if res.TimeLimitReached {
			timeLimitHit = true
		}

		score := res.Score.Total()
		if score > bestScore {
			best = res.Best.Clone()
			bestScore = score
			stall = 0
		} else {
			stall++
		}

		current = perturb(v, registry, res.Best, rngsplit.Child(p.Seed, outer*7+1), p.PerturbationStrength)

		if p.StallLimit > 0 && stall >= p.StallLimit {
			current = best.Clone()
			stall = 0
		}
		if timeLimitHit {
			break
		}
	}

	out := make([]OperatorStats, 0, len(combinedStats))
	for _, e := range registry.Entries() {
		if st := combinedStats[e.Operator.Name()]; st != nil {
			out = append(out, *st)
		}
	}

	return Result{
		Best:             best,
		Score:            Score(best),
		Steps:            allSteps,
		OperatorStats:    out,
		TimeLimitReached: timeLimitHit,
	}
}

func perturb(v *problemview.View, registry *Registry, s *Schedule, rng *rand.Rand, k int) *Schedule {
	out := s.Clone()
	ctx := NewContext(out)
	for i := 0; i < k; i++ {
		op := registry.Pick(rng)
		if op == nil {
			continue
		}
		if next, ok := op.Apply(out, rng, ctx); ok {
			out = next
			ctx = NewContext(out)
		}
	}
	Repair(out)
	return out
}
