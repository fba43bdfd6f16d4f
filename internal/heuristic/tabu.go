package heuristic

import (
	"time"

	"github.com/fhops/fhops/internal/infra/rngsplit"
	"github.com/fhops/fhops/internal/problemview"
)

// TabuParams configures Tabu Search (§4.4): best-improvement neighbour
// selection, attribute tabu on (machine, block, day, shift) tuples,
// configurable tenure (auto-derived from problem size when zero),
// aspiration (accept a tabu move that beats best-so-far), and
// diversification restart when stalled.
type TabuParams struct {
	Iterations   int
	Seed         int64
	Tenure       int // 0 = auto-derive
	StallLimit   int
	SampleSize   int // candidates considered per iteration before taking the best
	Deadline     time.Time
}

type tabuAttribute struct {
	MachineID string
	BlockID   string
	Day       int
	ShiftID   string
}

// RunTabu executes one tabu search run.
func RunTabu(v *problemview.View, registry *Registry, seed *Schedule, p TabuParams) Result {
	tenure := p.Tenure
	if tenure <= 0 {
		tenure = autoTenure(v)
	}
	sample := p.SampleSize
	if sample < 1 {
		sample = 8
	}

	current := seed.Clone()
	Repair(current)
	best := current.Clone()
	bestScore := Score(best).Total()
	currentScore := bestScore

	tabu := map[tabuAttribute]int{} // attribute -> iteration it expires
	stats := map[string]*OperatorStats{}
	for _, e := range registry.Entries() {
		stats[e.Operator.Name()] = &OperatorStats{Name: e.Operator.Name(), Weight: e.Weight}
	}

	var steps []Step
	stall := 0
	timeLimitHit := false

	for it := 0; it < p.Iterations; it++ {
		if !p.Deadline.IsZero() && time.Now().After(p.Deadline) {
			timeLimitHit = true
			break
		}

		ctx := NewContext(current)
		rng := rngsplit.Child(p.Seed, it)

		var bestCand *Schedule
		var bestCandScore float64
		var bestOp string
		var bestAttr tabuAttribute
		found := false

		for k := 0; k < sample; k++ {
			op := registry.Pick(rng)
			if op == nil {
				continue
			}
			cand, ok := op.Apply(current, rng, ctx)
			if !ok {
				if stats[op.Name()] != nil {
					stats[op.Name()].Skipped++
				}
				continue
			}
			Repair(cand)
			if stats[op.Name()] != nil {
				stats[op.Name()].Proposals++
			}
			score := Score(cand).Total()
			attr := diffAttribute(current, cand)
			isTabu := tabu[attr] > it
			aspires := score > bestScore
			if isTabu && !aspires {
				continue
			}
			if !found || score > bestCandScore {
				bestCand, bestCandScore, bestOp, bestAttr, found = cand, score, op.Name(), attr, true
			}
		}

		if !found {
			stall++
		} else {
			current = bestCand
			currentScore = bestCandScore
			tabu[bestAttr] = it + tenure
			if stats[bestOp] != nil {
				stats[bestOp].Accepted++
			}
			if currentScore > bestScore {
				best = current.Clone()
				bestScore = currentScore
				stall = 0
			} else {
				stall++
			}
		}

		steps = append(steps, Step{Iteration: it, Best: bestScore, Current: currentScore, Operator: bestOp})

		if p.StallLimit > 0 && stall >= p.StallLimit {
			current = best.Clone()
			currentScore = bestScore
			stall = 0
		}
	}

	Repair(best)
	out := make([]OperatorStats, 0, len(stats))
	for _, e := range registry.Entries() {
		out = append(out, *stats[e.Operator.Name()])
	}

	return Result{
		Best:             best,
		Score:            Score(best),
		Steps:            steps,
		OperatorStats:    out,
		TimeLimitReached: timeLimitHit,
	}
}

// autoTenure derives a tabu tenure from problem size: roughly
// sqrt(machines * blocks), floored at 5.
func autoTenure(v *problemview.View) int {
	n := len(v.Scenario.Machines) * len(v.Scenario.Blocks)
	t := 5
	for t*t < n {
		t++
	}
	if t < 5 {
		t = 5
	}
	return t
}

// diffAttribute picks one representative changed (machine, block, day,
// shift) tuple between before/after to place on the tabu list. Exact
// multi-cell diffs (swap, cross-exchange) still only need one
// attribute tabu'd to discourage immediately reversing the move.
func diffAttribute(before, after *Schedule) tabuAttribute {
	for _, mid := range after.machineIDs {
		for d := 1; d <= after.days; d++ {
			for _, sid := range after.ShiftIDs() {
				b1 := before.Get(mid, d, sid)
				b2 := after.Get(mid, d, sid)
				if b1 != b2 {
					return tabuAttribute{MachineID: mid, BlockID: b2, Day: d, ShiftID: sid}
				}
			}
		}
	}
	return tabuAttribute{}
}
