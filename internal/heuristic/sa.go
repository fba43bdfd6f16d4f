package heuristic

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fhops/fhops/internal/infra/rngsplit"
	"github.com/fhops/fhops/internal/problemview"
)

// SAParams configures one Simulated Annealing run (§4.4).
type SAParams struct {
	Iterations      int
	Seed            int64
	Temp0           float64
	CoolingRate     float64
	RestartInterval int // iterations without improvement before reset-to-best
	BatchSize       int // 0 or 1 disables batched mode
	MaxWorkers      int
	Deadline        time.Time // zero value means "no deadline"
}

// RunSA executes one annealing run starting from seed and returns the
// best schedule found plus telemetry. Acceptance uses the Metropolis
// criterion; after RestartInterval iterations without improving the
// best-so-far, the run resets to best and raises T back to Temp0.
// Batched mode samples p.BatchSize independent candidates per
// iteration, evaluates them concurrently via an errgroup worker pool,
// and applies the best accepting one in a stable (batch-index) order
// so outcomes stay reproducible under a fixed seed (§5).
func RunSA(v *problemview.View, registry *Registry, seed *Schedule, p SAParams) Result {
	rng := rngsplit.New(p.Seed)
	current := seed.Clone()
	Repair(current)
	currentScore := Score(current).Total()

	best := current.Clone()
	bestScore := currentScore

	temp := p.Temp0
	if temp <= 0 {
		temp = 1.0
	}
	sinceImprovement := 0

	stats := map[string]*OperatorStats{}
	for _, e := range registry.Entries() {
		stats[e.Operator.Name()] = &OperatorStats{Name: e.Operator.Name(), Weight: e.Weight}
	}

	var steps []Step
	timeLimitHit := false

	batch := p.BatchSize
	if batch < 1 {
		batch = 1
	}
	workers := p.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	for it := 0; it < p.Iterations; it++ {
		if !p.Deadline.IsZero() && time.Now().After(p.Deadline) {
			timeLimitHit = true
			break
		}

		cand, op, accepted := saIteration(v, registry, current, rng, stats, temp, currentScore, batch, workers, p.Seed, it)
		if cand == nil {
			continue
		}
		if accepted {
			current = cand
			currentScore = Score(current).Total()
			if currentScore > bestScore {
				best = current.Clone()
				bestScore = currentScore
				sinceImprovement = 0
			} else {
				sinceImprovement++
			}
		} else {
			sinceImprovement++
		}

		if sinceImprovement >= p.RestartInterval && p.RestartInterval > 0 {
			current = best.Clone()
			currentScore = bestScore
			temp = p.Temp0
			sinceImprovement = 0
		} else {
			temp *= p.CoolingRate
			if temp < 1e-9 {
				temp = 1e-9
			}
		}

		steps = append(steps, Step{
			Iteration:   it,
			Best:        bestScore,
			Current:     currentScore,
			Temperature: temp,
			DeltaBest:   currentScore - bestScore,
			Operator:    op,
		})
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

// saIteration runs one SA iteration, including batched candidate
// generation when batch > 1.
func saIteration(v *problemview.View, registry *Registry, current *Schedule, rng rngRand, stats map[string]*OperatorStats,
	temp, currentScore float64, batch, workers int, parentSeed int64, it int) (*Schedule, string, bool) {

	ctx := NewContext(current)
	type candidate struct {
		schedule *Schedule
		op       string
		score    float64
	}
	candidates := make([]candidate, batch)

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for b := 0; b < batch; b++ {
		b := b
		g.Go(func() error {
			childRng := rngsplit.Child(parentSeed, it*1000003+b)
			op := registry.Pick(childRng)
			if op == nil {
				return nil
			}
			next, ok := op.Apply(current, childRng, ctx)
			if !ok {
				candidates[b] = candidate{op: op.Name()}
				return nil
			}
			Repair(next)
			candidates[b] = candidate{schedule: next, op: op.Name(), score: Score(next).Total()}
			return nil
		})
	}
	_ = g.Wait()

	var chosen *candidate
	for i := range candidates {
		c := &candidates[i]
		if stats[c.op] != nil {
			stats[c.op].Proposals++
		}
		if c.schedule == nil {
			if stats[c.op] != nil {
				stats[c.op].Skipped++
			}
			continue
		}
		if chosen == nil || c.score > chosen.score {
			chosen = c
		}
	}
	if chosen == nil {
		return nil, "", false
	}

	delta := chosen.score - currentScore
	accept := delta >= 0 || rng.Float64() < math.Exp(delta/temp)
	if accept && stats[chosen.op] != nil {
		stats[chosen.op].Accepted++
	}
	if !accept {
		return chosen.schedule, chosen.op, false
	}
	return chosen.schedule, chosen.op, true
}

type rngRand = interface {
	Float64() float64
}
