package heuristic

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fhops/fhops/internal/infra/rngsplit"
	"github.com/fhops/fhops/internal/problemview"
)

// Algorithm selects which solver MultiStart launches per run.
type Algorithm int

const (
	AlgorithmSA Algorithm = iota
	AlgorithmILS
	AlgorithmTabu
)

// MultiStartParams configures K independent solver runs with distinct
// derived seeds, run concurrently (§4.4 "Multi-start").
type MultiStartParams struct {
	Runs       int
	Seed       int64
	MaxWorkers int
	Algorithm  Algorithm
	SA         SAParams
	ILS        ILSParams
	Tabu       TabuParams
}

// MultiStartResult holds every run's Result plus the index of the best.
type MultiStartResult struct {
	Runs      []Result
	BestIndex int
}

// RunMultiStart launches p.Runs independent runs with seeds derived by
// rngsplit.Split(p.Seed, i), collects each run's telemetry, and
// reports the best schedule by score.
func RunMultiStart(v *problemview.View, registry *Registry, seed *Schedule, p MultiStartParams) MultiStartResult {
	results := make([]Result, p.Runs)

	g, _ := errgroup.WithContext(context.Background())
	workers := p.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := 0; i < p.Runs; i++ {
		i := i
		g.Go(func() error {
			runSeed := rngsplit.Split(p.Seed, i)
			results[i] = runOne(v, registry, seed, p, runSeed)
			return nil
		})
	}
	_ = g.Wait()

	best := 0
	bestScore := results[0].Score.Total()
	for i := 1; i < len(results); i++ {
		if s := results[i].Score.Total(); s > bestScore {
			best, bestScore = i, s
		}
	}

	return MultiStartResult{Runs: results, BestIndex: best}
}

func runOne(v *problemview.View, registry *Registry, seed *Schedule, p MultiStartParams, runSeed int64) Result {
	switch p.Algorithm {
	case AlgorithmILS:
		params := p.ILS
		params.Seed = runSeed
		return RunILS(v, registry, seed, params)
	case AlgorithmTabu:
		params := p.Tabu
		params.Seed = runSeed
		return RunTabu(v, registry, seed, params)
	default:
		params := p.SA
		params.Seed = runSeed
		return RunSA(v, registry, seed, params)
	}
}
