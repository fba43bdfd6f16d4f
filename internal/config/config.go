// Package config loads the SolverProfile that parameterises one
// scheduling run — which algorithm to use, its iteration/cooling/tabu
// settings, operator weights, worker pool size, RNG seed, and wall-clock
// deadline (§1.3) — from a TOML file, mirroring the teacher's
// daemon.Config / config.toml pattern: a DefaultConfig-shaped struct
// decoded in place over struct tags.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/fhops/fhops/internal/controller"
	"github.com/fhops/fhops/internal/heuristic"
)

// SAProfile configures a Simulated Annealing run.
type SAProfile struct {
	Iterations      int     `toml:"iterations"`
	Temp0           float64 `toml:"temp0"`
	CoolingRate     float64 `toml:"cooling_rate"`
	RestartInterval int     `toml:"restart_interval"`
	BatchSize       int     `toml:"batch_size"`
}

// ILSProfile configures the outer Iterated Local Search loop; InnerSA
// reuses SAProfile for the inner re-optimisation phase.
type ILSProfile struct {
	Outer                int       `toml:"outer"`
	InnerSA              SAProfile `toml:"inner_sa"`
	PerturbationStrength int       `toml:"perturbation_strength"`
	StallLimit           int       `toml:"stall_limit"`
}

// TabuProfile configures a Tabu Search run. Tenure of 0 means "auto",
// delegated to heuristic.autoTenure.
type TabuProfile struct {
	Iterations int `toml:"iterations"`
	Tenure     int `toml:"tenure"`
	StallLimit int `toml:"stall_limit"`
	SampleSize int `toml:"sample_size"`
}

// OperatorWeights configures DefaultRegistry's selection weights (§4.4).
type OperatorWeights struct {
	Swap              float64 `toml:"swap"`
	Move              float64 `toml:"move"`
	BlockInsertion    float64 `toml:"block_insertion"`
	CrossExchange     float64 `toml:"cross_exchange"`
	MobilisationShake float64 `toml:"mobilisation_shake"`
}

// RollingHorizonProfile configures the planning controller (C7, §4.7).
type RollingHorizonProfile struct {
	MasterDays int `toml:"master_days"`
	SubDays    int `toml:"sub_days"`
	LockDays   int `toml:"lock_days"`
}

// SolverProfile is the complete TOML-loadable configuration for one
// scheduling run.
type SolverProfile struct {
	Algorithm       string                `toml:"algorithm"` // "sa", "ils", or "tabu"
	Seed            int64                 `toml:"seed"`
	MaxWorkers      int                   `toml:"max_workers"`
	DeadlineSeconds int                   `toml:"deadline_seconds"` // 0 means no deadline
	SA              SAProfile             `toml:"sa"`
	ILS             ILSProfile            `toml:"ils"`
	Tabu            TabuProfile           `toml:"tabu"`
	Operators       OperatorWeights       `toml:"operators"`
	RollingHorizon  RollingHorizonProfile `toml:"rolling_horizon"`
}

// DefaultSolverProfile returns the built-in defaults. Only the
// operator weights correspond to heuristic.DefaultRegistry; the
// solver parameters are this package's own choices.
func DefaultSolverProfile() SolverProfile {
	return SolverProfile{
		Algorithm:       "sa",
		Seed:            1,
		MaxWorkers:      4,
		DeadlineSeconds: 0,
		SA: SAProfile{
			Iterations:      2000,
			Temp0:           10.0,
			CoolingRate:     0.995,
			RestartInterval: 200,
			BatchSize:       1,
		},
		ILS: ILSProfile{
			Outer: 20,
			InnerSA: SAProfile{
				Iterations:      200,
				Temp0:           5.0,
				CoolingRate:     0.97,
				RestartInterval: 50,
				BatchSize:       1,
			},
			PerturbationStrength: 3,
			StallLimit:           5,
		},
		Tabu: TabuProfile{
			Iterations: 2000,
			Tenure:     0,
			StallLimit: 200,
			SampleSize: 30,
		},
		Operators: OperatorWeights{
			Swap: 1.0, Move: 1.0, BlockInsertion: 1.0,
			CrossExchange: 0.5, MobilisationShake: 0.5,
		},
		RollingHorizon: RollingHorizonProfile{MasterDays: 0, SubDays: 0, LockDays: 0},
	}
}

// LoadSolverProfile decodes path over DefaultSolverProfile, so a TOML
// file only needs to set the fields it overrides.
func LoadSolverProfile(path string) (SolverProfile, error) {
	profile := DefaultSolverProfile()
	if _, err := toml.DecodeFile(path, &profile); err != nil {
		return SolverProfile{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return profile, nil
}

// Deadline turns DeadlineSeconds into an absolute time.Time anchored at
// now, or the zero Time ("no deadline") when unset.
func (p SolverProfile) Deadline() time.Time {
	if p.DeadlineSeconds <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(p.DeadlineSeconds) * time.Second)
}

// Registry builds the operator registry p.Operators describes.
func (p SolverProfile) Registry() *heuristic.Registry {
	return heuristic.NewWeightedRegistry(
		p.Operators.Swap, p.Operators.Move, p.Operators.BlockInsertion,
		p.Operators.CrossExchange, p.Operators.MobilisationShake,
	)
}

// SAParams turns p.SA (plus the shared seed/deadline) into heuristic.SAParams.
func (p SolverProfile) SAParams() heuristic.SAParams {
	return heuristic.SAParams{
		Iterations:      p.SA.Iterations,
		Seed:            p.Seed,
		Temp0:           p.SA.Temp0,
		CoolingRate:     p.SA.CoolingRate,
		RestartInterval: p.SA.RestartInterval,
		BatchSize:       p.SA.BatchSize,
		MaxWorkers:      p.MaxWorkers,
		Deadline:        p.Deadline(),
	}
}

// ILSParams turns p.ILS (plus the shared seed/deadline) into heuristic.ILSParams.
func (p SolverProfile) ILSParams() heuristic.ILSParams {
	inner := p
	inner.SA = p.ILS.InnerSA
	return heuristic.ILSParams{
		Outer:                p.ILS.Outer,
		InnerSA:              inner.SAParams(),
		PerturbationStrength: p.ILS.PerturbationStrength,
		StallLimit:           p.ILS.StallLimit,
		Seed:                 p.Seed,
		Deadline:             p.Deadline(),
	}
}

// TabuParams turns p.Tabu (plus the shared seed/deadline) into heuristic.TabuParams.
func (p SolverProfile) TabuParams() heuristic.TabuParams {
	return heuristic.TabuParams{
		Iterations: p.Tabu.Iterations,
		Seed:       p.Seed,
		Tenure:     p.Tabu.Tenure,
		StallLimit: p.Tabu.StallLimit,
		SampleSize: p.Tabu.SampleSize,
		Deadline:   p.Deadline(),
	}
}

// ControllerParams turns p.RollingHorizon into controller.Params.
func (p SolverProfile) ControllerParams() controller.Params {
	var budget time.Duration
	if p.DeadlineSeconds > 0 {
		budget = time.Duration(p.DeadlineSeconds) * time.Second
	}
	return controller.Params{
		MasterDays:      p.RollingHorizon.MasterDays,
		SubDays:         p.RollingHorizon.SubDays,
		LockDays:        p.RollingHorizon.LockDays,
		IterationBudget: budget,
	}
}
