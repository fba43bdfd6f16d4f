package mip

import (
	"context"
	"fmt"

	"github.com/fhops/fhops/internal/domain"
	"github.com/fhops/fhops/internal/heuristic"
	"github.com/fhops/fhops/internal/problemview"
)

// SolverErrorKind classifies why a Backend failed to produce a solution.
type SolverErrorKind int

const (
	// Infeasible means the backend proved no feasible assignment exists.
	Infeasible SolverErrorKind = iota
	// TimeLimit means the deadline or context expired before the backend
	// had any solution to return (StubBackend returns it when ctx is
	// already done). A backend that stops early while holding a solution
	// returns that Solution with TimeLimitReached set instead.
	TimeLimit
	// Backend means the backend itself failed (crash, malformed problem,
	// unsupported construct) independent of the problem's feasibility.
	Backend
)

// SolverError wraps one of the three solver-facing sentinels (§4.3, §7) so
// callers can branch with errors.Is against domain.ErrInfeasibleMIP,
// domain.ErrSolverTimeLimit, or domain.ErrBackend without a Backend
// implementation needing to import domain error text directly.
type SolverError struct {
	Kind SolverErrorKind
	Msg  string
}

func (e *SolverError) Error() string {
	if e.Msg == "" {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %s", e.sentinel(), e.Msg)
}

func (e *SolverError) Unwrap() error { return e.sentinel() }

func (e *SolverError) sentinel() error {
	switch e.Kind {
	case Infeasible:
		return domain.ErrInfeasibleMIP
	case TimeLimit:
		return domain.ErrSolverTimeLimit
	default:
		return domain.ErrBackend
	}
}

// Backend turns a Problem into a Solution. Implementations range from a
// real branch-and-bound library to the deterministic StubBackend this
// package ships for tests and for environments with no MIP solver wired in.
type Backend interface {
	Solve(ctx context.Context, p *Problem) (Solution, error)
}

// StubBackend is a deterministic, dependency-free Backend: it greedily
// satisfies the one-block-per-slot constraint the same way the heuristic
// package's greedy seed does, repairs any sequencing violations, and reports
// the result's heuristic score as the objective. It never performs any
// branch-and-bound search, so it is only useful where "a feasible,
// internally consistent schedule" is enough (tests, smoke runs, or a
// deployment with no external solver configured) — anything requiring an
// actual optimal or near-optimal MIP solution needs a real ExternalBackend.
type StubBackend struct {
	// View supplies the problemview a Problem was built from, since the
	// vendor-neutral Problem itself has no notion of schedules or roles.
	View *problemview.View
}

// Solve ignores p's variables/constraints and instead reconstructs a
// feasible schedule directly from b.View, scoring it with the exact same
// objective form the Problem was built to mirror (§8 property 1). Real
// backends are expected to read p.Variables/p.Constraints/p.Objective;
// StubBackend exists to exercise the rest of the pipeline without one.
func (b StubBackend) Solve(ctx context.Context, p *Problem) (Solution, error) {
	if b.View == nil {
		return Solution{}, &SolverError{Kind: Backend, Msg: "stub backend has no problem view"}
	}
	select {
	case <-ctx.Done():
		return Solution{}, &SolverError{Kind: TimeLimit, Msg: ctx.Err().Error()}
	default:
	}

	seed, err := heuristic.GreedySeed(b.View)
	if err != nil {
		return Solution{}, &SolverError{Kind: Infeasible, Msg: err.Error()}
	}
	heuristic.Repair(seed)
	score := heuristic.Score(seed)

	values := make(map[string]float64, len(p.Variables))
	for _, a := range seed.Assignments() {
		name := xName(a.MachineID, a.BlockID, a.Day, a.ShiftID)
		if _, ok := p.Variable(name); ok {
			values[name] = 1
		}
	}
	return Solution{Values: values, Objective: score.Total()}, nil
}

// ExternalBackend adapts a caller-supplied Solve function into a Backend —
// the seam a real LP/MIP library (or an out-of-process solver invoked over
// a file or RPC interface) plugs into. No such library is wired into this
// module; ExternalBackend exists so one can be added without touching the
// Problem builder or any caller of Backend.
type ExternalBackend struct {
	SolveFunc func(ctx context.Context, p *Problem) (Solution, error)
}

// Solve delegates to b.SolveFunc, reporting a nil func as a Backend error.
func (b ExternalBackend) Solve(ctx context.Context, p *Problem) (Solution, error) {
	if b.SolveFunc == nil {
		return Solution{}, &SolverError{Kind: Backend, Msg: "external backend has no SolveFunc configured"}
	}
	return b.SolveFunc(ctx, p)
}
