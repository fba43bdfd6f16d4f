// Package controller implements the rolling-horizon planning loop (C7):
// repeatedly slice a scenario to a short sub-window, solve it with the
// caller's chosen solver, commit the leading days of the result as new
// locks, and advance until the master window is exhausted.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fhops/fhops/internal/domain"
	"github.com/fhops/fhops/internal/heuristic"
	"github.com/fhops/fhops/internal/problemview"
)

// ErrInvalidWindow is returned when Params violates lock_days <= sub_days
// <= master_days <= horizon.
var ErrInvalidWindow = errors.New("controller: invalid rolling-horizon window parameters")

// Params configures the rolling-horizon loop (§4.7).
type Params struct {
	MasterDays int // plan only the first MasterDays of the scenario's horizon
	SubDays    int // width of each sub-problem window
	LockDays   int // leading days of each sub-solution committed as locks

	// IterationBudget bounds each sub-problem solve's wall-clock time; it
	// is surfaced to SolveFunc as a deadline, not enforced by the
	// controller itself. Zero means "no deadline".
	IterationBudget time.Duration
}

// Validate checks lock_days <= sub_days <= master_days <= horizon.
func (p Params) Validate(horizon int) error {
	if p.LockDays <= 0 || p.SubDays <= 0 || p.MasterDays <= 0 {
		return fmt.Errorf("%w: master_days, sub_days and lock_days must be positive", ErrInvalidWindow)
	}
	if p.LockDays > p.SubDays {
		return fmt.Errorf("%w: lock_days (%d) > sub_days (%d)", ErrInvalidWindow, p.LockDays, p.SubDays)
	}
	if p.SubDays > p.MasterDays {
		return fmt.Errorf("%w: sub_days (%d) > master_days (%d)", ErrInvalidWindow, p.SubDays, p.MasterDays)
	}
	if p.MasterDays > horizon {
		return fmt.Errorf("%w: master_days (%d) > scenario horizon (%d)", ErrInvalidWindow, p.MasterDays, horizon)
	}
	return nil
}

// SolveFunc solves one sub-window's problemview, starting from seed
// (which already carries every accumulated lock via Repair/insertLocks),
// honouring deadline if non-zero. It is the controller's only dependency
// on a concrete solver, so the same loop drives the MIP backend or any
// heuristic.Run* family member.
type SolveFunc func(v *problemview.View, seed *heuristic.Schedule, deadline time.Time) heuristic.Result

// IterationRecord is the per-window telemetry §4.7 asks the loop to emit.
type IterationRecord struct {
	WindowStart   int
	WindowEnd     int
	LockedThrough int
	Runtime       time.Duration
	Objective     float64
	Warning       string
}

// Result is the rolling-horizon loop's output: the aggregated assignment
// table (every lock ever committed, which by construction is every cell
// the loop ever fixed), per-iteration telemetry, and the final lock set.
type Result struct {
	Assignments []heuristic.Assignment
	Iterations  []IterationRecord
	FinalLocks  []domain.ScheduleLock
}

// Run executes the rolling-horizon loop over scn using solve for each
// sub-window. scn is never mutated; each iteration builds a scoped copy.
func Run(ctx context.Context, scn *domain.Scenario, solve SolveFunc, p Params) (*Result, error) {
	if err := p.Validate(scn.Horizon); err != nil {
		return nil, err
	}

	locks := append([]domain.ScheduleLock{}, scn.Locks...)
	res := &Result{}

	for start := 1; start <= p.MasterDays; start += p.LockDays {
		windowEnd := start + p.SubDays - 1
		if windowEnd > p.MasterDays {
			windowEnd = p.MasterDays
		}

		iter := IterationRecord{WindowStart: start, WindowEnd: windowEnd}
		startedAt := time.Now()

		select {
		case <-ctx.Done():
			iter.Warning = "cancelled before window solved: " + ctx.Err().Error()
			iter.Runtime = time.Since(startedAt)
			res.Iterations = append(res.Iterations, iter)
			res.FinalLocks = locks
			return res, nil
		default:
		}

		sliced := sliceScenario(scn, start, windowEnd, locks)
		v, err := problemview.Build(sliced)
		if err != nil {
			return nil, fmt.Errorf("controller: build window [%d,%d]: %w", start, windowEnd, err)
		}

		seed, err := heuristic.GreedySeed(v)
		if err != nil {
			return nil, fmt.Errorf("%w: window [%d,%d]: %v", domain.ErrInfeasibleMIP, start, windowEnd, err)
		}
		heuristic.Repair(seed)

		deadline := time.Time{}
		if p.IterationBudget > 0 {
			deadline = time.Now().Add(p.IterationBudget)
		}
		result := solve(v, seed, deadline)
		if result.TimeLimitReached {
			iter.Warning = "time limit reached; best-known schedule committed"
		}

		lockThrough := start + p.LockDays - 1
		if lockThrough > windowEnd {
			lockThrough = windowEnd
		}
		for _, a := range result.Best.Assignments() {
			if a.Day < start || a.Day > lockThrough {
				continue
			}
			locks = append(locks, domain.ScheduleLock{
				MachineID: a.MachineID, BlockID: a.BlockID, Day: a.Day, ShiftID: a.ShiftID,
			})
		}

		iter.LockedThrough = lockThrough
		iter.Objective = result.Score.Total()
		iter.Runtime = time.Since(startedAt)
		res.Iterations = append(res.Iterations, iter)

		if lockThrough >= p.MasterDays {
			break
		}
	}

	res.FinalLocks = locks
	res.Assignments = locksToAssignments(locks)
	return res, nil
}

// sliceScenario returns a scoped copy of scn whose blocks are clamped to
// [start, end] and whose horizon is end, with locks carried over as hard
// constraints for the greedy seed (§4.7 step 1-2). Machines, landings,
// rates, timeline and mobilisation data are shared by reference since
// they are read-only and window-independent.
func sliceScenario(scn *domain.Scenario, start, end int, locks []domain.ScheduleLock) *domain.Scenario {
	sliced := *scn
	sliced.Horizon = end
	sliced.Locks = locks

	blocks := make([]domain.Block, len(scn.Blocks))
	for i, b := range scn.Blocks {
		if b.EarliestStart < start {
			b.EarliestStart = start
		}
		if b.LatestFinish > end {
			b.LatestFinish = end
		}
		blocks[i] = b
	}
	sliced.Blocks = blocks
	sliced.Index()
	return &sliced
}

// locksToAssignments turns the final lock set into the aggregated
// assignment table, stable-sorted to match heuristic.Schedule.Assignments'
// ordering guarantee (§5).
func locksToAssignments(locks []domain.ScheduleLock) []heuristic.Assignment {
	out := make([]heuristic.Assignment, 0, len(locks))
	for _, lk := range locks {
		out = append(out, heuristic.Assignment{MachineID: lk.MachineID, BlockID: lk.BlockID, Day: lk.Day, ShiftID: lk.ShiftID})
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
