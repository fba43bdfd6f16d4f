package heuristic

import (
	"math/rand"
)

// Context carries whatever an operator needs beyond the schedule
// itself and the RNG — currently just the set of scenario-locked
// slots, but kept as its own type so new cross-cutting inputs (e.g. a
// tabu list) don't change every operator's signature.
type Context struct {
	Locked map[lockKey]bool
}

type lockKey struct {
	MachineID string
	Day       int
	ShiftID   string
}

// NewContext builds a Context whose Locked set marks every scenario
// lock slot as immovable, per the "locks are immovable" operator rule.
func NewContext(s *Schedule) *Context {
	ctx := &Context{Locked: map[lockKey]bool{}}
	for _, l := range s.view.Scenario.Locks {
		ctx.Locked[lockKey{MachineID: l.MachineID, Day: l.Day, ShiftID: l.ShiftID}] = true
	}
	return ctx
}

func (c *Context) isLocked(machineID string, day int, shiftID string) bool {
	return c.Locked[lockKey{MachineID: machineID, Day: day, ShiftID: shiftID}]
}

// Operator is one named neighbourhood move. Apply returns a neighbour
// schedule and true, or (nil, false) — "skipped" — when no feasible
// candidate exists (§4.4, §9 "Shared mutable registries → explicit
// registry value").
type Operator interface {
	Name() string
	Apply(s *Schedule, rng *rand.Rand, ctx *Context) (*Schedule, bool)
}

// WeightedOperator pairs an Operator with its selection weight.
type WeightedOperator struct {
	Operator Operator
	Weight   float64
}

// Registry is the set of operators a solver draws from, constructed
// fresh per solver call and passed by reference (never a package-level
// global) per §9.
type Registry struct {
	entries []WeightedOperator
	total   float64
}

// NewRegistry builds a Registry from the given weighted operators.
func NewRegistry(entries ...WeightedOperator) *Registry {
	r := &Registry{entries: entries}
	for _, e := range entries {
		r.total += e.Weight
	}
	return r
}

// DefaultRegistry returns the built-in operator set with the weights
// spec.md §4.4 names, in table order.
func DefaultRegistry() *Registry {
	return NewRegistry(
		WeightedOperator{Operator: swapOperator{}, Weight: 1.0},
		WeightedOperator{Operator: moveOperator{}, Weight: 1.0},
		WeightedOperator{Operator: blockInsertionOperator{}, Weight: 1.0},
		WeightedOperator{Operator: crossExchangeOperator{}, Weight: 0.5},
		WeightedOperator{Operator: mobilisationShakeOperator{}, Weight: 0.5},
	)
}

// NewWeightedRegistry builds the built-in operator set with caller-supplied
// weights (e.g. loaded from a config.SolverProfile), in the same table
// order as DefaultRegistry.
func NewWeightedRegistry(swap, move, blockInsertion, crossExchange, mobilisationShake float64) *Registry {
	return NewRegistry(
		WeightedOperator{Operator: swapOperator{}, Weight: swap},
		WeightedOperator{Operator: moveOperator{}, Weight: move},
		WeightedOperator{Operator: blockInsertionOperator{}, Weight: blockInsertion},
		WeightedOperator{Operator: crossExchangeOperator{}, Weight: crossExchange},
		WeightedOperator{Operator: mobilisationShakeOperator{}, Weight: mobilisationShake},
	)
}

// Pick selects an operator by normalised weight.
func (r *Registry) Pick(rng *rand.Rand) Operator {
	if len(r.entries) == 0 || r.total <= 0 {
		return nil
	}
	x := rng.Float64() * r.total
	for _, e := range r.entries {
		x -= e.Weight
		if x <= 0 {
			return e.Operator
		}
	}
	return r.entries[len(r.entries)-1].Operator
}

// Entries exposes the registry contents, e.g. for telemetry summaries.
func (r *Registry) Entries() []WeightedOperator { return r.entries }

// ─── swap ───────────────────────────────────────────────────────────────────

type swapOperator struct{}

func (swapOperator) Name() string { return "swap" }

func (swapOperator) Apply(s *Schedule, rng *rand.Rand, ctx *Context) (*Schedule, bool) {
	slots := occupiedSlots(s)
	if len(slots) < 2 {
		return nil, false
	}
	for attempt := 0; attempt < 20; attempt++ {
		a := slots[rng.Intn(len(slots))]
		b := slots[rng.Intn(len(slots))]
		if a == b {
			continue
		}
		if ctx.isLocked(a.MachineID, a.Day, a.ShiftID) || ctx.isLocked(b.MachineID, b.Day, b.ShiftID) {
			continue
		}
		blockA := s.Get(a.MachineID, a.Day, a.ShiftID)
		blockB := s.Get(b.MachineID, b.Day, b.ShiftID)
		if !s.view.Eligible(a.MachineID, blockB) || !s.view.Eligible(b.MachineID, blockA) {
			continue
		}
		if !withinWindow(s, blockB, a.Day) || !withinWindow(s, blockA, b.Day) {
			continue
		}
		next := s.Clone()
		next.Set(a.MachineID, a.Day, a.ShiftID, blockB)
		next.Set(b.MachineID, b.Day, b.ShiftID, blockA)
		return next, true
	}
	return nil, false
}

// ─── move ───────────────────────────────────────────────────────────────────

type moveOperator struct{}

func (moveOperator) Name() string { return "move" }

func (moveOperator) Apply(s *Schedule, rng *rand.Rand, ctx *Context) (*Schedule, bool) {
	slots := occupiedSlots(s)
	if len(slots) == 0 {
		return nil, false
	}
	for attempt := 0; attempt < 20; attempt++ {
		from := slots[rng.Intn(len(slots))]
		if ctx.isLocked(from.MachineID, from.Day, from.ShiftID) {
			continue
		}
		blockID := s.Get(from.MachineID, from.Day, from.ShiftID)
		day, shiftID, ok := randomWindowSlot(s, rng, blockID)
		if !ok {
			continue
		}
		if ctx.isLocked(from.MachineID, day, shiftID) {
			continue
		}
		if !s.view.Available(from.MachineID, day, shiftID) {
			continue
		}
		if s.Get(from.MachineID, day, shiftID) != "" {
			continue
		}
		next := s.Clone()
		next.Set(from.MachineID, from.Day, from.ShiftID, "")
		next.Set(from.MachineID, day, shiftID, blockID)
		return next, true
	}
	return nil, false
}

// ─── block_insertion ────────────────────────────────────────────────────────

type blockInsertionOperator struct{}

func (blockInsertionOperator) Name() string { return "block_insertion" }

func (blockInsertionOperator) Apply(s *Schedule, rng *rand.Rand, ctx *Context) (*Schedule, bool) {
	unstarted := unstartedBlocks(s)
	if len(unstarted) == 0 {
		return nil, false
	}
	for attempt := 0; attempt < 20; attempt++ {
		blockID := unstarted[rng.Intn(len(unstarted))]
		day, shiftID, ok := randomWindowSlot(s, rng, blockID)
		if !ok {
			continue
		}
		machines := s.view.EligibleMachines(blockID)
		if len(machines) == 0 {
			continue
		}
		machineID := machines[rng.Intn(len(machines))]
		if ctx.isLocked(machineID, day, shiftID) {
			continue
		}
		if !s.view.Available(machineID, day, shiftID) {
			continue
		}
		next := s.Clone()
		next.Set(machineID, day, shiftID, blockID)
		return next, true
	}
	return nil, false
}

// ─── cross_exchange ─────────────────────────────────────────────────────────

type crossExchangeOperator struct{}

func (crossExchangeOperator) Name() string { return "cross_exchange" }

func (crossExchangeOperator) Apply(s *Schedule, rng *rand.Rand, ctx *Context) (*Schedule, bool) {
	slots := occupiedSlots(s)
	if len(slots) < 2 {
		return nil, false
	}
	for attempt := 0; attempt < 20; attempt++ {
		a := slots[rng.Intn(len(slots))]
		b := slots[rng.Intn(len(slots))]
		if a.MachineID == b.MachineID {
			continue
		}
		if ctx.isLocked(a.MachineID, a.Day, a.ShiftID) || ctx.isLocked(b.MachineID, b.Day, b.ShiftID) {
			continue
		}
		blockA := s.Get(a.MachineID, a.Day, a.ShiftID)
		blockB := s.Get(b.MachineID, b.Day, b.ShiftID)
		if !s.view.Eligible(a.MachineID, blockB) || !s.view.Eligible(b.MachineID, blockA) {
			continue
		}
		if !s.view.Available(a.MachineID, b.Day, b.ShiftID) || !s.view.Available(b.MachineID, a.Day, a.ShiftID) {
			continue
		}
		if !withinWindow(s, blockB, a.Day) || !withinWindow(s, blockA, b.Day) {
			continue
		}
		next := s.Clone()
		next.Set(a.MachineID, a.Day, a.ShiftID, "")
		next.Set(b.MachineID, b.Day, b.ShiftID, "")
		next.Set(a.MachineID, b.Day, b.ShiftID, blockA)
		next.Set(b.MachineID, a.Day, a.ShiftID, blockB)
		return next, true
	}
	return nil, false
}

// ─── mobilisation_shake ─────────────────────────────────────────────────────

type mobilisationShakeOperator struct{}

func (mobilisationShakeOperator) Name() string { return "mobilisation_shake" }

// Apply biases toward removing a transition: it picks a machine-day
// with two or more blocks and, unless that slot is locked, moves the
// first slot of that day's last block to a random idle, available
// (day, shift) inside that block's window.
func (mobilisationShakeOperator) Apply(s *Schedule, rng *rand.Rand, ctx *Context) (*Schedule, bool) {
	candidates := machineDaysWithTransition(s)
	if len(candidates) == 0 {
		return nil, false
	}
	for attempt := 0; attempt < 20; attempt++ {
		cd := candidates[rng.Intn(len(candidates))]
		blocks := s.MachineBlocksOnDay(cd.machineID, cd.day)
		if len(blocks) < 2 {
			continue
		}
		second := blocks[len(blocks)-1]
		var firstShift, secondShift string
		for _, sid := range s.ShiftIDs() {
			b := s.Get(cd.machineID, cd.day, sid)
			if b == second && secondShift == "" {
				secondShift = sid
			}
			if b == blocks[0] && firstShift == "" {
				firstShift = sid
			}
		}
		if secondShift == "" || ctx.isLocked(cd.machineID, cd.day, secondShift) {
			continue
		}
		day, shiftID, ok := randomWindowSlot(s, rng, second)
		if !ok || !s.view.Available(cd.machineID, day, shiftID) || s.Get(cd.machineID, day, shiftID) != "" {
			continue
		}
		next := s.Clone()
		next.Set(cd.machineID, cd.day, secondShift, "")
		next.Set(cd.machineID, day, shiftID, second)
		return next, true
	}
	return nil, false
}

// ─── shared operator helpers ────────────────────────────────────────────────

type slot struct {
	MachineID string
	Day       int
	ShiftID   string
}

func occupiedSlots(s *Schedule) []slot {
	var out []slot
	for _, mid := range s.machineIDs {
		for d := 1; d <= s.days; d++ {
			for _, sid := range s.ShiftIDs() {
				if s.Get(mid, d, sid) != "" {
					out = append(out, slot{MachineID: mid, Day: d, ShiftID: sid})
				}
			}
		}
	}
	return out
}

func unstartedBlocks(s *Schedule) []string {
	var out []string
	for _, b := range s.view.Scenario.Blocks {
		if s.Produced(b.ID) <= 0 {
			out = append(out, b.ID)
		}
	}
	return out
}

func withinWindow(s *Schedule, blockID string, day int) bool {
	if blockID == "" {
		return true
	}
	b, ok := s.view.Scenario.Block(blockID)
	if !ok {
		return false
	}
	return day >= b.EarliestStart && day <= b.LatestFinish
}

func randomWindowSlot(s *Schedule, rng *rand.Rand, blockID string) (int, string, bool) {
	b, ok := s.view.Scenario.Block(blockID)
	if !ok || b.LatestFinish < b.EarliestStart {
		return 0, "", false
	}
	span := b.LatestFinish - b.EarliestStart + 1
	day := b.EarliestStart + rng.Intn(span)
	shifts := s.ShiftIDs()
	if len(shifts) == 0 {
		return 0, "", false
	}
	return day, shifts[rng.Intn(len(shifts))], true
}

type machineDay struct {
	machineID string
	day       int
}

func machineDaysWithTransition(s *Schedule) []machineDay {
	var out []machineDay
	for _, mid := range s.machineIDs {
		for d := 1; d <= s.days; d++ {
			if len(s.MachineBlocksOnDay(mid, d)) >= 2 {
				out = append(out, machineDay{machineID: mid, day: d})
			}
		}
	}
	return out
}
