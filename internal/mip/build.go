package mip

import (
	"sort"
	"strconv"

	"github.com/fhops/fhops/internal/domain"
	"github.com/fhops/fhops/internal/problemview"
)

// Build emits the vendor-neutral description of the scheduling problem
// for v (§4.3). Locks are encoded as fixed-to-1 variable bounds, not as
// separate constraints, since a lock collision is a validator error
// (§4.1 invariant) rather than something the solver needs to discover.
func Build(v *problemview.View) *Problem {
	scn := v.Scenario
	weights := scn.Weights

	p := &Problem{}
	xVars := map[xKey]bool{}

	lockedTo := map[xKey]bool{}
	for _, lk := range scn.Locks {
		shiftIDs := v.ShiftIDs
		if lk.ShiftID != "" {
			shiftIDs = []string{lk.ShiftID}
		}
		for _, sid := range shiftIDs {
			lockedTo[xKey{lk.MachineID, lk.BlockID, lk.Day, sid}] = true
		}
	}

	// ── x variables: constraints 4, 5, 6, 9 are enforced by omission /
	// fixed bounds rather than explicit constraints.
	for _, m := range scn.Machines {
		for _, b := range scn.Blocks {
			if !v.Eligible(m.ID, b.ID) {
				continue
			}
			for day := b.EarliestStart; day <= b.LatestFinish; day++ {
				for _, sid := range v.ShiftIDs {
					if !v.Available(m.ID, day, sid) {
						continue
					}
					key := xKey{m.ID, b.ID, day, sid}
					xVars[key] = true
					lb := 0.0
					if lockedTo[key] {
						lb = 1.0
					}
					p.Variables = append(p.Variables, Variable{Name: xName(m.ID, b.ID, day, sid), Kind: Binary, Lower: lb, Upper: 1})
				}
			}
		}
	}

	// Constraint 1: one block per (machine, day, shift).
	bySlot := map[slotKey][]xKey{}
	for key := range xVars {
		sk := slotKey{key.Machine, key.Day, key.Shift}
		bySlot[sk] = append(bySlot[sk], key)
	}
	for _, sk := range sortedSlotKeys(bySlot) {
		terms := make([]Term, 0, len(bySlot[sk]))
		for _, key := range bySlot[sk] {
			terms = append(terms, Term{Var: xName(key.Machine, key.Block, key.Day, key.Shift), Coeff: 1})
		}
		p.Constraints = append(p.Constraints, Constraint{
			Name: "one_block_per_slot|" + sk.Machine + "|" + strconv.Itoa(sk.Day) + "|" + sk.Shift, Terms: terms, Sense: LE, RHS: 1,
		})
	}

	// completed[b] + constraint 2 (work completion).
	byBlock := map[string][]xKey{}
	for key := range xVars {
		byBlock[key.Block] = append(byBlock[key.Block], key)
	}
	for _, b := range scn.Blocks {
		keys := byBlock[b.ID]
		if len(keys) == 0 {
			continue
		}
		p.Variables = append(p.Variables, Variable{Name: completedName(b.ID), Kind: Binary, Lower: 0, Upper: 1})
		p.Variables = append(p.Variables, Variable{Name: "surplus|" + b.ID, Kind: Continuous, Lower: 0, Upper: 1e12})
		p.Variables = append(p.Variables, Variable{Name: leftoverName(b.ID), Kind: Continuous, Lower: 0, Upper: b.RequiredWork})
		p.Variables = append(p.Variables, Variable{Name: creditedName(b.ID), Kind: Continuous, Lower: 0, Upper: b.RequiredWork})

		prodTerms := make([]Term, 0, len(keys))
		for _, key := range keys {
			prodTerms = append(prodTerms, Term{Var: xName(key.Machine, key.Block, key.Day, key.Shift), Coeff: v.Rate(key.Machine, key.Block)})
		}

		lower := append(append([]Term{}, prodTerms...), Term{Var: completedName(b.ID), Coeff: -b.RequiredWork})
		p.Constraints = append(p.Constraints, Constraint{Name: "completion_lower|" + b.ID, Terms: lower, Sense: GE, RHS: 0})

		upper := append(append([]Term{}, prodTerms...), Term{Var: "surplus|" + b.ID, Coeff: -1})
		p.Constraints = append(p.Constraints, Constraint{Name: "completion_upper|" + b.ID, Terms: upper, Sense: LE, RHS: b.RequiredWork})

		// leftover(b) >= required(b) - produced(b), the standard
		// linearisation of the objective's max(0, ...) leftover term.
		leftoverLower := append(append([]Term{}, prodTerms...), Term{Var: leftoverName(b.ID), Coeff: 1})
		p.Constraints = append(p.Constraints, Constraint{Name: "leftover_floor|" + b.ID, Terms: leftoverLower, Sense: GE, RHS: b.RequiredWork})

		// credited(b) <= produced(b): pairs with the Upper bound above
		// (credited(b) <= required(b)) to realise "production credited
		// in the objective is capped at required(b)" (§4.3 point 2).
		creditedCap := append(append([]Term{}, negate(prodTerms)...), Term{Var: creditedName(b.ID), Coeff: 1})
		p.Constraints = append(p.Constraints, Constraint{Name: "credited_cap|" + b.ID, Terms: creditedCap, Sense: LE, RHS: 0})
	}

	// Constraint 3: landing capacity, via a machine/landing/day
	// activation binary linked to the x variables present that day.
	landingOf := map[string]string{}
	for _, b := range scn.Blocks {
		landingOf[b.ID] = b.LandingID
	}
	useVars := map[lkey][]xKey{}
	for key := range xVars {
		l := landingOf[key.Block]
		if l == "" {
			continue
		}
		useVars[lkey{key.Machine, l, key.Day}] = append(useVars[lkey{key.Machine, l, key.Day}], key)
	}
	useKeys := make([]lkey, 0, len(useVars))
	for k := range useVars {
		useKeys = append(useKeys, k)
	}
	sort.Slice(useKeys, func(i, j int) bool {
		if useKeys[i].Landing != useKeys[j].Landing {
			return useKeys[i].Landing < useKeys[j].Landing
		}
		if useKeys[i].Day != useKeys[j].Day {
			return useKeys[i].Day < useKeys[j].Day
		}
		return useKeys[i].Machine < useKeys[j].Machine
	})
	useVarName := func(k lkey) string { return "landing_use|" + k.Machine + "|" + k.Landing + "|" + strconv.Itoa(k.Day) }
	for _, k := range useKeys {
		p.Variables = append(p.Variables, Variable{Name: useVarName(k), Kind: Binary, Lower: 0, Upper: 1})
		for _, xk := range useVars[k] {
			// x <= use: the machine can only be assigned at this
			// landing/day if its activation binary is set.
			p.Constraints = append(p.Constraints, Constraint{
				Name:  "landing_use_link|" + useVarName(k) + "|" + xName(xk.Machine, xk.Block, xk.Day, xk.Shift),
				Terms: []Term{{Var: xName(xk.Machine, xk.Block, xk.Day, xk.Shift), Coeff: 1}, {Var: useVarName(k), Coeff: -1}},
				Sense: LE, RHS: 0,
			})
		}
	}
	byLandingDay := map[landingDayKey][]lkey{}
	for _, k := range useKeys {
		ld := landingDayKey{Landing: k.Landing, Day: k.Day}
		byLandingDay[ld] = append(byLandingDay[ld], k)
	}
	for _, ld := range sortedLandingDayKeys(byLandingDay) {
		l, ok := scn.Landing(ld.Landing)
		capacity := 2
		if ok {
			capacity = l.Capacity
		}
		terms := make([]Term, 0, len(byLandingDay[ld]))
		for _, k := range byLandingDay[ld] {
			terms = append(terms, Term{Var: useVarName(k), Coeff: 1})
		}
		if weights.LandingSlack > 0 {
			slackVar := slackName(ld.Landing, ld.Day)
			p.Variables = append(p.Variables, Variable{Name: slackVar, Kind: Continuous, Lower: 0, Upper: 1e9})
			terms = append(terms, Term{Var: slackVar, Coeff: -1})
		}
		p.Constraints = append(p.Constraints, Constraint{
			Name: "landing_capacity|" + ld.Landing + "|" + strconv.Itoa(ld.Day), Terms: terms, Sense: LE, RHS: float64(capacity),
		})
	}

	// Constraint 7 (simplified transition linearisation): y[m,b1,b2,d]
	// is bounded by both endpoints' daily assignment indicators and by
	// at-most-one outgoing transition per machine-day-block. The spec
	// treats the full by-shift ordering as an implementation detail of
	// the backend; this description only needs to make y feasible and
	// tie it to the objective's mobilisation/transition terms.
	dayAssigned := map[machDayBlock][]xKey{}
	for key := range xVars {
		mdb := machDayBlock{key.Machine, key.Day, key.Block}
		dayAssigned[mdb] = append(dayAssigned[mdb], key)
	}
	byMachineDay := map[machDay][]string{}
	for mdb := range dayAssigned {
		byMachineDay[machDay{mdb.Machine, mdb.Day}] = append(byMachineDay[machDay{mdb.Machine, mdb.Day}], mdb.Block)
	}
	var yObjTerms []Term
	for _, md := range sortedMachineDays(byMachineDay) {
		blocks := byMachineDay[md]
		sort.Strings(blocks)
		if len(blocks) < 2 {
			continue
		}
		mp := machineMobilisationParams(scn, md.Machine)
		for _, b1 := range blocks {
			outTerms := []Term{}
			for _, b2 := range blocks {
				if b1 == b2 {
					continue
				}
				yv := yName(md.Machine, b1, b2, md.Day)
				p.Variables = append(p.Variables, Variable{Name: yv, Kind: Binary, Lower: 0, Upper: 1})
				outTerms = append(outTerms, Term{Var: yv, Coeff: 1})

				tier, dist := v.DistanceTier(md.Machine, b1, b2)
				yObjTerms = append(yObjTerms, Term{Var: yv, Coeff: -(weights.Transitions + weights.Mobilisation*mobilisationCostOf(tier, dist, mp))})

				b1Terms := assignedIndicatorTerms(dayAssigned[machDayBlock{md.Machine, md.Day, b1}])
				p.Constraints = append(p.Constraints, Constraint{
					Name:  "transition_from|" + yv,
					Terms: append([]Term{{Var: yv, Coeff: 1}}, negate(b1Terms)...),
					Sense: LE, RHS: 0,
				})
				b2Terms := assignedIndicatorTerms(dayAssigned[machDayBlock{md.Machine, md.Day, b2}])
				p.Constraints = append(p.Constraints, Constraint{
					Name:  "transition_to|" + yv,
					Terms: append([]Term{{Var: yv, Coeff: 1}}, negate(b2Terms)...),
					Sense: LE, RHS: 0,
				})
			}
			b1Terms := assignedIndicatorTerms(dayAssigned[machDayBlock{md.Machine, md.Day, b1}])
			p.Constraints = append(p.Constraints, Constraint{
				Name:  "transition_out_cap|" + md.Machine + "|" + b1 + "|" + strconv.Itoa(md.Day),
				Terms: append(outTerms, negate(b1Terms)...),
				Sense: LE, RHS: 0,
			})
		}
	}

	// Constraint 8 (sequencing / role precedence): a dependent-layer
	// assignment is only allowed once the prerequisite layer has
	// produced its threshold share on earlier days, expressed as one
	// linear inequality per x var (threshold*x - prereq_production <= 0),
	// matching the greedy seed's repair threshold (RequiredWork/|layers|).
	for _, b := range scn.Blocks {
		layers := v.RoleLayers(b.ID)
		if len(layers) < 2 {
			continue
		}
		threshold := b.RequiredWork / float64(len(layers))
		roleLayer := map[string]int{}
		for idx, roles := range layers {
			for _, r := range roles {
				roleLayer[r] = idx
			}
		}
		for key := range xVars {
			if key.Block != b.ID {
				continue
			}
			m, ok := scn.Machine(key.Machine)
			if !ok {
				continue
			}
			myLayer, known := roleLayer[m.Role]
			if !known || myLayer == 0 {
				continue
			}
			var prereq []Term
			for pk := range xVars {
				if pk.Block != b.ID || pk.Day >= key.Day {
					continue
				}
				pm, ok := scn.Machine(pk.Machine)
				if !ok {
					continue
				}
				pl, known := roleLayer[pm.Role]
				if !known || pl != myLayer-1 {
					continue
				}
				prereq = append(prereq, Term{Var: xName(pk.Machine, pk.Block, pk.Day, pk.Shift), Coeff: v.Rate(pk.Machine, pk.Block)})
			}
			terms := append([]Term{{Var: xName(key.Machine, key.Block, key.Day, key.Shift), Coeff: threshold}}, negate(prereq)...)
			p.Constraints = append(p.Constraints, Constraint{
				Name: "sequencing|" + xName(key.Machine, key.Block, key.Day, key.Shift), Terms: terms, Sense: LE, RHS: 0,
			})
		}
	}

	// Objective: same algebraic form as heuristic.ScoreBreakdown.Total()
	// so any schedule feasible for both coincides exactly (§8 property 1).
	leftover := weights.EffectiveLeftoverPenalty()
	var obj []Term
	for _, b := range scn.Blocks {
		if len(byBlock[b.ID]) == 0 {
			continue
		}
		obj = append(obj, Term{Var: creditedName(b.ID), Coeff: weights.Production})
		obj = append(obj, Term{Var: completedName(b.ID), Coeff: weights.Production * b.RequiredWork})
		obj = append(obj, Term{Var: leftoverName(b.ID), Coeff: -leftover})
	}
	obj = append(obj, yObjTerms...)
	for _, lv := range p.Variables {
		if len(lv.Name) > 6 && lv.Name[:6] == "slack|" {
			obj = append(obj, Term{Var: lv.Name, Coeff: -weights.LandingSlack})
		}
	}
	p.Objective = Objective{Sense: Maximize, Terms: obj}

	p.Index()
	return p
}

type xKey struct {
	Machine, Block string
	Day            int
	Shift          string
}

type slotKey struct {
	Machine string
	Day     int
	Shift   string
}

type machDayBlock struct {
	Machine string
	Day     int
	Block   string
}

type machDay struct {
	Machine string
	Day     int
}

// lkey identifies one machine/landing/day landing-capacity slot.
type lkey struct {
	Machine, Landing string
	Day              int
}

// landingDayKey identifies one landing/day landing-capacity constraint.
type landingDayKey struct {
	Landing string
	Day     int
}

func assignedIndicatorTerms(keys []xKey) []Term {
	terms := make([]Term, 0, len(keys))
	for _, k := range keys {
		terms = append(terms, Term{Var: xName(k.Machine, k.Block, k.Day, k.Shift), Coeff: 1})
	}
	return terms
}

func negate(terms []Term) []Term {
	out := make([]Term, len(terms))
	for i, t := range terms {
		out[i] = Term{Var: t.Var, Coeff: -t.Coeff}
	}
	return out
}

func sortedSlotKeys(m map[slotKey][]xKey) []slotKey {
	out := make([]slotKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Machine != out[j].Machine {
			return out[i].Machine < out[j].Machine
		}
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Shift < out[j].Shift
	})
	return out
}

func sortedMachineDays(m map[machDay][]string) []machDay {
	out := make([]machDay, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Machine != out[j].Machine {
			return out[i].Machine < out[j].Machine
		}
		return out[i].Day < out[j].Day
	})
	return out
}

func sortedLandingDayKeys(m map[landingDayKey][]lkey) []landingDayKey {
	out := make([]landingDayKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Landing != out[j].Landing {
			return out[i].Landing < out[j].Landing
		}
		return out[i].Day < out[j].Day
	})
	return out
}

// machineMobilisationParams mirrors the heuristic's scoring lookup so the
// MIP objective's mobilisation coefficients coincide exactly (§8 property 1).
func machineMobilisationParams(scn *domain.Scenario, machineID string) domain.MobilisationParams {
	if p, ok := scn.Mobilisation.PerMachine[machineID]; ok {
		return p
	}
	return scn.Mobilisation.DefaultParams
}

// mobilisationCostOf mirrors the heuristic's per-tier mobilisation cost
// switch in mobilisationAndTransitions.
func mobilisationCostOf(tier domain.DistanceTier, dist float64, mp domain.MobilisationParams) float64 {
	switch tier {
	case domain.TierSameBlock:
		return 0
	case domain.TierWalkable:
		return mp.WalkCost
	case domain.TierMove, domain.TierUnknown:
		return mp.SetupCost + mp.MoveCostPerKm*dist/1000.0
	default:
		return 0
	}
}
