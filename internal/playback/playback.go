// Package playback implements the deterministic and stochastic replay
// engine (C5): it consumes a scenario plus an assignment table and
// produces shift/day summaries and the canonical KPI bundle used by
// telemetry and tests.
package playback

import (
	"sort"

	"github.com/fhops/fhops/internal/domain"
	"github.com/fhops/fhops/internal/problemview"
)

// AssignmentRow is one row of the canonical assignment CSV (§6):
// machine_id, block_id, day, shift_id, assigned, production. Production
// is a pointer so a blank cell (computed by playback) is distinguished
// from an explicit zero override.
type AssignmentRow struct {
	MachineID  string   `json:"machine_id"`
	BlockID    string   `json:"block_id"`
	Day        int      `json:"day"`
	ShiftID    string   `json:"shift_id"`
	Assigned   bool     `json:"assigned"`
	Production *float64 `json:"production,omitempty"`
}

// ShiftSummary is one row per replayed assignment row (§4.5). Available
// (machine, day, shift) slots with no assignment row get no summary row,
// so their idle hours are not reported here.
type ShiftSummary struct {
	MachineID           string  `json:"machine_id"`
	Day                 int     `json:"day"`
	ShiftID             string  `json:"shift_id"`
	BlockID             string  `json:"block_id"`
	Production          float64 `json:"production"`
	WorkedHours         float64 `json:"worked_hours"`
	IdleHours           float64 `json:"idle_hours"`
	MobilisationCost    float64 `json:"mobilisation_cost"`
	SequencingConflicts int     `json:"sequencing_conflicts"`
	BlockCompleted      bool    `json:"block_completed"`
	SampleID            int     `json:"sample_id"`
}

// DaySummary is one row per (machine, day).
type DaySummary struct {
	MachineID           string  `json:"machine_id"`
	Day                 int     `json:"day"`
	Production          float64 `json:"production"`
	WorkedHours         float64 `json:"worked_hours"`
	IdleHours           float64 `json:"idle_hours"`
	MobilisationCost    float64 `json:"mobilisation_cost"`
	SequencingConflicts int     `json:"sequencing_conflicts"`
	CompletedBlocks     int     `json:"completed_blocks"`
	Makespan            int     `json:"makespan"`
}

// KPIBundle is the structured aggregate schedule-metric mapping (§4.5).
type KPIBundle struct {
	TotalProduction            float64            `json:"total_production"`
	CompletedBlocks            int                `json:"completed_blocks"`
	MobilisationCost           float64            `json:"mobilisation_cost"`
	MobilisationCostByMachine  map[string]float64 `json:"mobilisation_cost_by_machine"`
	UtilisationRatio           float64            `json:"utilisation_ratio"`
	Makespan                   int                `json:"makespan"`
	SequencingViolationCount   int                `json:"sequencing_violation_count"`
	SequencingViolationByBlock map[string]int     `json:"sequencing_violation_by_block"`
	LandingSurplus             map[string]float64 `json:"landing_surplus"`
	RepairUsageAlert           bool               `json:"repair_usage_alert"`

	Shifts []ShiftSummary `json:"shifts"`
	Days   []DaySummary   `json:"days"`

	// Not populated by Deterministic or Stochastic; a caller may attach
	// per-sample bundles and an EnsembleOf result here.
	PerSample []KPIBundle `json:"per_sample,omitempty"`
	Ensemble  *EnsembleKPI `json:"ensemble,omitempty"`
}

// EnsembleKPI carries the mean metrics across stochastic samples.
type EnsembleKPI struct {
	MeanTotalProduction  float64 `json:"mean_total_production"`
	MeanMobilisationCost float64 `json:"mean_mobilisation_cost"`
	MeanCompletedBlocks  float64 `json:"mean_completed_blocks"`
}

// Deterministic replays rows against scenario/view with no
// perturbation and returns the shift/day tables plus KPI bundle
// (§4.5). strict controls whether a row referencing an unknown
// machine/block or violating availability/window raises
// domain.ErrPlaybackViolation (strict=true) or is merely reported in
// the KPIs (strict=false, §7).
func Deterministic(v *problemview.View, rows []AssignmentRow, strict bool) (KPIBundle, error) {
	return replay(v, rows, replayOptions{sampleID: 0, strict: strict})
}

type replayOptions struct {
	sampleID int
	strict   bool
	perturb  *perturbation
}

// perturbation captures one stochastic sample's realised disruptions,
// resolved up front so the core replay loop stays identical between
// deterministic and stochastic playback (only the multiplier/drop
// decisions differ).
type perturbation struct {
	droppedShift   map[shiftKey]bool
	weatherFactor  map[int]float64 // day -> production multiplier
	landingFactor  map[landingDayKey]float64
}

type shiftKey struct {
	MachineID string
	Day       int
	ShiftID   string
}

type landingDayKey struct {
	LandingID string
	Day       int
}

func replay(v *problemview.View, rows []AssignmentRow, opt replayOptions) (KPIBundle, error) {
	scn := v.Scenario
	remaining := make(map[string]float64, len(scn.Blocks))
	for _, b := range scn.Blocks {
		remaining[b.ID] = b.RequiredWork
	}

	sorted := append([]AssignmentRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.MachineID != b.MachineID {
			return a.MachineID < b.MachineID
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.ShiftID < b.ShiftID
	})

	var shiftSummaries []ShiftSummary
	mobByMachine := map[string]float64{}
	lastBlockByMachine := map[string]string{}
	sequencingByBlock := map[string]int{}
	productionByBlock := map[string]float64{}
	layerProducedByBlock := map[string]map[int]float64{}
	machinesByLandingDay := map[landingDayKey]map[string]bool{}
	repairAlert := false

	for _, row := range sorted {
		if !row.Assigned {
			continue
		}
		m, mOK := scn.Machine(row.MachineID)
		b, bOK := scn.Block(row.BlockID)
		if !mOK || !bOK {
			if opt.strict {
				return KPIBundle{}, domain.ErrPlaybackViolation
			}
			continue
		}
		if m.RepairUsageBucket != "" && m.RepairUsageBucket != "default" {
			repairAlert = true
		}

		available := v.Available(row.MachineID, row.Day, row.ShiftID)
		inWindow := row.Day >= b.EarliestStart && row.Day <= b.LatestFinish
		if opt.perturb != nil && opt.perturb.droppedShift[shiftKey{row.MachineID, row.Day, row.ShiftID}] {
			available = false
		}
		if !available || !inWindow {
			if opt.strict {
				return KPIBundle{}, domain.ErrPlaybackViolation
			}
			continue
		}

		production := v.Rate(row.MachineID, row.BlockID)
		if row.Production != nil {
			production = *row.Production
		} else if left := remaining[row.BlockID]; production > left {
			production = left
		}
		if opt.perturb != nil {
			if f, ok := opt.perturb.weatherFactor[row.Day]; ok {
				production *= f
			}
			if f, ok := opt.perturb.landingFactor[landingDayKey{LandingID: b.LandingID, Day: row.Day}]; ok {
				production *= f
			}
		}
		if production < 0 {
			production = 0
		}

		before := remaining[row.BlockID]
		remaining[row.BlockID] -= production
		productionByBlock[row.BlockID] += production
		blockCompleted := before > 1e-9 && remaining[row.BlockID] <= 1e-9

		shiftHours := shiftHoursOf(v, row.ShiftID)
		worked := shiftHours
		if production <= 0 {
			worked = 0
		}

		var mobCost float64
		if prev, ok := lastBlockByMachine[row.MachineID]; ok && prev != row.BlockID {
			tier, dist := v.DistanceTier(row.MachineID, prev, row.BlockID)
			mp := machineMobilisationParams(scn, row.MachineID)
			mobCost = mobilisationCost(tier, dist, mp)
		}
		lastBlockByMachine[row.MachineID] = row.BlockID
		mobByMachine[row.MachineID] += mobCost

		key := landingDayKey{LandingID: b.LandingID, Day: row.Day}
		if machinesByLandingDay[key] == nil {
			machinesByLandingDay[key] = map[string]bool{}
		}
		machinesByLandingDay[key][row.MachineID] = true

		conflicts := sequencingConflictsAt(v, b, row, production, layerProducedByBlock)
		if conflicts > 0 {
			sequencingByBlock[row.BlockID] += conflicts
		}

		shiftSummaries = append(shiftSummaries, ShiftSummary{
			MachineID: row.MachineID, Day: row.Day, ShiftID: row.ShiftID, BlockID: row.BlockID,
			Production: production, WorkedHours: worked, IdleHours: shiftHours - worked,
			MobilisationCost: mobCost, SequencingConflicts: conflicts,
			BlockCompleted: blockCompleted, SampleID: opt.sampleID,
		})
	}

	dayRows := aggregateDays(shiftSummaries, scn)

	var totalProduction, totalMob float64
	makespan := 0
	completed := 0
	for _, b := range scn.Blocks {
		totalProduction += productionByBlock[b.ID]
		if remaining[b.ID] <= 1e-9 {
			completed++
		}
	}
	for _, s := range shiftSummaries {
		if s.Production > 0 && s.Day > makespan {
			makespan = s.Day
		}
	}
	for _, m := range mobByMachine {
		totalMob += m
	}

	landingSurplus := map[string]float64{}
	for key, machines := range machinesByLandingDay {
		l, ok := scn.Landing(key.LandingID)
		if !ok {
			continue
		}
		if over := len(machines) - l.Capacity; over > 0 {
			landingSurplus[key.LandingID] += float64(over)
		}
	}

	totalViol := 0
	for _, c := range sequencingByBlock {
		totalViol += c
	}

	var utilisation float64
	if total := totalShiftSlots(v); total > 0 {
		workedCount := 0
		for _, s := range shiftSummaries {
			if s.WorkedHours > 0 {
				workedCount++
			}
		}
		utilisation = float64(workedCount) / float64(total)
	}

	return KPIBundle{
		TotalProduction:            totalProduction,
		CompletedBlocks:            completed,
		MobilisationCost:           totalMob,
		MobilisationCostByMachine:  mobByMachine,
		UtilisationRatio:           utilisation,
		Makespan:                   makespan,
		SequencingViolationCount:   totalViol,
		SequencingViolationByBlock: sequencingByBlock,
		LandingSurplus:             landingSurplus,
		RepairUsageAlert:           repairAlert,
		Shifts:                     shiftSummaries,
		Days:                       dayRows,
	}, nil
}

func shiftHoursOf(v *problemview.View, shiftID string) float64 {
	for _, sh := range v.Scenario.Timeline.Shifts {
		if sh.ID == shiftID {
			return sh.Hours
		}
	}
	return 8
}

func machineMobilisationParams(s *domain.Scenario, machineID string) domain.MobilisationParams {
	if p, ok := s.Mobilisation.PerMachine[machineID]; ok {
		return p
	}
	return s.Mobilisation.DefaultParams
}

func mobilisationCost(tier domain.DistanceTier, dist float64, mp domain.MobilisationParams) float64 {
	switch tier {
	case domain.TierSameBlock:
		return 0
	case domain.TierWalkable:
		return mp.WalkCost
	default:
		return mp.SetupCost + mp.MoveCostPerKm*dist/1000.0
	}
}

// sequencingConflictsAt reports whether assigning row's machine's role
// to b is premature given the harvest system's role layering: any
// production by a dependent-layer role before its prerequisite layer
// has produced its required share is one conflict (§4.5 item 4). It
// also credits production to the row's own layer in layerProduced, so
// later rows (processed in the canonical machine/day/shift order) see
// an accurate running total — the same per-layer threshold
// (RequiredWork/len(layers)) the greedy seed's repair pass and the MIP
// sequencing constraint both use, so all three stay consistent.
func sequencingConflictsAt(v *problemview.View, b domain.Block, row AssignmentRow, production float64, layerProduced map[string]map[int]float64) int {
	layers := v.RoleLayers(b.ID)
	if len(layers) < 2 {
		return 0
	}
	m, ok := v.Scenario.Machine(row.MachineID)
	if !ok {
		return 0
	}
	myLayer := -1
	for idx, roles := range layers {
		for _, r := range roles {
			if r == m.Role {
				myLayer = idx
			}
		}
	}
	if myLayer < 0 {
		return 0
	}

	produced := layerProduced[b.ID]
	if produced == nil {
		produced = map[int]float64{}
		layerProduced[b.ID] = produced
	}

	conflicts := 0
	if myLayer > 0 {
		threshold := b.RequiredWork / float64(len(layers))
		if produced[myLayer-1] < threshold {
			conflicts = 1
		}
	}
	produced[myLayer] += production
	return conflicts
}

func aggregateDays(shifts []ShiftSummary, scn *domain.Scenario) []DaySummary {
	type key struct {
		MachineID string
		Day       int
	}
	agg := map[key]*DaySummary{}
	order := []key{}
	for _, s := range shifts {
		k := key{s.MachineID, s.Day}
		d, ok := agg[k]
		if !ok {
			d = &DaySummary{MachineID: s.MachineID, Day: s.Day}
			agg[k] = d
			order = append(order, k)
		}
		d.Production += s.Production
		d.WorkedHours += s.WorkedHours
		d.IdleHours += s.IdleHours
		d.MobilisationCost += s.MobilisationCost
		d.SequencingConflicts += s.SequencingConflicts
		if s.BlockCompleted {
			d.CompletedBlocks++
		}
		if s.Production > 0 && s.Day > d.Makespan {
			d.Makespan = s.Day
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].MachineID != order[j].MachineID {
			return order[i].MachineID < order[j].MachineID
		}
		return order[i].Day < order[j].Day
	})
	out := make([]DaySummary, 0, len(order))
	for _, k := range order {
		out = append(out, *agg[k])
	}
	return out
}

func totalShiftSlots(v *problemview.View) int {
	return len(v.Scenario.Machines) * v.Scenario.Horizon * len(v.ShiftIDs)
}
