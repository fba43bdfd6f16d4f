package scenario

import (
	"io/fs"
	"sort"
	"strconv"

	"github.com/fhops/fhops/internal/costing"
	"github.com/fhops/fhops/internal/domain"
)

// build turns a parsed document plus its referenced CSV tables into a
// validated, immutable domain.Scenario. Every failure is accumulated into
// a Violations error set rather than returned eagerly (§4.1).
func build(fsys fs.FS, doc document, provider costing.Provider) (*domain.Scenario, error) {
	c := &collector{}

	horizon := doc.Horizon
	if horizon <= 0 {
		c.add("scenario", -1, "horizon", "range", "horizon must be a positive number of days")
		horizon = 1 // keep going so other checks still run against something sane
	}

	timeline := buildTimeline(doc.Timeline, c)

	landings, landingIDs := buildLandings(fsys, doc.Tables.Landings, c)
	machines, machineIDs := buildMachines(fsys, doc.Tables.Machines, provider, c)
	blocks := buildBlocks(fsys, doc.Tables.Blocks, landingIDs, horizon, c)
	blockIDs := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		blockIDs[b.ID] = true
	}

	harvestSystems := buildHarvestSystems(doc.HarvestSystems, c)
	for _, b := range blocks {
		if b.HarvestSystem != "" {
			if _, ok := harvestSystems[b.HarvestSystem]; !ok {
				c.addf("blocks", -1, "harvest_system", "reference",
					"block %q references unknown harvest system %q", b.ID, b.HarvestSystem)
			}
		}
	}

	calendar := buildCalendar(fsys, doc.Tables.Calendar, machineIDs, horizon, c)
	shiftCalendar := buildShiftCalendar(fsys, doc.Tables.ShiftCalendar, machineIDs, timeline, horizon, c)
	rates := buildRates(fsys, doc.Tables.ProductionRates, machineIDs, blockIDs, c)
	roadJobs := buildRoadJobs(fsys, doc.Tables.RoadConstruction, blockIDs, c)

	mob := buildMobilisation(fsys, doc.Mobilisation, blockIDs, c)
	weights := buildObjectiveWeights(doc.ObjectiveWeights)

	s := &domain.Scenario{
		Horizon:        horizon,
		Blocks:         blocks,
		Machines:       machines,
		Landings:       landings,
		Calendar:       calendar,
		ShiftCalendar:  shiftCalendar,
		Rates:          rates,
		Timeline:       timeline,
		HarvestSystems: harvestSystems,
		Mobilisation:   mob,
		Weights:        weights,
		RoadJobs:       roadJobs,
	}
	s.Index()

	s.Locks = buildLocks(s, doc.LockedAssignments, machineIDs, blockIDs, timeline, c)

	if !c.ok() {
		return nil, c.violations
	}
	return s, nil
}

func buildTimeline(t timelineDoc, c *collector) domain.Timeline {
	shifts := make([]domain.Shift, 0, len(t.Shifts))
	for _, sd := range t.Shifts {
		if sd.ID == "" {
			c.add("timeline", -1, "shifts.id", "missing", "every shift must have an id")
			continue
		}
		hours := sd.Hours
		if hours <= 0 {
			hours = 8
		}
		shifts = append(shifts, domain.Shift{ID: sd.ID, Hours: hours})
	}
	if len(shifts) == 0 {
		shifts = []domain.Shift{{ID: "D", Hours: 8}}
	}
	shiftsPerDay := t.ShiftsPerDay
	if shiftsPerDay <= 0 {
		shiftsPerDay = len(shifts)
	}

	blackouts := make([]domain.BlackoutWindow, 0, len(t.Blackouts))
	for _, bd := range t.Blackouts {
		if bd.StartDay < 1 || bd.EndDay < bd.StartDay {
			c.addf("timeline", -1, "blackouts", "range",
				"blackout window [%d,%d] is invalid", bd.StartDay, bd.EndDay)
			continue
		}
		blackouts = append(blackouts, domain.BlackoutWindow{
			StartDay: bd.StartDay, EndDay: bd.EndDay, MachineIDs: bd.Machines,
		})
	}

	return domain.Timeline{Shifts: shifts, ShiftsPerDay: shiftsPerDay, Blackouts: blackouts}
}

func buildLandings(fsys fs.FS, path string, c *collector) ([]domain.Landing, map[string]bool) {
	ids := map[string]bool{}
	if path == "" {
		c.add("scenario", -1, "tables.landings", "missing", "landings table path is required")
		return nil, ids
	}
	rows, err := readCSVTable(fsys, path)
	if err != nil {
		c.addf("landings", -1, "", "io", "cannot read landings table %s: %v", path, err)
		return nil, ids
	}
	out := make([]domain.Landing, 0, len(rows))
	for i, r := range rows {
		id := r.str("id")
		if id == "" {
			c.add("landings", i, "id", "missing", "id is required")
			continue
		}
		if ids[id] {
			c.addf("landings", i, "id", "duplicate", "duplicate landing id %q", id)
			continue
		}
		capacity := 2
		if raw, ok := r.intField(c, "landings", i, "capacity", false); ok && r.str("capacity") != "" {
			capacity = raw
		}
		if capacity < 0 {
			c.addf("landings", i, "capacity", "range", "capacity must be non-negative, got %d", capacity)
			continue
		}
		ids[id] = true
		out = append(out, domain.Landing{ID: id, Capacity: capacity})
	}
	return out, ids
}

func buildMachines(fsys fs.FS, path string, provider costing.Provider, c *collector) ([]domain.Machine, map[string]bool) {
	ids := map[string]bool{}
	if path == "" {
		c.add("scenario", -1, "tables.machines", "missing", "machines table path is required")
		return nil, ids
	}
	rows, err := readCSVTable(fsys, path)
	if err != nil {
		c.addf("machines", -1, "", "io", "cannot read machines table %s: %v", path, err)
		return nil, ids
	}
	out := make([]domain.Machine, 0, len(rows))
	for i, r := range rows {
		id := r.str("id")
		if id == "" {
			c.add("machines", i, "id", "missing", "id is required")
			continue
		}
		if ids[id] {
			c.addf("machines", i, "id", "duplicate", "duplicate machine id %q", id)
			continue
		}
		role := CanonicalRole(r.str("role"))
		dailyHours, _ := r.floatField(c, "machines", i, "daily_hours", false)
		if dailyHours <= 0 {
			dailyHours = 8
		}
		cost, _ := r.floatField(c, "machines", i, "operating_cost_hr", false)
		if cost <= 0 && role != "" {
			if def, ok := provider.OperatingCostPerHour(role); ok {
				cost = def
			}
		}
		if cost < 0 {
			c.addf("machines", i, "operating_cost_hr", "range", "operating_cost_hr must be non-negative")
			continue
		}
		ids[id] = true
		out = append(out, domain.Machine{
			ID:                id,
			Role:              role,
			Crew:              r.str("crew"),
			DailyHours:        dailyHours,
			OperatingCostHr:   cost,
			RepairUsageBucket: r.str("repair_usage_bucket"),
		})
	}
	return out, ids
}

var knownBlockColumns = map[string]bool{
	"id": true, "landing_id": true, "required_work": true,
	"earliest_start": true, "latest_finish": true, "harvest_system": true,
	"salvage_mode": true,
}

func buildBlocks(fsys fs.FS, path string, landingIDs map[string]bool, horizon int, c *collector) []domain.Block {
	if path == "" {
		c.add("scenario", -1, "tables.blocks", "missing", "blocks table path is required")
		return nil
	}
	rows, err := readCSVTable(fsys, path)
	if err != nil {
		c.addf("blocks", -1, "", "io", "cannot read blocks table %s: %v", path, err)
		return nil
	}
	seen := map[string]bool{}
	out := make([]domain.Block, 0, len(rows))
	for i, r := range rows {
		id := r.str("id")
		if id == "" {
			c.add("blocks", i, "id", "missing", "id is required")
			continue
		}
		if seen[id] {
			c.addf("blocks", i, "id", "duplicate", "duplicate block id %q", id)
			continue
		}
		landingID := r.str("landing_id")
		if landingID == "" || !landingIDs[landingID] {
			c.addf("blocks", i, "landing_id", "reference", "block %q references unknown landing %q", id, landingID)
			continue
		}
		required, ok1 := r.floatField(c, "blocks", i, "required_work", true)
		es, ok2 := r.intField(c, "blocks", i, "earliest_start", true)
		lf, ok3 := r.intField(c, "blocks", i, "latest_finish", true)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		if required < 0 {
			c.addf("blocks", i, "required_work", "range", "required_work must be non-negative")
			continue
		}
		if es < 1 || lf < es || lf > horizon {
			c.addf("blocks", i, "earliest_start", "range",
				"block %q window [%d,%d] must satisfy 1<=earliest_start<=latest_finish<=horizon(%d)", id, es, lf, horizon)
			continue
		}
		attrs := map[string]string{}
		for k, v := range r {
			if !knownBlockColumns[k] && v != "" {
				attrs[k] = v
			}
		}
		seen[id] = true
		out = append(out, domain.Block{
			ID:            id,
			LandingID:     landingID,
			RequiredWork:  required,
			EarliestStart: es,
			LatestFinish:  lf,
			HarvestSystem: r.str("harvest_system"),
			SalvageMode:   r.str("salvage_mode"),
			Attrs:         attrs,
		})
	}
	return out
}

func buildHarvestSystems(docs map[string]harvestSystemDoc, c *collector) map[string]domain.HarvestSystem {
	out := make(map[string]domain.HarvestSystem, len(docs))
	// iterate in sorted key order so accumulated Violations are deterministic
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		hsd := docs[id]
		jobs := make([]domain.Job, 0, len(hsd.Jobs))
		for _, jd := range hsd.Jobs {
			if jd.Name == "" {
				c.addf("harvest_systems", -1, "jobs", "missing", "harvest system %q has a job with no name", id)
				continue
			}
			jobs = append(jobs, domain.Job{Name: jd.Name, Role: CanonicalRole(jd.Role), Prereqs: jd.Prereqs})
		}
		hs := domain.HarvestSystem{ID: id, Jobs: jobs}
		out[id] = hs
		layerHarvestSystem(hs, c, "harvest_systems", -1) // DAG check; layering recomputed on demand via PrecedenceChain
	}
	return out
}

func buildCalendar(fsys fs.FS, path string, machineIDs map[string]bool, horizon int, c *collector) []domain.CalendarEntry {
	if path == "" {
		return nil
	}
	rows, err := readCSVTable(fsys, path)
	if err != nil {
		c.addf("calendar", -1, "", "io", "cannot read calendar table %s: %v", path, err)
		return nil
	}
	out := make([]domain.CalendarEntry, 0, len(rows))
	for i, r := range rows {
		mid := r.str("machine_id")
		if !machineIDs[mid] {
			c.addf("calendar", i, "machine_id", "reference", "unknown machine %q", mid)
			continue
		}
		day, ok := r.intField(c, "calendar", i, "day", true)
		if !ok {
			continue
		}
		if day < 1 || day > horizon {
			c.addf("calendar", i, "day", "range", "day %d out of [1,%d]", day, horizon)
			continue
		}
		out = append(out, domain.CalendarEntry{MachineID: mid, Day: day, Available: r.boolField("available", true)})
	}
	return out
}

func buildShiftCalendar(fsys fs.FS, path string, machineIDs map[string]bool, timeline domain.Timeline, horizon int, c *collector) []domain.ShiftCalendarEntry {
	if path == "" {
		return nil
	}
	declared := map[string]bool{}
	for _, id := range timeline.ShiftIDs() {
		declared[id] = true
	}
	rows, err := readCSVTable(fsys, path)
	if err != nil {
		c.addf("shift_calendar", -1, "", "io", "cannot read shift_calendar table %s: %v", path, err)
		return nil
	}
	out := make([]domain.ShiftCalendarEntry, 0, len(rows))
	for i, r := range rows {
		mid := r.str("machine_id")
		if !machineIDs[mid] {
			c.addf("shift_calendar", i, "machine_id", "reference", "unknown machine %q", mid)
			continue
		}
		day, ok := r.intField(c, "shift_calendar", i, "day", true)
		if !ok {
			continue
		}
		if day < 1 || day > horizon {
			c.addf("shift_calendar", i, "day", "range", "day %d out of [1,%d]", day, horizon)
			continue
		}
		shiftID := r.str("shift_id")
		if !declared[shiftID] {
			c.addf("shift_calendar", i, "shift_id", "reference", "shift %q not declared in timeline", shiftID)
			continue
		}
		out = append(out, domain.ShiftCalendarEntry{
			MachineID: mid, Day: day, ShiftID: shiftID, Available: r.boolField("available", true),
		})
	}
	return out
}

func buildRates(fsys fs.FS, path string, machineIDs, blockIDs map[string]bool, c *collector) []domain.ProductionRate {
	if path == "" {
		c.add("scenario", -1, "tables.production_rates", "missing", "production_rates table path is required")
		return nil
	}
	rows, err := readCSVTable(fsys, path)
	if err != nil {
		c.addf("production_rates", -1, "", "io", "cannot read production_rates table %s: %v", path, err)
		return nil
	}
	out := make([]domain.ProductionRate, 0, len(rows))
	for i, r := range rows {
		mid, bid := r.str("machine_id"), r.str("block_id")
		if !machineIDs[mid] {
			c.addf("production_rates", i, "machine_id", "reference", "unknown machine %q", mid)
			continue
		}
		if !blockIDs[bid] {
			c.addf("production_rates", i, "block_id", "reference", "unknown block %q", bid)
			continue
		}
		rate, ok := r.floatField(c, "production_rates", i, "rate", true)
		if !ok {
			continue
		}
		if rate < 0 {
			c.addf("production_rates", i, "rate", "range", "rate must be non-negative")
			continue
		}
		out = append(out, domain.ProductionRate{MachineID: mid, BlockID: bid, Rate: rate})
	}
	return out
}

func buildRoadJobs(fsys fs.FS, path string, blockIDs map[string]bool, c *collector) []domain.RoadConstructionJob {
	if path == "" {
		return nil
	}
	rows, err := readCSVTable(fsys, path)
	if err != nil {
		c.addf("road_construction", -1, "", "io", "cannot read road_construction table %s: %v", path, err)
		return nil
	}
	out := make([]domain.RoadConstructionJob, 0, len(rows))
	for i, r := range rows {
		id := r.str("id")
		bid := r.str("block_id")
		if bid != "" && !blockIDs[bid] {
			c.addf("road_construction", i, "block_id", "reference", "unknown block %q", bid)
			continue
		}
		attrs := map[string]string{}
		for k, v := range r {
			if k != "id" && k != "block_id" && v != "" {
				attrs[k] = v
			}
		}
		out = append(out, domain.RoadConstructionJob{ID: id, BlockID: bid, Attrs: attrs})
	}
	return out
}

func buildMobilisation(fsys fs.FS, m mobilisationDoc, blockIDs map[string]bool, c *collector) domain.MobilisationConfig {
	toParams := func(d mobilisationParamsDoc) domain.MobilisationParams {
		return domain.MobilisationParams{
			WalkThresholdM: d.WalkThresholdM,
			WalkCost:       d.WalkCost,
			SetupCost:      d.SetupCost,
			MoveCostPerKm:  d.MoveCostPerKm,
		}
	}
	perMachine := make(map[string]domain.MobilisationParams, len(m.PerMachine))
	for k, v := range m.PerMachine {
		perMachine[k] = toParams(v)
	}

	var distances map[[2]string]float64
	if m.Distances != "" {
		var err error
		distances, err = readDistanceMatrix(fsys, m.Distances)
		if err != nil {
			c.addf("mobilisation", -1, "distances", "io", "cannot read distance matrix %s: %v", m.Distances, err)
		}
	}

	enabled := m.Distances != "" || len(m.PerMachine) > 0 || m.WalkThresholdM > 0 || m.MoveCostPerKm > 0

	for key, d := range distances {
		if d < 0 {
			c.addf("mobilisation", -1, "distances", "range", "distance %v is negative", key)
		}
		for _, id := range key {
			if !blockIDs[id] {
				c.addf("mobilisation", -1, "distances", "reference", "distance matrix references unknown block %q", id)
			}
		}
	}

	return domain.MobilisationConfig{
		Enabled:       enabled,
		PerMachine:    perMachine,
		DefaultParams: toParams(m.mobilisationParamsDoc),
		Distances:     distances,
	}
}

func buildObjectiveWeights(d objectiveWeightsDoc) domain.ObjectiveWeights {
	if d.Production == 0 && d.Mobilisation == 0 && d.Transitions == 0 && d.LandingSlack == 0 && d.LeftoverPenalty == 0 {
		return domain.DefaultObjectiveWeights()
	}
	return domain.ObjectiveWeights{
		Production:      d.Production,
		Mobilisation:    d.Mobilisation,
		Transitions:     d.Transitions,
		LandingSlack:    d.LandingSlack,
		LeftoverPenalty: d.LeftoverPenalty,
	}
}

// buildLocks validates and constructs the locked-assignment list
// (invariant 5): eligibility, landing capacity, availability, no
// collisions, and window membership.
func buildLocks(s *domain.Scenario, docs []lockDoc, machineIDs, blockIDs map[string]bool, timeline domain.Timeline, c *collector) []domain.ScheduleLock {
	shiftIDs := timeline.ShiftIDs()
	out := make([]domain.ScheduleLock, 0, len(docs))
	seenSlot := map[[3]string]bool{} // (machine, day, shift)
	landingDayCount := map[[2]string]int{} // (landing, day) among locks

	for i, ld := range docs {
		if !machineIDs[ld.Machine] {
			c.addf("locked_assignments", i, "machine", "reference", "unknown machine %q", ld.Machine)
			continue
		}
		if !blockIDs[ld.Block] {
			c.addf("locked_assignments", i, "block", "reference", "unknown block %q", ld.Block)
			continue
		}
		shiftID := ld.Shift
		if shiftID == "" {
			if len(shiftIDs) == 1 {
				shiftID = shiftIDs[0]
			} else {
				c.addf("locked_assignments", i, "shift", "lock_ambiguous",
					"lock for machine %q block %q must name a shift (timeline declares %d shifts)", ld.Machine, ld.Block, len(shiftIDs))
				continue
			}
		}
		declared := false
		for _, id := range shiftIDs {
			if id == shiftID {
				declared = true
				break
			}
		}
		if !declared {
			c.addf("locked_assignments", i, "shift", "reference", "shift %q not declared in timeline", shiftID)
			continue
		}

		b, _ := s.Block(ld.Block)
		if ld.Day < b.EarliestStart || ld.Day > b.LatestFinish {
			c.addf("locked_assignments", i, "day", "lock_window",
				"lock day %d outside block %q window [%d,%d]", ld.Day, ld.Block, b.EarliestStart, b.LatestFinish)
			continue
		}

		if !Eligible(s, ld.Machine, ld.Block) {
			c.addf("locked_assignments", i, "machine", "lock_eligibility",
				"machine %q is not eligible for block %q", ld.Machine, ld.Block)
			continue
		}
		if !Available(s, ld.Machine, ld.Day, shiftID) {
			c.addf("locked_assignments", i, "day", "lock_availability",
				"machine %q unavailable on day %d shift %q", ld.Machine, ld.Day, shiftID)
			continue
		}

		slot := [3]string{ld.Machine, strconv.Itoa(ld.Day), shiftID}
		if seenSlot[slot] {
			c.addf("locked_assignments", i, "day", "lock_collision",
				"multiple locks collide on machine %q day %d shift %q", ld.Machine, ld.Day, shiftID)
			continue
		}
		seenSlot[slot] = true

		landingKey := [2]string{b.LandingID, strconv.Itoa(ld.Day)}
		landingDayCount[landingKey]++
		if landing, ok := s.Landing(b.LandingID); ok && landingDayCount[landingKey] > landing.Capacity {
			c.addf("locked_assignments", i, "day", "lock_capacity",
				"locks on day %d exceed landing %q capacity %d", ld.Day, b.LandingID, landing.Capacity)
			continue
		}

		out = append(out, domain.ScheduleLock{MachineID: ld.Machine, BlockID: ld.Block, Day: ld.Day, ShiftID: shiftID})
	}
	return out
}

