package scenario

// document is the top-level YAML/JSON scenario definition (§6): it names
// the table files and carries the inline configuration blocks. Field
// names match the snake_case keys documented in spec.md §6.
type document struct {
	SchemaVersion int               `yaml:"schema_version"`
	Horizon       int               `yaml:"horizon"`
	Tables        tableRefs         `yaml:"tables"`
	Timeline      timelineDoc       `yaml:"timeline"`
	Mobilisation  mobilisationDoc   `yaml:"mobilisation"`
	HarvestSystems map[string]harvestSystemDoc `yaml:"harvest_systems"`
	LockedAssignments []lockDoc     `yaml:"locked_assignments"`
	ObjectiveWeights  objectiveWeightsDoc `yaml:"objective_weights"`
	Geo           map[string]any    `yaml:"geo"`
	CrewAssignments map[string]any  `yaml:"crew_assignments"`
}

type tableRefs struct {
	Blocks           string `yaml:"blocks"`
	Machines         string `yaml:"machines"`
	Landings         string `yaml:"landings"`
	Calendar         string `yaml:"calendar"`
	ProductionRates  string `yaml:"production_rates"`
	ShiftCalendar    string `yaml:"shift_calendar"`
	RoadConstruction string `yaml:"road_construction"`
}

type shiftDoc struct {
	ID    string  `yaml:"id"`
	Hours float64 `yaml:"hours"`
}

type blackoutDoc struct {
	StartDay int      `yaml:"start_day"`
	EndDay   int      `yaml:"end_day"`
	Machines []string `yaml:"machines"`
}

type timelineDoc struct {
	Shifts       []shiftDoc    `yaml:"shifts"`
	ShiftsPerDay int           `yaml:"shifts_per_day"`
	Blackouts    []blackoutDoc `yaml:"blackouts"`
}

type mobilisationParamsDoc struct {
	WalkThresholdM float64 `yaml:"walk_threshold_m"`
	WalkCost       float64 `yaml:"walk_cost"`
	SetupCost      float64 `yaml:"setup_cost"`
	MoveCostPerKm  float64 `yaml:"move_cost_per_km"`
}

type mobilisationDoc struct {
	mobilisationParamsDoc `yaml:",inline"`
	PerMachine            map[string]mobilisationParamsDoc `yaml:"per_machine"`
	Distances             string                            `yaml:"distances"` // path to distance matrix CSV
}

type jobDoc struct {
	Name    string   `yaml:"name"`
	Role    string   `yaml:"role"`
	Prereqs []string `yaml:"prereqs"`
}

type harvestSystemDoc struct {
	Jobs []jobDoc `yaml:"jobs"`
}

type lockDoc struct {
	Machine string `yaml:"machine"`
	Block   string `yaml:"block"`
	Day     int    `yaml:"day"`
	Shift   string `yaml:"shift"`
}

type objectiveWeightsDoc struct {
	Production      float64 `yaml:"production"`
	Mobilisation    float64 `yaml:"mobilisation"`
	Transitions     float64 `yaml:"transitions"`
	LandingSlack    float64 `yaml:"landing_slack"`
	LeftoverPenalty float64 `yaml:"leftover_penalty"`
}
