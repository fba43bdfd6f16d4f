package heuristic

// OperatorStats accumulates per-operator counters across a solver run
// (§4.4 "Per-operator telemetry").
type OperatorStats struct {
	Name      string
	Weight    float64
	Proposals int
	Accepted  int
	Skipped   int
}

// AcceptanceRate returns Accepted/Proposals, or 0 when untried.
func (s OperatorStats) AcceptanceRate() float64 {
	if s.Proposals == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Proposals)
}

// Step is one iteration's telemetry record, shaped to match the §4.6
// step-record schema (run_id/schema-version wrapping happens in the
// telemetry package; this is the solver-local payload).
type Step struct {
	Iteration        int
	Best             float64
	Current          float64
	RollingMean      float64
	Temperature      float64
	DeltaBest        float64
	AcceptanceWindow float64
	Operator         string
}

// Result is what every solver (SA, ILS, Tabu) returns: the best
// schedule found, its score breakdown, the step trace, and per-operator
// stats, plus whether the wall-clock deadline was hit before
// convergence.
type Result struct {
	Best            *Schedule
	Score           ScoreBreakdown
	Steps           []Step
	OperatorStats   []OperatorStats
	TimeLimitReached bool
}
