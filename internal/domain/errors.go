package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Subsystem-specific
// detail (violated table/row/field, offending constraint category, ...) rides
// alongside these via fmt.Errorf("...: %w", ErrX) or a typed wrapper.

var (
	// Validator errors
	ErrInvalidScenario  = errors.New("scenario failed validation")
	ErrInvalidReference = errors.New("reference does not resolve")
	ErrLockConflict     = errors.New("lock cannot be satisfied")

	// MIP backend errors
	ErrInfeasibleMIP  = errors.New("solver proved infeasibility")
	ErrSolverTimeLimit = errors.New("solver returned best-known schedule at time limit")
	ErrBackend        = errors.New("mip backend failure")

	// Playback errors
	ErrPlaybackViolation = errors.New("assignment violates availability, window, or reference")

	// Heuristic internals (never surfaced to callers; kept for completeness
	// of the error-kind taxonomy in documentation and tests)
	errOperatorSkipped = errors.New("operator skipped: no feasible candidate")
)

// ErrOperatorSkipped reports the internal-only "no feasible move" signal
// operators use; it is never returned from a public API.
func ErrOperatorSkipped() error { return errOperatorSkipped }
