package scenario

import (
	"fmt"
	"strings"

	"github.com/fhops/fhops/internal/domain"
)

// Violation is one failed validation rule. The validator is strict and
// total: it accumulates every Violation it finds rather than stopping at
// the first (§4.1).
type Violation struct {
	Table   string // source table/block name, e.g. "blocks", "locked_assignments"
	Row     int    // 0-based row index within Table, -1 if not row-scoped
	Field   string // offending field name
	Rule    string // short rule identifier, e.g. "range", "reference", "dag_cycle"
	Message string // human-readable detail
}

func (v Violation) String() string {
	loc := v.Table
	if v.Row >= 0 {
		loc = fmt.Sprintf("%s[%d]", v.Table, v.Row)
	}
	if v.Field != "" {
		loc = loc + "." + v.Field
	}
	return fmt.Sprintf("%s: %s (%s)", loc, v.Message, v.Rule)
}

// Violations is a non-empty error set returned by the validator. It
// implements the error interface so callers can use plain `if err != nil`
// while still being able to range over every individual problem.
type Violations []Violation

func (vs Violations) Error() string {
	if len(vs) == 0 {
		return "no violations"
	}
	lines := make([]string, len(vs))
	for i, v := range vs {
		lines[i] = v.String()
	}
	return fmt.Sprintf("%d scenario violation(s):\n  %s", len(vs), strings.Join(lines, "\n  "))
}

// Unwrap lets errors.Is/As match the generic domain.ErrInvalidScenario
// sentinel against any Violations value.
func (vs Violations) Unwrap() error { return domain.ErrInvalidScenario }

// Is lets errors.Is(err, domain.ErrInvalidReference) and
// errors.Is(err, domain.ErrLockConflict) match whenever at least one
// accumulated Violation belongs to that category, without callers having
// to know the underlying Rule taxonomy.
func (vs Violations) Is(target error) bool {
	switch target {
	case domain.ErrInvalidReference:
		for _, v := range vs {
			if v.Rule == "reference" {
				return true
			}
		}
	case domain.ErrLockConflict:
		for _, v := range vs {
			if strings.HasPrefix(v.Rule, "lock_") {
				return true
			}
		}
	}
	return false
}

// collector accumulates violations across a single Load/Validate call.
type collector struct {
	violations Violations
}

func (c *collector) add(table string, row int, field, rule, message string) {
	c.violations = append(c.violations, Violation{Table: table, Row: row, Field: field, Rule: rule, Message: message})
}

func (c *collector) addf(table string, row int, field, rule, format string, args ...any) {
	c.add(table, row, field, rule, fmt.Sprintf(format, args...))
}

func (c *collector) ok() bool { return len(c.violations) == 0 }
