package engine

import (
	"fmt"
	"strings"
	"time"
)

// DayKeyFunc resolves a timestamp to the calendar day its attendance
// state belongs to. Injected so day-boundary behavior is testable
// without real-time dependency.
type DayKeyFunc func(time.Time) string

// LocalDayKey is the default day-key function: the local calendar date.
func LocalDayKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// DayBoundaryPolicy controls what happens to an unclosed session when
// the calendar day rolls over.
type DayBoundaryPolicy string

const (
	// DayBoundaryReset starts every day fresh: the first observation of a
	// new day is a clock-in regardless of yesterday's terminal state.
	DayBoundaryReset DayBoundaryPolicy = "reset"

	// DayBoundaryCarryOver keeps an unclosed session open across the day
	// boundary: the first observation of the new day must clock out first.
	DayBoundaryCarryOver DayBoundaryPolicy = "carry_over"
)

// ParseDayBoundaryPolicy parses a policy from configuration.
func ParseDayBoundaryPolicy(s string) (DayBoundaryPolicy, error) {
	switch DayBoundaryPolicy(strings.ToLower(s)) {
	case DayBoundaryReset, "":
		return DayBoundaryReset, nil
	case DayBoundaryCarryOver:
		return DayBoundaryCarryOver, nil
	default:
		return "", fmt.Errorf("invalid day boundary policy: %s (must be reset or carry_over)", s)
	}
}
