// Package report rolls attendance transitions up into daily summaries and
// export files.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/storage"
)

// Status of an employee within a day.
const (
	StatusClockedIn  = "clocked_in"
	StatusClockedOut = "clocked_out"
	StatusAbsent     = "absent"
)

// Session is one clock-in/clock-out pair. Open sessions have no ClockOut.
type Session struct {
	ClockIn  time.Time     `json:"clock_in"`
	ClockOut *time.Time    `json:"clock_out,omitempty"`
	Duration time.Duration `json:"duration"`
	Open     bool          `json:"open"`
}

// EmployeeSummary is one employee's day: sessions, total worked time, and
// current status.
type EmployeeSummary struct {
	EmployeeID string        `json:"employee_id"`
	Name       string        `json:"name"`
	Sessions   []Session     `json:"sessions"`
	TotalTime  time.Duration `json:"total_time"`
	Status     string        `json:"status"`
}

// DailySummary is the roll-up of all employees for one day key.
type DailySummary struct {
	DayKey    string            `json:"day_key"`
	Employees []EmployeeSummary `json:"employees"`
}

// Reporter builds summaries from the store.
type Reporter struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewReporter creates a reporter over the store.
func NewReporter(store storage.Store, logger zerolog.Logger) *Reporter {
	return &Reporter{
		store:  store,
		logger: logger.With().Str("component", "reporter").Logger(),
	}
}

// DailySummary builds the per-employee roll-up for one day key. Employees
// with no transitions that day appear with StatusAbsent.
func (r *Reporter) DailySummary(ctx context.Context, dayKey string) (*DailySummary, error) {
	employees, err := r.store.Employees().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	transitions, err := r.store.Transitions().Query(ctx, storage.TransitionFilter{DayKey: dayKey})
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}

	byEmployee := make(map[string][]storage.Transition)
	for _, t := range transitions {
		byEmployee[t.EmployeeID] = append(byEmployee[t.EmployeeID], t)
	}

	summary := &DailySummary{DayKey: dayKey}
	for _, e := range employees {
		summary.Employees = append(summary.Employees, summarizeEmployee(e, byEmployee[e.ID]))
	}

	sort.Slice(summary.Employees, func(i, j int) bool {
		return summary.Employees[i].Name < summary.Employees[j].Name
	})

	return summary, nil
}

// EmployeeStatus returns one employee's status for a day from the latest
// transition: clocked_in, clocked_out, or absent.
func (r *Reporter) EmployeeStatus(ctx context.Context, employeeID, dayKey string) (string, error) {
	latest, err := r.store.Transitions().LatestForDay(ctx, employeeID, dayKey)
	if errors.Is(err, storage.ErrNotFound) {
		return StatusAbsent, nil
	}
	if err != nil {
		return "", err
	}

	if latest.Kind == storage.KindClockIn {
		return StatusClockedIn, nil
	}
	return StatusClockedOut, nil
}

// Sessions pairs one employee-day's transitions into sessions. Transitions
// alternate within a day, so pairing walks the sorted stream.
func Sessions(transitions []storage.Transition) []Session {
	sorted := make([]storage.Transition, len(transitions))
	copy(sorted, transitions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var sessions []Session
	var open *Session
	for _, t := range sorted {
		switch t.Kind {
		case storage.KindClockIn:
			if open != nil {
				sessions = append(sessions, *open)
			}
			open = &Session{ClockIn: t.Timestamp, Open: true}
		case storage.KindClockOut:
			if open == nil {
				continue
			}
			out := t.Timestamp
			open.ClockOut = &out
			open.Duration = out.Sub(open.ClockIn)
			open.Open = false
			sessions = append(sessions, *open)
			open = nil
		}
	}
	if open != nil {
		sessions = append(sessions, *open)
	}

	return sessions
}

func summarizeEmployee(e storage.Employee, transitions []storage.Transition) EmployeeSummary {
	summary := EmployeeSummary{
		EmployeeID: e.ID,
		Name:       e.Name,
		Sessions:   Sessions(transitions),
		Status:     StatusAbsent,
	}

	for _, s := range summary.Sessions {
		summary.TotalTime += s.Duration
	}

	if n := len(summary.Sessions); n > 0 {
		if summary.Sessions[n-1].Open {
			summary.Status = StatusClockedIn
		} else {
			summary.Status = StatusClockedOut
		}
	}

	return summary
}
