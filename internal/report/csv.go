package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/TEC7337/stes/internal/storage"
)

// WriteTransitionsCSV exports transitions in a date range as CSV rows.
func (r *Reporter) WriteTransitionsCSV(ctx context.Context, w io.Writer, start, end time.Time) error {
	transitions, err := r.store.Transitions().Query(ctx, storage.TransitionFilter{
		StartTime: &start,
		EndTime:   &end,
	})
	if err != nil {
		return fmt.Errorf("query transitions: %w", err)
	}

	names, err := r.employeeNames(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"employee_id", "name", "kind", "timestamp", "day_key", "source"}); err != nil {
		return err
	}

	for _, t := range transitions {
		record := []string{
			t.EmployeeID,
			names[t.EmployeeID],
			string(t.Kind),
			t.Timestamp.Format(time.RFC3339),
			t.DayKey,
			t.Source,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSessionsCSV exports paired sessions for one day key as CSV rows.
func (r *Reporter) WriteSessionsCSV(ctx context.Context, w io.Writer, dayKey string) error {
	summary, err := r.DailySummary(ctx, dayKey)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"employee_id", "name", "clock_in", "clock_out", "duration_seconds", "open"}); err != nil {
		return err
	}

	for _, e := range summary.Employees {
		for _, s := range e.Sessions {
			clockOut := ""
			if s.ClockOut != nil {
				clockOut = s.ClockOut.Format(time.RFC3339)
			}
			record := []string{
				e.EmployeeID,
				e.Name,
				s.ClockIn.Format(time.RFC3339),
				clockOut,
				strconv.FormatInt(int64(s.Duration.Seconds()), 10),
				strconv.FormatBool(s.Open),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func (r *Reporter) employeeNames(ctx context.Context) (map[string]string, error) {
	employees, err := r.store.Employees().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	names := make(map[string]string, len(employees))
	for _, e := range employees {
		names[e.ID] = e.Name
	}
	return names, nil
}
