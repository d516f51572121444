package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/storage"
	"github.com/TEC7337/stes/internal/storage/bolt"
)

func setupReporter(t *testing.T) (*Reporter, storage.Store) {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "stes.bolt"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return NewReporter(store, zerolog.Nop()), store
}

func seedDay(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	for _, e := range []storage.Employee{
		{ID: "emp-001", Name: "Alice", Active: true},
		{ID: "emp-002", Name: "Bob", Active: true},
		{ID: "emp-003", Name: "Carol", Active: true},
	} {
		if err := store.Employees().Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", e.ID, err)
		}
	}

	day := "2024-03-18"
	base := time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC)
	transitions := []storage.Transition{
		// Alice: two complete sessions
		{EmployeeID: "emp-001", Kind: storage.KindClockIn, Timestamp: base, DayKey: day},
		{EmployeeID: "emp-001", Kind: storage.KindClockOut, Timestamp: base.Add(3 * time.Hour), DayKey: day},
		{EmployeeID: "emp-001", Kind: storage.KindClockIn, Timestamp: base.Add(4 * time.Hour), DayKey: day},
		{EmployeeID: "emp-001", Kind: storage.KindClockOut, Timestamp: base.Add(8 * time.Hour), DayKey: day},
		// Bob: open session
		{EmployeeID: "emp-002", Kind: storage.KindClockIn, Timestamp: base.Add(time.Hour), DayKey: day},
		// Carol: absent
	}
	for i, tr := range transitions {
		if err := store.Transitions().Append(ctx, tr); err != nil {
			t.Fatalf("Append #%d failed: %v", i, err)
		}
	}
}

func TestDailySummary(t *testing.T) {
	reporter, store := setupReporter(t)
	seedDay(t, store)

	summary, err := reporter.DailySummary(context.Background(), "2024-03-18")
	if err != nil {
		t.Fatalf("DailySummary() failed: %v", err)
	}

	if len(summary.Employees) != 3 {
		t.Fatalf("summary has %d employees, want 3", len(summary.Employees))
	}

	// Sorted by name: Alice, Bob, Carol
	alice := summary.Employees[0]
	if alice.Name != "Alice" {
		t.Fatalf("first employee = %s, want Alice", alice.Name)
	}
	if len(alice.Sessions) != 2 {
		t.Fatalf("Alice has %d sessions, want 2", len(alice.Sessions))
	}
	if alice.TotalTime != 7*time.Hour {
		t.Errorf("Alice total = %s, want 7h", alice.TotalTime)
	}
	if alice.Status != StatusClockedOut {
		t.Errorf("Alice status = %s, want %s", alice.Status, StatusClockedOut)
	}

	bob := summary.Employees[1]
	if len(bob.Sessions) != 1 || !bob.Sessions[0].Open {
		t.Errorf("Bob sessions = %+v, want one open session", bob.Sessions)
	}
	if bob.Status != StatusClockedIn {
		t.Errorf("Bob status = %s, want %s", bob.Status, StatusClockedIn)
	}
	if bob.TotalTime != 0 {
		t.Errorf("Bob total = %s, want 0 for open session", bob.TotalTime)
	}

	carol := summary.Employees[2]
	if carol.Status != StatusAbsent {
		t.Errorf("Carol status = %s, want %s", carol.Status, StatusAbsent)
	}
	if len(carol.Sessions) != 0 {
		t.Errorf("Carol has %d sessions, want 0", len(carol.Sessions))
	}
}

func TestEmployeeStatus(t *testing.T) {
	reporter, store := setupReporter(t)
	seedDay(t, store)
	ctx := context.Background()

	tests := []struct {
		employeeID string
		want       string
	}{
		{"emp-001", StatusClockedOut},
		{"emp-002", StatusClockedIn},
		{"emp-003", StatusAbsent},
	}

	for _, tt := range tests {
		got, err := reporter.EmployeeStatus(ctx, tt.employeeID, "2024-03-18")
		if err != nil {
			t.Fatalf("EmployeeStatus(%s) failed: %v", tt.employeeID, err)
		}
		if got != tt.want {
			t.Errorf("EmployeeStatus(%s) = %s, want %s", tt.employeeID, got, tt.want)
		}
	}
}

func TestSessions_IgnoresLeadingClockOut(t *testing.T) {
	base := time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC)
	transitions := []storage.Transition{
		{Kind: storage.KindClockOut, Timestamp: base},
		{Kind: storage.KindClockIn, Timestamp: base.Add(time.Hour)},
		{Kind: storage.KindClockOut, Timestamp: base.Add(2 * time.Hour)},
	}

	sessions := Sessions(transitions)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Duration != time.Hour {
		t.Errorf("session duration = %s, want 1h", sessions[0].Duration)
	}
}

func TestWriteTransitionsCSV(t *testing.T) {
	reporter, store := setupReporter(t)
	seedDay(t, store)

	var buf bytes.Buffer
	start := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	if err := reporter.WriteTransitionsCSV(context.Background(), &buf, start, end); err != nil {
		t.Fatalf("WriteTransitionsCSV() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 6 { // header + 5 transitions
		t.Fatalf("CSV has %d lines, want 6:\n%s", len(lines), buf.String())
	}
	if lines[0] != "employee_id,name,kind,timestamp,day_key,source" {
		t.Errorf("CSV header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "emp-001,Alice,CLOCK_IN") {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestWriteSessionsCSV(t *testing.T) {
	reporter, store := setupReporter(t)
	seedDay(t, store)

	var buf bytes.Buffer
	if err := reporter.WriteSessionsCSV(context.Background(), &buf, "2024-03-18"); err != nil {
		t.Fatalf("WriteSessionsCSV() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 { // header + 2 Alice sessions + 1 Bob open session
		t.Fatalf("CSV has %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[3], ",0,true") {
		t.Errorf("Bob's open session row = %q, want duration 0 and open true", lines[3])
	}
}
