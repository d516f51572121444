package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/capture"
	"github.com/TEC7337/stes/internal/report"
	"github.com/TEC7337/stes/internal/storage"
	"github.com/TEC7337/stes/internal/storage/bolt"
)

type fixedStats struct {
	stats capture.Stats
}

func (f *fixedStats) Stats() capture.Stats { return f.stats }

func setupServer(t *testing.T) (*Server, storage.Store) {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "stes.bolt"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reporter := report.NewReporter(store, zerolog.Nop())
	stats := &fixedStats{stats: capture.Stats{FramesProcessed: 42, ClockIns: 3}}
	server := NewServer("127.0.0.1:0", store, reporter, stats, zerolog.Nop())

	return server, store
}

func seed(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	employees := []storage.Employee{
		{ID: "emp-001", Name: "Alice", Department: "Engineering", Encoding: []float32{0.1}, Active: true},
		{ID: "emp-002", Name: "Bob", Active: false},
	}
	for _, e := range employees {
		if err := store.Employees().Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	base := time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC)
	transitions := []storage.Transition{
		{EmployeeID: "emp-001", Kind: storage.KindClockIn, Timestamp: base, DayKey: "2024-03-18"},
		{EmployeeID: "emp-001", Kind: storage.KindClockOut, Timestamp: base.Add(8 * time.Hour), DayKey: "2024-03-18"},
	}
	for _, tr := range transitions {
		if err := store.Transitions().Append(ctx, tr); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	event := storage.SystemEvent{Type: "clock_in", EmployeeID: "emp-001", Message: "Alice clocked in"}
	if err := store.Events().Add(ctx, event); err != nil {
		t.Fatalf("Add event failed: %v", err)
	}
}

func doRequest(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	server, _ := setupServer(t)

	rec := doRequest(t, server, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestEmployees_HidesEncoding(t *testing.T) {
	server, store := setupServer(t)
	seed(t, store)

	rec := doRequest(t, server, "/api/employees")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if strings.Contains(rec.Body.String(), "encoding") {
		t.Error("response exposes face encodings")
	}

	var views []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(views) != 2 {
		t.Errorf("got %d employees, want 2", len(views))
	}
}

func TestSummary(t *testing.T) {
	server, store := setupServer(t)
	seed(t, store)

	rec := doRequest(t, server, "/api/summary?day=2024-03-18")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var summary report.DailySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if summary.DayKey != "2024-03-18" {
		t.Errorf("day_key = %s, want 2024-03-18", summary.DayKey)
	}
	if len(summary.Employees) != 2 {
		t.Fatalf("got %d employees, want 2", len(summary.Employees))
	}
	if summary.Employees[0].Status != report.StatusClockedOut {
		t.Errorf("Alice status = %s, want clocked_out", summary.Employees[0].Status)
	}
}

func TestSummary_InvalidDay(t *testing.T) {
	server, _ := setupServer(t)

	rec := doRequest(t, server, "/api/summary?day=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTransitions_Filtered(t *testing.T) {
	server, store := setupServer(t)
	seed(t, store)

	rec := doRequest(t, server, "/api/transitions?employee=emp-001&day=2024-03-18")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var transitions []storage.Transition
	if err := json.Unmarshal(rec.Body.Bytes(), &transitions); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(transitions) != 2 {
		t.Errorf("got %d transitions, want 2", len(transitions))
	}

	rec = doRequest(t, server, "/api/transitions?employee=emp-999")
	var empty []storage.Transition
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d transitions for unknown employee, want 0", len(empty))
	}
}

func TestEvents(t *testing.T) {
	server, store := setupServer(t)
	seed(t, store)

	rec := doRequest(t, server, "/api/events?type=clock_in")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var events []storage.SystemEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestStats(t *testing.T) {
	server, _ := setupServer(t)

	rec := doRequest(t, server, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats capture.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if stats.FramesProcessed != 42 || stats.ClockIns != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStartReturnsAndServes(t *testing.T) {
	server, _ := setupServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	server.SetListener(ln)

	// Start must hand off to a background goroutine and return so the
	// caller can continue with the rest of its startup.
	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return within 2s")
	}

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := server.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}
