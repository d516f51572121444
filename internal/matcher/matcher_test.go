package matcher

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/storage"
)

type fakeEmployeeStore struct {
	storage.EmployeeStore
	active []storage.Employee
}

func (f *fakeEmployeeStore) ListActive(_ context.Context) ([]storage.Employee, error) {
	return f.active, nil
}

// encodingAt returns a unit-ish test encoding with a single dominant axis.
func encodingAt(axis int) []float32 {
	enc := make([]float32, 128)
	enc[axis] = 1
	return enc
}

func newTestMatcher(t *testing.T, employees ...storage.Employee) *Matcher {
	t.Helper()
	m := New(&fakeEmployeeStore{active: employees}, DefaultTolerance, zerolog.Nop())
	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	return m
}

func TestMatch(t *testing.T) {
	m := newTestMatcher(t,
		storage.Employee{ID: "emp-001", Name: "Alice", Active: true, Encoding: encodingAt(0)},
		storage.Employee{ID: "emp-002", Name: "Bob", Active: true, Encoding: encodingAt(1)},
	)

	// Exact encoding matches with full confidence
	candidate, ok := m.Match(encodingAt(0))
	if !ok {
		t.Fatal("Match() = false for exact encoding")
	}
	if candidate.EmployeeID != "emp-001" || candidate.Name != "Alice" {
		t.Errorf("Match() = %s/%s, want emp-001/Alice", candidate.EmployeeID, candidate.Name)
	}
	if candidate.Confidence != 1 {
		t.Errorf("Confidence = %f, want 1", candidate.Confidence)
	}
}

func TestMatch_NearbyEncoding(t *testing.T) {
	m := newTestMatcher(t,
		storage.Employee{ID: "emp-001", Name: "Alice", Active: true, Encoding: encodingAt(0)},
		storage.Employee{ID: "emp-002", Name: "Bob", Active: true, Encoding: encodingAt(1)},
	)

	// Slight perturbation stays within tolerance
	query := encodingAt(0)
	query[5] = 0.2

	candidate, ok := m.Match(query)
	if !ok {
		t.Fatal("Match() = false for nearby encoding")
	}
	if candidate.EmployeeID != "emp-001" {
		t.Errorf("Match() = %s, want emp-001", candidate.EmployeeID)
	}
	if candidate.Confidence >= 1 || candidate.Confidence <= 0 {
		t.Errorf("Confidence = %f, want in (0,1)", candidate.Confidence)
	}
}

func TestMatch_BeyondTolerance(t *testing.T) {
	m := newTestMatcher(t,
		storage.Employee{ID: "emp-001", Name: "Alice", Active: true, Encoding: encodingAt(0)},
	)

	// Distance to the single indexed encoding is sqrt(2) > 0.6
	if _, ok := m.Match(encodingAt(7)); ok {
		t.Error("Match() = true for encoding beyond tolerance")
	}
}

func TestMatch_EmptyIndex(t *testing.T) {
	m := newTestMatcher(t)

	if _, ok := m.Match(encodingAt(0)); ok {
		t.Error("Match() = true with empty index")
	}
	if m.Size() != 0 {
		t.Errorf("Size() = %d, want 0", m.Size())
	}
}

func TestReload_SkipsEmployeesWithoutEncoding(t *testing.T) {
	m := newTestMatcher(t,
		storage.Employee{ID: "emp-001", Name: "Alice", Active: true, Encoding: encodingAt(0)},
		storage.Employee{ID: "emp-002", Name: "NoFace", Active: true},
	)

	if m.Size() != 1 {
		t.Errorf("Size() = %d, want 1", m.Size())
	}
}

func TestReload_PicksUpRosterChanges(t *testing.T) {
	store := &fakeEmployeeStore{active: []storage.Employee{
		{ID: "emp-001", Name: "Alice", Active: true, Encoding: encodingAt(0)},
	}}
	m := New(store, DefaultTolerance, zerolog.Nop())
	ctx := context.Background()

	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	if _, ok := m.Match(encodingAt(1)); ok {
		t.Fatal("Match() = true before Bob registered")
	}

	store.active = append(store.active, storage.Employee{
		ID: "emp-002", Name: "Bob", Active: true, Encoding: encodingAt(1),
	})
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}

	candidate, ok := m.Match(encodingAt(1))
	if !ok || candidate.EmployeeID != "emp-002" {
		t.Errorf("Match() after reload = %v, %v; want emp-002", candidate, ok)
	}
}
