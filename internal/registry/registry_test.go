package registry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/storage"
)

type fakeEmployeeStore struct {
	storage.EmployeeStore
	employees map[string]storage.Employee
	gets      int
}

func (f *fakeEmployeeStore) Get(_ context.Context, id string) (*storage.Employee, error) {
	f.gets++
	e, ok := f.employees[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func TestExists(t *testing.T) {
	store := &fakeEmployeeStore{employees: map[string]storage.Employee{
		"emp-001": {ID: "emp-001", Name: "Alice", Active: true},
		"emp-002": {ID: "emp-002", Name: "Bob", Active: false},
	}}
	reg := New(store, zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		id   string
		want bool
	}{
		{"emp-001", true},
		{"emp-002", false}, // registered but inactive
		{"emp-999", false}, // unknown
	}

	for _, tt := range tests {
		got, err := reg.Exists(ctx, tt.id)
		if err != nil {
			t.Fatalf("Exists(%s) failed: %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("Exists(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestExists_CachesLookups(t *testing.T) {
	store := &fakeEmployeeStore{employees: map[string]storage.Employee{
		"emp-001": {ID: "emp-001", Name: "Alice", Active: true},
	}}
	reg := New(store, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := reg.Exists(ctx, "emp-001"); err != nil {
			t.Fatalf("Exists() failed: %v", err)
		}
	}
	if store.gets != 1 {
		t.Errorf("store hit %d times, want 1", store.gets)
	}

	// Negative results are cached too
	for i := 0; i < 5; i++ {
		if _, err := reg.Exists(ctx, "emp-999"); err != nil {
			t.Fatalf("Exists() failed: %v", err)
		}
	}
	if store.gets != 2 {
		t.Errorf("store hit %d times, want 2", store.gets)
	}
}

func TestInvalidate(t *testing.T) {
	store := &fakeEmployeeStore{employees: map[string]storage.Employee{}}
	reg := New(store, zerolog.Nop())
	ctx := context.Background()

	if ok, _ := reg.Exists(ctx, "emp-001"); ok {
		t.Fatal("Exists() = true before registration")
	}

	// Register and invalidate the stale negative entry
	store.employees["emp-001"] = storage.Employee{ID: "emp-001", Name: "Alice", Active: true}
	reg.Invalidate("emp-001")

	if ok, _ := reg.Exists(ctx, "emp-001"); !ok {
		t.Error("Exists() = false after Invalidate, want true")
	}
}
