package storage

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubTransitionStore struct {
	TransitionStore
	deleted int
	cutoff  time.Time
}

func (s *stubTransitionStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.cutoff = cutoff
	return s.deleted, nil
}

type stubEventStore struct {
	EventStore
	deleted int
	added   []SystemEvent
}

func (s *stubEventStore) DeleteBefore(_ context.Context, _ time.Time) (int, error) {
	return s.deleted, nil
}

func (s *stubEventStore) Add(_ context.Context, event SystemEvent) error {
	s.added = append(s.added, event)
	return nil
}

type stubStore struct {
	transitions *stubTransitionStore
	events      *stubEventStore
}

func (s *stubStore) Close() error                 { return nil }
func (s *stubStore) Employees() EmployeeStore     { return nil }
func (s *stubStore) Transitions() TransitionStore { return s.transitions }
func (s *stubStore) Events() EventStore           { return s.events }

func TestRetentionSweeper_Sweep(t *testing.T) {
	store := &stubStore{
		transitions: &stubTransitionStore{deleted: 7},
		events:      &stubEventStore{deleted: 3},
	}

	sweeper, err := NewRetentionSweeper(store, 30, "02:00", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetentionSweeper() failed: %v", err)
	}

	sweeper.Sweep(context.Background())

	wantCutoff := time.Now().AddDate(0, 0, -30)
	if diff := store.transitions.cutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %s, want ~%s", store.transitions.cutoff, wantCutoff)
	}

	if len(store.events.added) != 1 {
		t.Fatalf("recorded %d sweep events, want 1", len(store.events.added))
	}
	event := store.events.added[0]
	if event.Type != "retention_sweep" {
		t.Errorf("event type = %s, want retention_sweep", event.Type)
	}
	if event.Details["transitions_deleted"] != "7" || event.Details["events_deleted"] != "3" {
		t.Errorf("event details = %v", event.Details)
	}
}

func TestRetentionSweeper_NoEventWhenNothingPruned(t *testing.T) {
	store := &stubStore{
		transitions: &stubTransitionStore{deleted: 0},
		events:      &stubEventStore{deleted: 0},
	}

	sweeper, err := NewRetentionSweeper(store, 90, "00:00", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetentionSweeper() failed: %v", err)
	}

	sweeper.Sweep(context.Background())

	if len(store.events.added) != 0 {
		t.Errorf("recorded %d sweep events, want 0", len(store.events.added))
	}
}

func TestRetentionSweeper_InvalidSweepTime(t *testing.T) {
	if _, err := NewRetentionSweeper(&stubStore{}, 30, "2am", zerolog.Nop()); err == nil {
		t.Error("NewRetentionSweeper() succeeded with invalid time, want error")
	}
}

func TestRetentionSweeper_CalculateNextSweep(t *testing.T) {
	sweeper, err := NewRetentionSweeper(&stubStore{}, 30, "02:30", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetentionSweeper() failed: %v", err)
	}

	next := sweeper.calculateNextSweep()
	if next.Hour() != 2 || next.Minute() != 30 {
		t.Errorf("next sweep = %s, want 02:30 wall time", next)
	}
	if !next.After(time.Now()) {
		t.Errorf("next sweep %s is not in the future", next)
	}
}
