package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/storage"
)

type fakeTransitionStore struct {
	storage.TransitionStore

	mu        sync.Mutex
	appended  []storage.Transition
	failFirst int // fail this many appends before succeeding
	failAll   bool
}

func (f *fakeTransitionStore) Append(_ context.Context, transition storage.Transition) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll {
		return errors.New("disk full")
	}
	if f.failFirst > 0 {
		f.failFirst--
		return errors.New("transient error")
	}
	f.appended = append(f.appended, transition)
	return nil
}

func (f *fakeTransitionStore) all() []storage.Transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Transition, len(f.appended))
	copy(out, f.appended)
	return out
}

type syncEventStore struct {
	storage.EventStore

	mu     sync.Mutex
	events []storage.SystemEvent
}

func (s *syncEventStore) Add(_ context.Context, event storage.SystemEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *syncEventStore) all() []storage.SystemEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.SystemEvent, len(s.events))
	copy(out, s.events)
	return out
}

func transitionAt(kind storage.TransitionKind, offset time.Duration) storage.Transition {
	return storage.Transition{
		EmployeeID: "emp-001",
		Kind:       kind,
		Timestamp:  time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC).Add(offset),
		DayKey:     "2024-03-18",
	}
}

func TestAsyncAppender_PreservesOrder(t *testing.T) {
	store := &fakeTransitionStore{}
	appender := NewAsyncAppender(store, nil, 16, 1, zerolog.Nop())
	appender.Start()

	ctx := context.Background()
	kinds := []storage.TransitionKind{
		storage.KindClockIn, storage.KindClockOut, storage.KindClockIn, storage.KindClockOut,
	}
	for i, kind := range kinds {
		if err := appender.Append(ctx, transitionAt(kind, time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Append #%d failed: %v", i, err)
		}
	}

	appender.Stop()

	appended := store.all()
	if len(appended) != 4 {
		t.Fatalf("appended %d transitions, want 4", len(appended))
	}
	for i, kind := range kinds {
		if appended[i].Kind != kind {
			t.Errorf("appended[%d].Kind = %s, want %s", i, appended[i].Kind, kind)
		}
	}
}

func TestAsyncAppender_RetriesTransientFailure(t *testing.T) {
	store := &fakeTransitionStore{failFirst: 2}
	appender := NewAsyncAppender(store, nil, 16, 3, zerolog.Nop())
	appender.Start()

	if err := appender.Append(context.Background(), transitionAt(storage.KindClockIn, 0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	appender.Stop()

	if len(store.all()) != 1 {
		t.Errorf("appended %d transitions after retries, want 1", len(store.all()))
	}
}

func TestAsyncAppender_PermanentFailureRecordsEvent(t *testing.T) {
	store := &fakeTransitionStore{failAll: true}
	events := &syncEventStore{}
	appender := NewAsyncAppender(store, events, 16, 2, zerolog.Nop())
	appender.Start()

	if err := appender.Append(context.Background(), transitionAt(storage.KindClockIn, 0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	appender.Stop()

	recorded := events.all()
	if len(recorded) != 1 {
		t.Fatalf("recorded %d events, want 1", len(recorded))
	}
	if recorded[0].Type != "append_failure" {
		t.Errorf("event type = %s, want append_failure", recorded[0].Type)
	}
	if recorded[0].EmployeeID != "emp-001" {
		t.Errorf("event employee = %s, want emp-001", recorded[0].EmployeeID)
	}
}

func TestAsyncAppender_QueueFull(t *testing.T) {
	store := &fakeTransitionStore{}
	appender := NewAsyncAppender(store, nil, 1, 1, zerolog.Nop())
	// Not started: nothing drains the queue

	ctx := context.Background()
	if err := appender.Append(ctx, transitionAt(storage.KindClockIn, 0)); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}

	err := appender.Append(ctx, transitionAt(storage.KindClockOut, time.Minute))
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("second Append = %v, want ErrQueueFull", err)
	}

	appender.Start()
	appender.Stop()
}
