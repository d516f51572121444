package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Employees() EmployeeStore
	Transitions() TransitionStore
	Events() EventStore
}

// EmployeeStore manages registered employees.
// Registration is the only write path; the attendance engine reads only.
type EmployeeStore interface {
	Get(ctx context.Context, id string) (*Employee, error)
	GetByName(ctx context.Context, name string) (*Employee, error)
	List(ctx context.Context) ([]Employee, error)
	ListActive(ctx context.Context) ([]Employee, error)
	Upsert(ctx context.Context, employee Employee) error
	Delete(ctx context.Context, id string) error
}

// TransitionStore is the durable append-only log of attendance transitions.
// Append never updates or deletes an existing record; corrections happen
// through new transitions, not edits.
type TransitionStore interface {
	Append(ctx context.Context, transition Transition) error
	Query(ctx context.Context, filter TransitionFilter) ([]Transition, error)
	LatestForDay(ctx context.Context, employeeID, dayKey string) (*Transition, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// EventStore manages operational system events.
type EventStore interface {
	Add(ctx context.Context, event SystemEvent) error
	Query(ctx context.Context, filter EventFilter) ([]SystemEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
