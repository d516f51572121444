package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TransitionKind identifies the direction of a committed attendance transition.
type TransitionKind string

const (
	KindClockIn  TransitionKind = "CLOCK_IN"
	KindClockOut TransitionKind = "CLOCK_OUT"
)

// UnmarshalJSON implements json.Unmarshaler to normalize the kind to uppercase.
func (k *TransitionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := TransitionKind(strings.ToUpper(s))

	switch normalized {
	case KindClockIn, KindClockOut:
		*k = normalized
		return nil
	default:
		return fmt.Errorf("invalid transition kind: %s (must be CLOCK_IN or CLOCK_OUT)", s)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (k TransitionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// Employee holds a registered identity and its face encoding.
// Created at registration time; the attendance engine never mutates it.
type Employee struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Department string    `json:"department,omitempty"`
	Encoding   []float32 `json:"encoding"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Transition is a committed clock-in or clock-out record.
// Immutable once appended.
type Transition struct {
	ID         string         `json:"id"`
	EmployeeID string         `json:"employee_id"`
	Kind       TransitionKind `json:"kind"`
	Timestamp  time.Time      `json:"timestamp"`
	DayKey     string         `json:"day_key"`
	Source     string         `json:"source,omitempty"`
}

// SystemEvent is an operational log entry (clock-in/out, errors, sweeps).
type SystemEvent struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Type       string            `json:"type"`
	EmployeeID string            `json:"employee_id,omitempty"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

// TransitionFilter defines criteria for querying transitions.
type TransitionFilter struct {
	EmployeeID string
	DayKey     string
	Kind       TransitionKind
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// EventFilter defines criteria for querying system events.
type EventFilter struct {
	EmployeeID string
	Type       string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}
