package redis

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/TEC7337/stes/internal/storage"
)

func randomSuffix() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// recordID orders records chronologically when compared as strings.
func recordID(ts time.Time) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%020d-%s", ts.UnixNano(), suffix), nil
}

// parseEmployee converts a Redis hash to Employee
func parseEmployee(data map[string]string) (*storage.Employee, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	var encoding []float32
	if raw := data["encoding"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &encoding); err != nil {
			return nil, fmt.Errorf("failed to parse encoding: %w", err)
		}
	}

	active, err := strconv.ParseBool(data["active"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse active: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.Employee{
		ID:         data["id"],
		Name:       data["name"],
		Email:      data["email"],
		Department: data["department"],
		Encoding:   encoding,
		Active:     active,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

// parseTransition converts a Redis hash to Transition
func parseTransition(data map[string]string) (*storage.Transition, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	timestamp, err := time.Parse(time.RFC3339Nano, data["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return &storage.Transition{
		ID:         data["id"],
		EmployeeID: data["employee_id"],
		Kind:       storage.TransitionKind(data["kind"]),
		Timestamp:  timestamp,
		DayKey:     data["day_key"],
		Source:     data["source"],
	}, nil
}

// parseEvent converts a Redis hash to SystemEvent
func parseEvent(data map[string]string) (*storage.SystemEvent, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	timestamp, err := time.Parse(time.RFC3339Nano, data["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	var details map[string]string
	if raw := data["details"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &details); err != nil {
			return nil, fmt.Errorf("failed to parse details: %w", err)
		}
	}

	return &storage.SystemEvent{
		ID:         data["id"],
		Timestamp:  timestamp,
		Type:       data["type"],
		EmployeeID: data["employee_id"],
		Message:    data["message"],
		Details:    details,
	}, nil
}
