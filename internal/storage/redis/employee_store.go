package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TEC7337/stes/internal/storage"
	"github.com/redis/go-redis/v9"
)

type employeeStore struct {
	client *redis.Client
}

// Upsert creates or updates an employee and its name index
func (s *employeeStore) Upsert(ctx context.Context, employee storage.Employee) error {
	if employee.ID == "" {
		return fmt.Errorf("employee ID is required")
	}
	if employee.Name == "" {
		return fmt.Errorf("employee name is required")
	}

	now := time.Now().UTC()
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	employee.UpdatedAt = now

	encoding, err := json.Marshal(employee.Encoding)
	if err != nil {
		return fmt.Errorf("failed to encode face encoding: %w", err)
	}

	active := "false"
	if employee.Active {
		active = "true"
	}

	script := redis.NewScript(upsertEmployeeScript)
	keys := []string{
		fmt.Sprintf("stes:employee:%s", employee.ID),
		fmt.Sprintf("stes:employee:name:%s", employee.Name),
		"stes:employees",
	}
	args := []interface{}{
		employee.ID,
		employee.Name,
		employee.Email,
		employee.Department,
		string(encoding),
		active,
		employee.CreatedAt.Format(time.RFC3339Nano),
		employee.UpdatedAt.Format(time.RFC3339Nano),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Get retrieves an employee by ID
func (s *employeeStore) Get(ctx context.Context, id string) (*storage.Employee, error) {
	data, err := s.client.HGetAll(ctx, fmt.Sprintf("stes:employee:%s", id)).Result()
	if err != nil {
		return nil, err
	}
	return parseEmployee(data)
}

// GetByName retrieves an employee through the name index
func (s *employeeStore) GetByName(ctx context.Context, name string) (*storage.Employee, error) {
	id, err := s.client.Get(ctx, fmt.Sprintf("stes:employee:name:%s", name)).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// List returns all registered employees
func (s *employeeStore) List(ctx context.Context) ([]storage.Employee, error) {
	ids, err := s.client.SMembers(ctx, "stes:employees").Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.Employee{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, fmt.Sprintf("stes:employee:%s", id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	employees := make([]storage.Employee, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		employee, err := parseEmployee(data)
		if err == nil {
			employees = append(employees, *employee)
		}
	}

	return employees, nil
}

// ListActive returns employees eligible for recognition
func (s *employeeStore) ListActive(ctx context.Context) ([]storage.Employee, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]storage.Employee, 0, len(all))
	for _, e := range all {
		if e.Active {
			active = append(active, e)
		}
	}
	return active, nil
}

// Delete removes an employee and its indexes
func (s *employeeStore) Delete(ctx context.Context, id string) error {
	employeeKey := fmt.Sprintf("stes:employee:%s", id)

	// Look up the name for index cleanup
	name, err := s.client.HGet(ctx, employeeKey, "name").Result()
	if err == redis.Nil {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}

	if err := s.client.Del(ctx, employeeKey).Err(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, fmt.Sprintf("stes:employee:name:%s", name)).Err(); err != nil {
		return err
	}
	return s.client.SRem(ctx, "stes:employees", id).Err()
}
