package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/TEC7337/stes/internal/storage"
	"github.com/redis/go-redis/v9"
)

type transitionStore struct {
	client *redis.Client
}

// Append writes a transition record. Existing records are never updated.
func (s *transitionStore) Append(ctx context.Context, transition storage.Transition) error {
	if transition.EmployeeID == "" {
		return fmt.Errorf("transition employee ID is required")
	}
	if transition.Timestamp.IsZero() {
		return fmt.Errorf("transition timestamp is required")
	}

	if transition.ID == "" {
		id, err := recordID(transition.Timestamp)
		if err != nil {
			return err
		}
		transition.ID = id
	}

	script := redis.NewScript(appendTransitionScript)
	keys := []string{
		fmt.Sprintf("stes:transition:%s", transition.ID),
		fmt.Sprintf("stes:transitions:day:%s:%s", transition.EmployeeID, transition.DayKey),
		"stes:transitions:index",
	}
	args := []interface{}{
		transition.ID,
		transition.EmployeeID,
		string(transition.Kind),
		transition.Timestamp.Format(time.RFC3339Nano),
		transition.DayKey,
		transition.Source,
		transition.Timestamp.UnixNano(),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Query returns transitions matching the filter in chronological order
func (s *transitionStore) Query(ctx context.Context, filter storage.TransitionFilter) ([]storage.Transition, error) {
	min, max := "-inf", "+inf"
	if filter.StartTime != nil {
		min = strconv.FormatInt(filter.StartTime.UnixNano(), 10)
	}
	if filter.EndTime != nil {
		max = strconv.FormatInt(filter.EndTime.UnixNano(), 10)
	}

	ids, err := s.client.ZRangeByScore(ctx, "stes:transitions:index", &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.Transition{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, fmt.Sprintf("stes:transition:%s", id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	skipped := 0
	transitions := make([]storage.Transition, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		transition, err := parseTransition(data)
		if err != nil {
			continue
		}
		if !matchTransition(*transition, filter) {
			continue
		}

		if skipped < filter.Offset {
			skipped++
			continue
		}
		transitions = append(transitions, *transition)
		if filter.Limit > 0 && len(transitions) >= filter.Limit {
			break
		}
	}

	return transitions, nil
}

// LatestForDay returns the most recent transition for one employee-day
func (s *transitionStore) LatestForDay(ctx context.Context, employeeID, dayKey string) (*storage.Transition, error) {
	dayZSet := fmt.Sprintf("stes:transitions:day:%s:%s", employeeID, dayKey)

	ids, err := s.client.ZRevRange(ctx, dayZSet, 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, storage.ErrNotFound
	}

	data, err := s.client.HGetAll(ctx, fmt.Sprintf("stes:transition:%s", ids[0])).Result()
	if err != nil {
		return nil, err
	}
	return parseTransition(data)
}

// DeleteBefore removes transitions older than the cutoff
func (s *transitionStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := fmt.Sprintf("(%d", cutoff.UnixNano())

	ids, err := s.client.ZRangeByScore(ctx, "stes:transitions:index", &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		transitionKey := fmt.Sprintf("stes:transition:%s", id)

		// Need employee and day to clean up the per-day index
		data, err := s.client.HGetAll(ctx, transitionKey).Result()
		if err != nil {
			return deleted, err
		}

		if employeeID, ok := data["employee_id"]; ok {
			dayZSet := fmt.Sprintf("stes:transitions:day:%s:%s", employeeID, data["day_key"])
			if err := s.client.ZRem(ctx, dayZSet, id).Err(); err != nil {
				return deleted, err
			}
		}

		if err := s.client.Del(ctx, transitionKey).Err(); err != nil {
			return deleted, err
		}
		if err := s.client.ZRem(ctx, "stes:transitions:index", id).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}

	return deleted, nil
}

func matchTransition(t storage.Transition, filter storage.TransitionFilter) bool {
	if filter.EmployeeID != "" && t.EmployeeID != filter.EmployeeID {
		return false
	}
	if filter.DayKey != "" && t.DayKey != filter.DayKey {
		return false
	}
	if filter.Kind != "" && t.Kind != filter.Kind {
		return false
	}
	return true
}
