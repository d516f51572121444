package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/TEC7337/stes/internal/storage"
	"github.com/redis/go-redis/v9"
)

type eventStore struct {
	client *redis.Client
}

// Add writes a system event
func (s *eventStore) Add(ctx context.Context, event storage.SystemEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if event.ID == "" {
		id, err := recordID(event.Timestamp)
		if err != nil {
			return err
		}
		event.ID = id
	}

	details := ""
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details: %w", err)
		}
		details = string(raw)
	}

	script := redis.NewScript(addEventScript)
	keys := []string{
		fmt.Sprintf("stes:event:%s", event.ID),
		"stes:events:index",
	}
	args := []interface{}{
		event.ID,
		event.Timestamp.Format(time.RFC3339Nano),
		event.Type,
		event.EmployeeID,
		event.Message,
		details,
		event.Timestamp.UnixNano(),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Query returns events matching the filter in chronological order
func (s *eventStore) Query(ctx context.Context, filter storage.EventFilter) ([]storage.SystemEvent, error) {
	min, max := "-inf", "+inf"
	if filter.StartTime != nil {
		min = strconv.FormatInt(filter.StartTime.UnixNano(), 10)
	}
	if filter.EndTime != nil {
		max = strconv.FormatInt(filter.EndTime.UnixNano(), 10)
	}

	ids, err := s.client.ZRangeByScore(ctx, "stes:events:index", &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.SystemEvent{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, fmt.Sprintf("stes:event:%s", id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	skipped := 0
	events := make([]storage.SystemEvent, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		event, err := parseEvent(data)
		if err != nil {
			continue
		}
		if filter.EmployeeID != "" && event.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Type != "" && event.Type != filter.Type {
			continue
		}

		if skipped < filter.Offset {
			skipped++
			continue
		}
		events = append(events, *event)
		if filter.Limit > 0 && len(events) >= filter.Limit {
			break
		}
	}

	return events, nil
}

// DeleteBefore removes events older than the cutoff
func (s *eventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := fmt.Sprintf("(%d", cutoff.UnixNano())

	ids, err := s.client.ZRangeByScore(ctx, "stes:events:index", &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := s.client.Del(ctx, fmt.Sprintf("stes:event:%s", id)).Err(); err != nil {
			return deleted, err
		}
		if err := s.client.ZRem(ctx, "stes:events:index", id).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}

	return deleted, nil
}
