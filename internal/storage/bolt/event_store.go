package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/TEC7337/stes/internal/storage"
)

type eventStore struct {
	db *bbolt.DB
}

func (s *eventStore) Add(ctx context.Context, event storage.SystemEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		key, err := eventKey(event.Timestamp)
		if err != nil {
			return err
		}
		event.ID = key
	}
	data, err := marshal(event)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return fmt.Errorf("event bucket missing")
		}
		return bucket.Put([]byte(event.ID), data)
	})
}

func (s *eventStore) Query(ctx context.Context, filter storage.EventFilter) ([]storage.SystemEvent, error) {
	events := make([]storage.SystemEvent, 0)
	skipped := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var event storage.SystemEvent
			if err := unmarshal(v, &event); err != nil {
				return err
			}
			if !matchEvent(event, filter) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			events = append(events, event)
			if filter.Limit > 0 && len(events) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	return events, err
}

func (s *eventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	return deleted, s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var event storage.SystemEvent
			if err := unmarshal(v, &event); err != nil {
				return err
			}
			if event.Timestamp.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
}

func matchEvent(e storage.SystemEvent, filter storage.EventFilter) bool {
	if filter.EmployeeID != "" && e.EmployeeID != filter.EmployeeID {
		return false
	}
	if filter.Type != "" && e.Type != filter.Type {
		return false
	}
	if filter.StartTime != nil && e.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && e.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}
