package bolt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/TEC7337/stes/internal/storage"
)

type transitionStore struct {
	db *bbolt.DB
}

func (s *transitionStore) Append(ctx context.Context, transition storage.Transition) error {
	if transition.Timestamp.IsZero() {
		return fmt.Errorf("transition timestamp is required")
	}
	if transition.EmployeeID == "" {
		return fmt.Errorf("transition employee id is required")
	}
	if transition.ID == "" {
		key, err := transitionKey(transition.EmployeeID, transition.DayKey, transition.Timestamp)
		if err != nil {
			return err
		}
		transition.ID = key
	}
	data, err := marshal(transition)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketTransitions))
		if bucket == nil {
			return fmt.Errorf("transition bucket missing")
		}
		// Append-only: an existing key is never overwritten.
		if bucket.Get([]byte(transition.ID)) != nil {
			return fmt.Errorf("transition %s already exists", transition.ID)
		}
		return bucket.Put([]byte(transition.ID), data)
	})
}

func (s *transitionStore) Query(ctx context.Context, filter storage.TransitionFilter) ([]storage.Transition, error) {
	transitions := make([]storage.Transition, 0)
	skipped := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketTransitions))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var transition storage.Transition
			if err := unmarshal(v, &transition); err != nil {
				return err
			}
			if !matchTransition(transition, filter) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			transitions = append(transitions, transition)
			if filter.Limit > 0 && len(transitions) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	return transitions, err
}

func (s *transitionStore) LatestForDay(ctx context.Context, employeeID, dayKey string) (*storage.Transition, error) {
	prefix := []byte(employeeID + "/" + dayKey + "/")
	var latest *storage.Transition
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketTransitions))
		if bucket == nil {
			return storage.ErrNotFound
		}
		c := bucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var transition storage.Transition
			if err := unmarshal(v, &transition); err != nil {
				return err
			}
			latest = &transition
		}
		if latest == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

func (s *transitionStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	return deleted, s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketTransitions))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var transition storage.Transition
			if err := unmarshal(v, &transition); err != nil {
				return err
			}
			if transition.Timestamp.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
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
	if filter.StartTime != nil && t.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && t.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}
