package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/TEC7337/stes/internal/storage"
)

type employeeStore struct {
	db *bbolt.DB
}

func (s *employeeStore) Get(ctx context.Context, id string) (*storage.Employee, error) {
	return getBucketValue[storage.Employee](ctx, s.db, bucketEmployees, id)
}

func (s *employeeStore) GetByName(ctx context.Context, name string) (*storage.Employee, error) {
	var id string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEmployeeNames))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(name))
		if value == nil {
			return storage.ErrNotFound
		}
		id = string(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *employeeStore) List(ctx context.Context) ([]storage.Employee, error) {
	return listBucket[storage.Employee](ctx, s.db, bucketEmployees)
}

func (s *employeeStore) ListActive(ctx context.Context) ([]storage.Employee, error) {
	employees, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]storage.Employee, 0, len(employees))
	for _, employee := range employees {
		if employee.Active {
			active = append(active, employee)
		}
	}
	return active, nil
}

func (s *employeeStore) Upsert(ctx context.Context, employee storage.Employee) error {
	if employee.ID == "" {
		return fmt.Errorf("employee id is required")
	}
	data, err := marshal(employee)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEmployees))
		if b == nil {
			return fmt.Errorf("employee bucket missing")
		}

		// Drop a stale name index entry if the employee was renamed.
		names := tx.Bucket([]byte(bucketEmployeeNames))
		if names == nil {
			return fmt.Errorf("employee name index missing")
		}
		if prev := b.Get([]byte(employee.ID)); prev != nil {
			var existing storage.Employee
			if err := unmarshal(prev, &existing); err != nil {
				return err
			}
			if existing.Name != employee.Name {
				if err := names.Delete([]byte(existing.Name)); err != nil {
					return err
				}
			}
		}

		if err := b.Put([]byte(employee.ID), data); err != nil {
			return err
		}
		return names.Put([]byte(employee.Name), []byte(employee.ID))
	})
}

func (s *employeeStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEmployees))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(id))
		if value == nil {
			return storage.ErrNotFound
		}
		var employee storage.Employee
		if err := unmarshal(value, &employee); err != nil {
			return err
		}
		if names := tx.Bucket([]byte(bucketEmployeeNames)); names != nil {
			if err := names.Delete([]byte(employee.Name)); err != nil {
				return err
			}
		}
		return b.Delete([]byte(id))
	})
}
