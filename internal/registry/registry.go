// Package registry answers identity-existence checks for the attendance
// engine, caching lookups so the hot decision path rarely touches storage.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/storage"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 30 * time.Second
)

// Registry resolves whether an identity is registered and active.
type Registry struct {
	employees storage.EmployeeStore
	cache     *expirable.LRU[string, bool]
	logger    zerolog.Logger
}

// New creates a registry backed by the employee store. Lookup results are
// cached with a short TTL so deactivations take effect within seconds.
func New(employees storage.EmployeeStore, logger zerolog.Logger) *Registry {
	return &Registry{
		employees: employees,
		cache:     expirable.NewLRU[string, bool](defaultCacheSize, nil, defaultCacheTTL),
		logger:    logger.With().Str("component", "registry").Logger(),
	}
}

// Exists reports whether the identity is registered and active.
func (r *Registry) Exists(ctx context.Context, employeeID string) (bool, error) {
	if known, ok := r.cache.Get(employeeID); ok {
		return known, nil
	}

	employee, err := r.employees.Get(ctx, employeeID)
	if errors.Is(err, storage.ErrNotFound) {
		r.cache.Add(employeeID, false)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	active := employee.Active
	r.cache.Add(employeeID, active)
	return active, nil
}

// Invalidate drops a cached lookup, forcing the next Exists to hit storage.
func (r *Registry) Invalidate(employeeID string) {
	r.cache.Remove(employeeID)
}

// Purge drops all cached lookups. Called after bulk registration changes.
func (r *Registry) Purge() {
	r.cache.Purge()
	r.logger.Debug().Msg("Registry cache purged")
}
