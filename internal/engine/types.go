package engine

import (
	"context"
	"errors"
	"time"

	"github.com/TEC7337/stes/internal/storage"
)

// SuppressReason explains why an observation produced no transition.
type SuppressReason string

const (
	// SuppressCooldownActive: the observation fell inside the cooldown
	// window after the last committed transition. This is the expected
	// duplicate-prevention outcome, not a failure.
	SuppressCooldownActive SuppressReason = "COOLDOWN_ACTIVE"

	// SuppressNoStateChange: a stale observation older than the last
	// committed transition that escaped the cooldown check. Committing it
	// would reorder the identity's transition stream.
	SuppressNoStateChange SuppressReason = "NO_STATE_CHANGE"
)

var (
	// ErrUnknownIdentity is returned when the identity key is not
	// registered. The engine never creates identities.
	ErrUnknownIdentity = errors.New("engine: unknown identity")

	// ErrInvalidTimestamp is returned for observations before the Unix
	// epoch or further ahead of the engine clock than the configured
	// skew tolerance.
	ErrInvalidTimestamp = errors.New("engine: invalid timestamp")
)

// Decision is the outcome of a single decide call: either a suppression
// with a reason, or an emitted transition.
type Decision struct {
	Suppressed bool
	Reason     SuppressReason
	Transition *storage.Transition
}

// Emitted reports whether the decision produced a transition.
func (d Decision) Emitted() bool {
	return d.Transition != nil
}

// Registry validates that an identity key is registered.
// Implemented by the employee store (through a cache).
type Registry interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Appender receives emitted transitions for durable storage. May be
// asynchronous; the engine's own state is committed before Append is
// called and does not depend on its result.
type Appender interface {
	Append(ctx context.Context, transition storage.Transition) error
}

// Config holds engine tuning parameters.
type Config struct {
	// Cooldown is the minimum time between two committed transitions for
	// the same identity. Zero disables duplicate suppression.
	Cooldown time.Duration

	// DayBoundary selects what happens to an unclosed session at the day
	// boundary. Defaults to DayBoundaryReset.
	DayBoundary DayBoundaryPolicy

	// ClockSkewTolerance bounds how far ahead of the engine clock an
	// observation timestamp may be before it is rejected.
	ClockSkewTolerance time.Duration

	// MaxTrackedIdentities bounds the in-memory per-identity state cache.
	MaxTrackedIdentities int
}
