package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/metrics"
	"github.com/TEC7337/stes/internal/storage"
)

const (
	// DefaultCooldown is the minimum gap between committed transitions
	// when none is configured.
	DefaultCooldown = 10 * time.Minute

	// DefaultClockSkewTolerance bounds how far ahead of the engine clock
	// an observation may be timestamped.
	DefaultClockSkewTolerance = 5 * time.Minute

	// DefaultMaxTrackedIdentities bounds the in-memory state cache.
	DefaultMaxTrackedIdentities = 10000

	lockShards = 64
)

// attendanceState is the per-identity record the engine keeps between
// decisions. lastTime survives a day rollover so the cooldown invariant
// holds across the boundary even though alternation resets.
type attendanceState struct {
	lastKind storage.TransitionKind // zero value = no transition yet
	lastTime time.Time
	dayKey   string
}

// Engine is the single authority deciding whether a recognition
// observation produces a durable attendance transition.
//
// Decisions for the same identity are serialized by a sharded lock;
// decisions for different identities do not block each other (modulo
// shard collisions).
type Engine struct {
	registry Registry
	appender Appender

	cooldown    time.Duration
	skew        time.Duration
	dayBoundary DayBoundaryPolicy

	clock  Clock
	dayKey DayKeyFunc

	states *lru.Cache[string, *attendanceState]
	locks  [lockShards]sync.Mutex

	logger zerolog.Logger
}

// New creates an attendance engine. The registry is required; the
// appender may be nil for dry-run use (check command, tests).
func New(registry Registry, appender Appender, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: registry is required")
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("engine: negative cooldown: %s", cfg.Cooldown)
	}
	if cfg.ClockSkewTolerance == 0 {
		cfg.ClockSkewTolerance = DefaultClockSkewTolerance
	}
	if cfg.MaxTrackedIdentities == 0 {
		cfg.MaxTrackedIdentities = DefaultMaxTrackedIdentities
	}
	if cfg.DayBoundary == "" {
		cfg.DayBoundary = DayBoundaryReset
	}

	states, err := lru.New[string, *attendanceState](cfg.MaxTrackedIdentities)
	if err != nil {
		return nil, fmt.Errorf("engine: state cache: %w", err)
	}

	return &Engine{
		registry:    registry,
		appender:    appender,
		cooldown:    cfg.Cooldown,
		skew:        cfg.ClockSkewTolerance,
		dayBoundary: cfg.DayBoundary,
		clock:       RealClock{},
		dayKey:      LocalDayKey,
		states:      states,
		logger:      logger.With().Str("component", "engine").Logger(),
	}, nil
}

// SetClock sets the clock used for timestamp validation (for testing).
func (e *Engine) SetClock(clock Clock) {
	e.clock = clock
}

// SetDayKeyFunc sets the day-key resolver (for testing).
func (e *Engine) SetDayKeyFunc(fn DayKeyFunc) {
	e.dayKey = fn
}

// TrackedIdentities returns the number of identities with cached state.
func (e *Engine) TrackedIdentities() int {
	return e.states.Len()
}

// Prime seeds the in-memory state for an identity from a persisted
// transition. Used to rebuild cooldown and alternation state after a
// restart; it never overwrites newer in-memory state.
func (e *Engine) Prime(identity string, kind storage.TransitionKind, at time.Time, dayKey string) {
	lock := &e.locks[shardFor(identity)]
	lock.Lock()
	defer lock.Unlock()

	if state, ok := e.states.Get(identity); ok && !state.lastTime.Before(at) {
		return
	}

	e.states.Add(identity, &attendanceState{lastKind: kind, lastTime: at, dayKey: dayKey})
	metrics.TrackedIdentities.Set(float64(e.states.Len()))
}

// Decide evaluates a single recognition observation.
//
// On success it returns either a suppression (no state change, no
// append) or an emitted transition. The in-memory state commit happens
// before the appender is invoked: if the append fails, the returned
// error is non-nil but the Decision still carries the emitted
// transition, and the caller must retry persistence without calling
// Decide again.
func (e *Engine) Decide(ctx context.Context, identity string, observedAt time.Time) (Decision, error) {
	if identity == "" {
		metrics.DecideErrors.WithLabelValues("unknown_identity").Inc()
		return Decision{}, fmt.Errorf("empty identity: %w", ErrUnknownIdentity)
	}

	if observedAt.Unix() < 0 {
		metrics.DecideErrors.WithLabelValues("invalid_timestamp").Inc()
		return Decision{}, fmt.Errorf("observation predates epoch (%s): %w", observedAt, ErrInvalidTimestamp)
	}
	if ahead := observedAt.Sub(e.clock.Now()); ahead > e.skew {
		metrics.DecideErrors.WithLabelValues("invalid_timestamp").Inc()
		return Decision{}, fmt.Errorf("observation %s ahead of clock exceeds skew tolerance %s: %w", ahead, e.skew, ErrInvalidTimestamp)
	}

	known, err := e.registry.Exists(ctx, identity)
	if err != nil {
		metrics.DecideErrors.WithLabelValues("registry").Inc()
		return Decision{}, fmt.Errorf("registry lookup for %s: %w", identity, err)
	}
	if !known {
		metrics.DecideErrors.WithLabelValues("unknown_identity").Inc()
		return Decision{}, fmt.Errorf("identity %s: %w", identity, ErrUnknownIdentity)
	}

	lock := &e.locks[shardFor(identity)]
	lock.Lock()
	defer lock.Unlock()

	day := e.dayKey(observedAt)

	state, tracked := e.states.Get(identity)

	var lastKind storage.TransitionKind
	var lastTime time.Time
	if tracked {
		lastTime = state.lastTime
		switch {
		case state.dayKey == day:
			lastKind = state.lastKind
		case e.dayBoundary == DayBoundaryCarryOver && state.lastKind == storage.KindClockIn:
			// Unclosed session carries over: the new day owes a clock-out.
			lastKind = state.lastKind
		default:
			// Fresh day: alternation resets, clock-in eligible.
			lastKind = ""
		}
	}

	if !lastTime.IsZero() {
		delta := observedAt.Sub(lastTime)
		if delta < 0 && delta < -e.cooldown {
			// Older than the last committed transition and outside the
			// cooldown window. Committing it would reorder the stream.
			e.logSuppressed(identity, observedAt, SuppressNoStateChange)
			return Decision{Suppressed: true, Reason: SuppressNoStateChange}, nil
		}
		if delta < e.cooldown {
			e.logSuppressed(identity, observedAt, SuppressCooldownActive)
			return Decision{Suppressed: true, Reason: SuppressCooldownActive}, nil
		}
	}

	next := storage.KindClockIn
	if lastKind == storage.KindClockIn {
		next = storage.KindClockOut
	}

	transition := storage.Transition{
		EmployeeID: identity,
		Kind:       next,
		Timestamp:  observedAt,
		DayKey:     day,
	}

	// Commit state before handing the transition to the appender, so the
	// next decide call sees consistent state even if the append is still
	// in flight.
	if tracked {
		state.lastKind = next
		state.lastTime = observedAt
		state.dayKey = day
	} else {
		e.states.Add(identity, &attendanceState{lastKind: next, lastTime: observedAt, dayKey: day})
	}

	metrics.TransitionsTotal.WithLabelValues(string(next)).Inc()
	metrics.TrackedIdentities.Set(float64(e.states.Len()))

	e.logger.Info().
		Str("employee_id", identity).
		Str("kind", string(next)).
		Time("observed_at", observedAt).
		Str("day", day).
		Msg("Attendance transition committed")

	if e.appender != nil {
		if err := e.appender.Append(ctx, transition); err != nil {
			return Decision{Transition: &transition}, fmt.Errorf("append transition for %s: %w", identity, err)
		}
	}

	return Decision{Transition: &transition}, nil
}

func (e *Engine) logSuppressed(identity string, observedAt time.Time, reason SuppressReason) {
	metrics.SuppressedTotal.WithLabelValues(string(reason)).Inc()
	e.logger.Debug().
		Str("employee_id", identity).
		Time("observed_at", observedAt).
		Str("reason", string(reason)).
		Msg("Observation suppressed")
}

func shardFor(identity string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return h.Sum32() % lockShards
}
