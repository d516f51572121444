package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/metrics"
	"github.com/TEC7337/stes/internal/storage"
)

const (
	defaultQueueSize     = 256
	defaultAppendRetries = 3
	retryBackoff         = 250 * time.Millisecond
)

// ErrQueueFull is returned by Append when the write queue is saturated.
// Distinct from a decision error: the transition was decided and committed
// in memory, only its persistence is pending.
var ErrQueueFull = errors.New("capture: append queue full")

// AsyncAppender persists emitted transitions through a single consumer
// goroutine, preserving per-identity append order.
type AsyncAppender struct {
	transitions storage.TransitionStore
	events      storage.EventStore
	queue       chan storage.Transition
	retries     int
	logger      zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewAsyncAppender creates an appender over the transition store. The
// event store may be nil to skip failure event logging.
func NewAsyncAppender(transitions storage.TransitionStore, events storage.EventStore, queueSize, retries int, logger zerolog.Logger) *AsyncAppender {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if retries <= 0 {
		retries = defaultAppendRetries
	}

	return &AsyncAppender{
		transitions: transitions,
		events:      events,
		queue:       make(chan storage.Transition, queueSize),
		retries:     retries,
		logger:      logger.With().Str("component", "transition-writer").Logger(),
		done:        make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (a *AsyncAppender) Start() {
	a.startOnce.Do(func() {
		go a.run()
		a.logger.Info().Int("queue_size", cap(a.queue)).Msg("Transition writer started")
	})
}

// Stop closes the queue and waits for the backlog to drain.
func (a *AsyncAppender) Stop() {
	a.stopOnce.Do(func() {
		close(a.queue)
		<-a.done
		a.logger.Info().Msg("Transition writer stopped")
	})
}

// Append enqueues a transition for persistence. Returns ErrQueueFull when
// the queue is saturated rather than blocking the decision path.
func (a *AsyncAppender) Append(_ context.Context, transition storage.Transition) error {
	select {
	case a.queue <- transition:
		metrics.AppendQueueDepth.Set(float64(len(a.queue)))
		return nil
	default:
		metrics.AppendErrors.Inc()
		return fmt.Errorf("%w: %d pending", ErrQueueFull, len(a.queue))
	}
}

func (a *AsyncAppender) run() {
	defer close(a.done)

	for transition := range a.queue {
		metrics.AppendQueueDepth.Set(float64(len(a.queue)))
		a.persist(transition)
	}
}

func (a *AsyncAppender) persist(transition storage.Transition) {
	ctx := context.Background()

	var err error
	for attempt := 0; attempt < a.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff)
		}
		if err = a.transitions.Append(ctx, transition); err == nil {
			return
		}
		a.logger.Warn().Err(err).
			Str("employee_id", transition.EmployeeID).
			Int("attempt", attempt+1).
			Msg("Transition append failed, retrying")
	}

	metrics.AppendErrors.Inc()
	a.logger.Error().Err(err).
		Str("employee_id", transition.EmployeeID).
		Str("kind", string(transition.Kind)).
		Time("timestamp", transition.Timestamp).
		Msg("Transition append failed permanently")

	if a.events != nil {
		event := storage.SystemEvent{
			Type:       "append_failure",
			EmployeeID: transition.EmployeeID,
			Message:    "failed to persist attendance transition",
			Details: map[string]string{
				"kind":      string(transition.Kind),
				"timestamp": transition.Timestamp.Format(time.RFC3339),
				"error":     err.Error(),
			},
		}
		if evErr := a.events.Add(ctx, event); evErr != nil {
			a.logger.Warn().Err(evErr).Msg("Failed to record append failure event")
		}
	}
}
