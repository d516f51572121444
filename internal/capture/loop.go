package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/engine"
	"github.com/TEC7337/stes/internal/matcher"
	"github.com/TEC7337/stes/internal/metrics"
	"github.com/TEC7337/stes/internal/storage"
)

// DefaultSampleInterval bounds how often the loop pulls a frame.
const DefaultSampleInterval = 500 * time.Millisecond

// Matcher resolves a face encoding to a registered identity.
type Matcher interface {
	Match(encoding []float32) (*matcher.Candidate, bool)
}

// Decider is the attendance decision entry point.
type Decider interface {
	Decide(ctx context.Context, identity string, observedAt time.Time) (engine.Decision, error)
}

// Stats is a snapshot of the loop's running counters.
type Stats struct {
	FramesProcessed   uint64 `json:"frames_processed"`
	FacesDetected     uint64 `json:"faces_detected"`
	Recognitions      uint64 `json:"recognitions"`
	UnknownFaces      uint64 `json:"unknown_faces"`
	BelowConfidence   uint64 `json:"below_confidence"`
	ClockIns          uint64 `json:"clock_ins"`
	ClockOuts         uint64 `json:"clock_outs"`
	DuplicatesBlocked uint64 `json:"duplicates_blocked"`
	Errors            uint64 `json:"errors"`
}

type counters struct {
	framesProcessed   atomic.Uint64
	facesDetected     atomic.Uint64
	recognitions      atomic.Uint64
	unknownFaces      atomic.Uint64
	belowConfidence   atomic.Uint64
	clockIns          atomic.Uint64
	clockOuts         atomic.Uint64
	duplicatesBlocked atomic.Uint64
	errors            atomic.Uint64
}

// LoopConfig holds recognition loop tuning parameters.
type LoopConfig struct {
	// SampleInterval is the minimum time between processed frames.
	SampleInterval time.Duration

	// MinConfidence drops matched candidates below this confidence before
	// the engine is invoked. Separate from the matcher tolerance.
	MinConfidence float64
}

// Loop pulls frames from a source, matches faces, and feeds accepted
// identities into the attendance engine.
type Loop struct {
	source  Source
	matcher Matcher
	decider Decider
	events  storage.EventStore
	cfg     LoopConfig
	logger  zerolog.Logger
	stats   counters
}

// NewLoop creates a recognition loop. The event store may be nil to skip
// operational event logging.
func NewLoop(source Source, m Matcher, decider Decider, events storage.EventStore, cfg LoopConfig, logger zerolog.Logger) *Loop {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}

	return &Loop{
		source:  source,
		matcher: m,
		decider: decider,
		events:  events,
		cfg:     cfg,
		logger:  logger.With().Str("component", "recognition-loop").Logger(),
	}
}

// Run processes frames until the context is canceled or the source is
// exhausted. Frames are sampled at most once per SampleInterval.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().
		Dur("sample_interval", l.cfg.SampleInterval).
		Float64("min_confidence", l.cfg.MinConfidence).
		Msg("Recognition loop started")

	ticker := time.NewTicker(l.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Recognition loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := l.source.Next(ctx)
		if errors.Is(err, ErrSourceExhausted) {
			l.logger.Info().Msg("Frame source exhausted, recognition loop stopped")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.stats.errors.Add(1)
			l.logger.Error().Err(err).Msg("Failed to read frame")
			continue
		}

		l.processFrame(ctx, frame)
	}
}

func (l *Loop) processFrame(ctx context.Context, frame *Frame) {
	l.stats.framesProcessed.Add(1)
	metrics.FramesProcessed.Inc()

	observedAt := frame.CapturedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	for _, encoding := range frame.Encodings {
		l.stats.facesDetected.Add(1)

		candidate, ok := l.matcher.Match(encoding)
		if !ok {
			l.stats.unknownFaces.Add(1)
			metrics.RecognitionsTotal.WithLabelValues("unknown").Inc()
			l.logger.Debug().Time("observed_at", observedAt).Msg("Unknown face, skipping")
			continue
		}

		if candidate.Confidence < l.cfg.MinConfidence {
			l.stats.belowConfidence.Add(1)
			metrics.RecognitionsTotal.WithLabelValues("below_confidence").Inc()
			l.logger.Debug().
				Str("employee_id", candidate.EmployeeID).
				Float64("confidence", candidate.Confidence).
				Msg("Match below confidence threshold, skipping")
			continue
		}

		l.stats.recognitions.Add(1)
		metrics.RecognitionsTotal.WithLabelValues("matched").Inc()
		l.handleRecognition(ctx, candidate, observedAt)
	}
}

func (l *Loop) handleRecognition(ctx context.Context, candidate *matcher.Candidate, observedAt time.Time) {
	decision, err := l.decider.Decide(ctx, candidate.EmployeeID, observedAt)
	if err != nil && !decision.Emitted() {
		l.stats.errors.Add(1)
		l.logger.Error().Err(err).
			Str("employee_id", candidate.EmployeeID).
			Msg("Attendance decision failed")
		return
	}
	if err != nil {
		// Decision emitted but persistence failed; the writer logs and
		// retries, the decision itself stands.
		l.logger.Warn().Err(err).
			Str("employee_id", candidate.EmployeeID).
			Msg("Transition emitted but append failed")
	}

	if decision.Suppressed {
		if decision.Reason == engine.SuppressCooldownActive {
			l.stats.duplicatesBlocked.Add(1)
		}
		return
	}

	transition := decision.Transition
	verb := "clocked in"
	eventType := "clock_in"
	if transition.Kind == storage.KindClockOut {
		verb = "clocked out"
		eventType = "clock_out"
		l.stats.clockOuts.Add(1)
	} else {
		l.stats.clockIns.Add(1)
	}

	l.logger.Info().
		Str("employee_id", candidate.EmployeeID).
		Str("name", candidate.Name).
		Str("kind", string(transition.Kind)).
		Float64("confidence", candidate.Confidence).
		Time("observed_at", observedAt).
		Msg("Attendance transition")

	if l.events != nil {
		event := storage.SystemEvent{
			Type:       eventType,
			EmployeeID: candidate.EmployeeID,
			Timestamp:  observedAt,
			Message:    fmt.Sprintf("%s %s", candidate.Name, verb),
			Details: map[string]string{
				"confidence": fmt.Sprintf("%.3f", candidate.Confidence),
			},
		}
		if err := l.events.Add(ctx, event); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to record system event")
		}
	}
}

// Stats returns a snapshot of the running counters.
func (l *Loop) Stats() Stats {
	return Stats{
		FramesProcessed:   l.stats.framesProcessed.Load(),
		FacesDetected:     l.stats.facesDetected.Load(),
		Recognitions:      l.stats.recognitions.Load(),
		UnknownFaces:      l.stats.unknownFaces.Load(),
		BelowConfidence:   l.stats.belowConfidence.Load(),
		ClockIns:          l.stats.clockIns.Load(),
		ClockOuts:         l.stats.clockOuts.Load(),
		DuplicatesBlocked: l.stats.duplicatesBlocked.Load(),
		Errors:            l.stats.errors.Load(),
	}
}
