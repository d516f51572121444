package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// RetentionSweeper prunes transitions and system events past the retention
// window once per day.
type RetentionSweeper struct {
	store         Store
	retentionDays int
	sweepTime     time.Time // Time of day to sweep (only hour and minute are used)
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewRetentionSweeper creates a new retention sweeper
func NewRetentionSweeper(store Store, retentionDays int, sweepTime string, logger zerolog.Logger) (*RetentionSweeper, error) {
	// Parse sweep time (HH:MM format)
	parsedTime, err := time.Parse("15:04", sweepTime)
	if err != nil {
		return nil, err
	}

	rs := &RetentionSweeper{
		store:         store,
		retentionDays: retentionDays,
		sweepTime:     parsedTime,
		logger:        logger.With().Str("component", "retention-sweeper").Logger(),
		stopChan:      make(chan struct{}),
	}

	return rs, nil
}

// Start begins the sweeper loop
func (rs *RetentionSweeper) Start() {
	if rs.retentionDays <= 0 {
		rs.logger.Info().Msg("Retention disabled, sweeper not started")
		return
	}

	go rs.run()
	rs.logger.Info().
		Str("sweep_time", rs.sweepTime.Format("15:04")).
		Int("retention_days", rs.retentionDays).
		Msg("Retention sweeper started")
}

// Stop stops the sweeper
func (rs *RetentionSweeper) Stop() {
	close(rs.stopChan)
	rs.logger.Info().Msg("Retention sweeper stopped")
}

// run is the main sweeper loop
func (rs *RetentionSweeper) run() {
	for {
		nextSweep := rs.calculateNextSweep()
		waitDuration := time.Until(nextSweep)

		rs.logger.Info().
			Time("next_sweep", nextSweep).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next retention sweep")

		// Wait until sweep time or stop signal
		select {
		case <-time.After(waitDuration):
			rs.Sweep(context.Background())
		case <-rs.stopChan:
			return
		}
	}
}

// calculateNextSweep calculates the next sweep time
func (rs *RetentionSweeper) calculateNextSweep() time.Time {
	now := time.Now()

	todaySweep := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.sweepTime.Hour(), rs.sweepTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already passed today's sweep time, schedule for tomorrow
	if now.After(todaySweep) {
		return todaySweep.AddDate(0, 0, 1)
	}

	return todaySweep
}

// Sweep prunes records older than the retention window
func (rs *RetentionSweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -rs.retentionDays)

	rs.logger.Info().
		Time("cutoff", cutoff).
		Msg("Performing retention sweep")

	transitionsDeleted, err := rs.store.Transitions().DeleteBefore(ctx, cutoff)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Failed to prune old transitions")
		return
	}

	eventsDeleted, err := rs.store.Events().DeleteBefore(ctx, cutoff)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Failed to prune old system events")
		return
	}

	rs.logger.Info().
		Int("transitions_deleted", transitionsDeleted).
		Int("events_deleted", eventsDeleted).
		Msg("Retention sweep complete")

	if transitionsDeleted > 0 || eventsDeleted > 0 {
		event := SystemEvent{
			Type:    "retention_sweep",
			Message: "pruned records past retention window",
			Details: map[string]string{
				"transitions_deleted": strconv.Itoa(transitionsDeleted),
				"events_deleted":      strconv.Itoa(eventsDeleted),
			},
		}
		if err := rs.store.Events().Add(ctx, event); err != nil {
			rs.logger.Warn().Err(err).Msg("Failed to record sweep event")
		}
	}
}
