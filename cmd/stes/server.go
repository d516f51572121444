package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TEC7337/stes/internal/capture"
	"github.com/TEC7337/stes/internal/config"
	"github.com/TEC7337/stes/internal/dashboard"
	"github.com/TEC7337/stes/internal/engine"
	"github.com/TEC7337/stes/internal/matcher"
	"github.com/TEC7337/stes/internal/metrics"
	"github.com/TEC7337/stes/internal/registry"
	"github.com/TEC7337/stes/internal/report"
	"github.com/TEC7337/stes/internal/storage"
	"github.com/TEC7337/stes/internal/storage/bolt"
	"github.com/TEC7337/stes/internal/storage/redis"
	"github.com/TEC7337/stes/internal/systemd"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start STES server",
	Long:  `Start the STES server with the recognition loop, dashboard API, and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting STES")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to get systemd listeners")
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Str("redis_host", cfg.Storage.Redis.Host).
		Msg("Storage initialized")

	// Initialize Employee Registry
	employeeRegistry := registry.New(store.Employees(), logger)

	// Initialize Face Matcher and build the index from the roster
	faceMatcher := matcher.New(store.Employees(), cfg.Matcher.Tolerance, logger)
	if err := faceMatcher.Reload(cmd.Context()); err != nil {
		return fmt.Errorf("failed to build matcher index: %w", err)
	}

	logger.Info().
		Int("indexed", faceMatcher.Size()).
		Float64("tolerance", cfg.Matcher.Tolerance).
		Msg("Face Matcher initialized")

	// Initialize the async transition appender
	appender := capture.NewAsyncAppender(
		store.Transitions(),
		store.Events(),
		cfg.Capture.QueueSize,
		cfg.Capture.AppendRetries,
		logger,
	)
	appender.Start()

	// Initialize Attendance Engine
	dayBoundary, err := engine.ParseDayBoundaryPolicy(cfg.Engine.DayBoundaryPolicy)
	if err != nil {
		return fmt.Errorf("failed to initialize Attendance Engine: %w", err)
	}

	attendanceEngine, err := engine.New(
		employeeRegistry,
		appender,
		engine.Config{
			Cooldown:             parseDuration(cfg.Engine.Cooldown, engine.DefaultCooldown),
			DayBoundary:          dayBoundary,
			ClockSkewTolerance:   parseDuration(cfg.Engine.ClockSkewTolerance, engine.DefaultClockSkewTolerance),
			MaxTrackedIdentities: cfg.Engine.MaxTrackedIdentities,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize Attendance Engine: %w", err)
	}

	// Rebuild per-identity state from today's persisted transitions so a
	// restart does not reopen the cooldown window or flip alternation.
	primeEngine(cmd.Context(), store, attendanceEngine, logger)

	logger.Info().Msg("Attendance Engine initialized")

	// Initialize Retention Sweeper
	retentionSweeper, err := storage.NewRetentionSweeper(
		store,
		cfg.Storage.RetentionDays,
		cfg.Engine.DailyResetTime,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize Retention Sweeper: %w", err)
	}

	retentionSweeper.Start()

	// Initialize the recognition loop when a frame source is configured
	var recognitionLoop *capture.Loop
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	loopDone := make(chan struct{})

	if cfg.Capture.Source == "replay" {
		source, err := capture.OpenReplay(cfg.Capture.ReplayFile)
		if err != nil {
			return fmt.Errorf("failed to open replay source: %w", err)
		}
		defer source.Close()

		recognitionLoop = capture.NewLoop(
			source,
			faceMatcher,
			attendanceEngine,
			store.Events(),
			capture.LoopConfig{
				SampleInterval: parseDuration(cfg.Capture.SampleInterval, capture.DefaultSampleInterval),
				MinConfidence:  cfg.Matcher.MinConfidence,
			},
			logger,
		)

		go func() {
			defer close(loopDone)
			if err := recognitionLoop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Recognition loop stopped with error")
				return
			}
			logger.Info().Msg("Recognition loop finished")
		}()

		logger.Info().
			Str("source", cfg.Capture.Source).
			Str("replay_file", cfg.Capture.ReplayFile).
			Msg("Recognition loop started")
	} else {
		close(loopDone)
		logger.Info().Msg("No frame source configured, recognition loop disabled")
	}

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().
		Str("addr", metricsAddr).
		Msg("Metrics Server started")

	// Initialize Dashboard Server (read-only API)
	var dashboardServer *dashboard.Server
	if cfg.Dashboard.Enabled {
		reporter := report.NewReporter(store, logger)

		var stats dashboard.StatsProvider
		if recognitionLoop != nil {
			stats = recognitionLoop
		}

		dashboardAddr := fmt.Sprintf("%s:%d", cfg.Dashboard.BindAddress, cfg.Dashboard.Port)
		dashboardServer = dashboard.NewServer(dashboardAddr, store, reporter, stats, logger)

		if sdListeners.Activated && sdListeners.Dashboard != nil {
			dashboardServer.SetListener(sdListeners.Dashboard)
		}

		if err := dashboardServer.Start(); err != nil {
			return fmt.Errorf("failed to start Dashboard Server: %w", err)
		}

		logger.Info().
			Str("addr", dashboardAddr).
			Msg("Dashboard Server started")
	}

	// Log startup complete
	logger.Info().Msg("STES startup complete")
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	if cfg.Dashboard.Enabled {
		logger.Info().Msgf("Dashboard API: http://%s:%d/api", cfg.Dashboard.BindAddress, cfg.Dashboard.Port)
	}

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Signal handling loop
	for {
		sig := <-sigChan

		switch sig {
		case syscall.SIGHUP:
			logger.Info().Msg("SIGHUP received, reloading employee roster...")
			if err := faceMatcher.Reload(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Failed to reload matcher index")
			} else {
				employeeRegistry.Purge()
				logger.Info().Int("indexed", faceMatcher.Size()).Msg("Employee roster reloaded")
			}
			// Continue running
			continue

		case os.Interrupt, syscall.SIGTERM:
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			// Break out of loop to shutdown
		}

		// Only reached on shutdown signals
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop the recognition loop first so no new transitions are decided,
	// then drain the appender so decided transitions reach storage.
	cancelLoop()
	<-loopDone

	appender.Stop()
	retentionSweeper.Stop()

	if dashboardServer != nil {
		if err := dashboardServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Dashboard Server")
		}
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("STES stopped")

	return nil
}

// primeEngine seeds the engine's per-identity state from the latest
// persisted transition of the current day for every active employee.
func primeEngine(ctx context.Context, store storage.Store, e *engine.Engine, logger zerolog.Logger) {
	employees, err := store.Employees().ListActive(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list employees for state hydration")
		return
	}

	day := engine.LocalDayKey(time.Now())
	primed := 0
	for _, emp := range employees {
		last, err := store.Transitions().LatestForDay(ctx, emp.ID, day)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				logger.Error().Err(err).Str("employee_id", emp.ID).Msg("Failed to load latest transition")
			}
			continue
		}
		e.Prime(emp.ID, last.Kind, last.Timestamp, last.DayKey)
		primed++
	}

	if primed > 0 {
		logger.Info().Int("identities", primed).Str("day", day).Msg("Engine state hydrated from storage")
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "bolt"
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
