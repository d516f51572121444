package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TEC7337/stes/internal/config"
	"github.com/TEC7337/stes/internal/engine"
	"github.com/TEC7337/stes/internal/registry"
	"github.com/TEC7337/stes/internal/storage"
)

var checkAt string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check attendance decisions interactively",
	Long:  `Check what attendance decision STES would make without committing anything.`,
}

var checkDecideCmd = &cobra.Command{
	Use:   "decide [flags] EMPLOYEE",
	Short: "Check the attendance decision for an employee",
	Long: `Check what transition STES would emit if the given employee were recognized
right now (or at the time given with --at). Nothing is written to storage.`,
	Example: `  stes -c config.yaml check decide emp-001
  stes check decide "Alice Smith" --at "2026-08-30 09:15:00"`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckDecide,
}

func init() {
	checkDecideCmd.Flags().StringVar(&checkAt, "at", "", "Observation time (YYYY-MM-DD HH:MM:SS) - defaults to now")

	checkCmd.AddCommand(checkDecideCmd)
	rootCmd.AddCommand(checkCmd)
}

// discardAppender satisfies the engine without persisting anything.
type discardAppender struct{}

func (discardAppender) Append(context.Context, storage.Transition) error { return nil }

func runCheckDecide(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Parse observation time (if provided)
	observedAt := time.Now()
	if checkAt != "" {
		var err error
		observedAt, err = time.ParseInLocation("2006-01-02 15:04:05", checkAt, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --at time, expected YYYY-MM-DD HH:MM:SS: %w", err)
		}
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	// Resolve the employee by ID first, then by name
	employee, err := store.Employees().Get(ctx, args[0])
	if errors.Is(err, storage.ErrNotFound) {
		employee, err = store.Employees().GetByName(ctx, args[0])
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no employee with ID or name %q", args[0])
		}
		return fmt.Errorf("failed to look up employee: %w", err)
	}

	// Initialize a dry-run engine: decisions are computed against the real
	// stored state but nothing is appended.
	dayBoundary, err := engine.ParseDayBoundaryPolicy(cfg.Engine.DayBoundaryPolicy)
	if err != nil {
		return err
	}

	attendanceEngine, err := engine.New(
		registry.New(store.Employees(), logger),
		discardAppender{},
		engine.Config{
			Cooldown:             parseDuration(cfg.Engine.Cooldown, engine.DefaultCooldown),
			DayBoundary:          dayBoundary,
			ClockSkewTolerance:   parseDuration(cfg.Engine.ClockSkewTolerance, engine.DefaultClockSkewTolerance),
			MaxTrackedIdentities: cfg.Engine.MaxTrackedIdentities,
		},
		logger,
	)
	if err != nil {
		return err
	}

	// Pin the engine clock to the observation time so skew validation and
	// cooldown behave as they would at that moment.
	attendanceEngine.SetClock(&engine.TestClock{CurrentTime: observedAt})

	// Seed state from the latest persisted transition of that day
	dayKey := engine.LocalDayKey(observedAt)
	if last, err := store.Transitions().LatestForDay(ctx, employee.ID, dayKey); err == nil {
		attendanceEngine.Prime(employee.ID, last.Kind, last.Timestamp, last.DayKey)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load latest transition: %w", err)
	}

	decision, err := attendanceEngine.Decide(ctx, employee.ID, observedAt)
	if err != nil {
		return fmt.Errorf("decision failed: %w", err)
	}

	printDecision(employee, observedAt, decision)

	return nil
}

// printDecision prints the attendance check result with colors
func printDecision(employee *storage.Employee, observedAt time.Time, decision engine.Decision) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("ATTENDANCE CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Employee:   %s (%s)\n", employee.Name, employee.ID)
	fmt.Printf("Time:       %s (%s)\n", observedAt.Format("2006-01-02 15:04:05"), observedAt.Weekday())
	fmt.Println()

	cyan.Print("Decision:   ")
	switch {
	case decision.Emitted() && decision.Transition.Kind == storage.KindClockIn:
		green.Println("CLOCK_IN")
		fmt.Println("            → A clock-in transition would be recorded")
	case decision.Emitted() && decision.Transition.Kind == storage.KindClockOut:
		green.Println("CLOCK_OUT")
		fmt.Println("            → A clock-out transition would be recorded")
	case decision.Reason == engine.SuppressCooldownActive:
		yellow.Println("SUPPRESSED (cooldown)")
		fmt.Println("            → Within the cooldown window of the last transition")
		fmt.Println("            → No transition would be recorded")
	case decision.Reason == engine.SuppressNoStateChange:
		red.Println("SUPPRESSED (no state change)")
		fmt.Println("            → Observation is older than the last committed transition")
		fmt.Println("            → No transition would be recorded")
	default:
		fmt.Printf("SUPPRESSED (%s)\n", decision.Reason)
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
