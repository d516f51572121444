package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/TEC7337/stes/internal/config"
	"github.com/TEC7337/stes/internal/report"
)

var (
	exportFrom string
	exportTo   string
	exportDay  string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records as CSV",
	Long:  `Export raw transitions or paired work sessions as CSV, to stdout or a file.`,
}

var exportTransitionsCmd = &cobra.Command{
	Use:   "transitions",
	Short: "Export raw clock-in/clock-out transitions",
	Example: `  stes export transitions --from 2026-08-01 --to 2026-08-31
  stes export transitions --from 2026-08-01 --to 2026-08-31 --out august.csv`,
	RunE: runExportTransitions,
}

var exportSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Export paired work sessions for a day",
	Example: `  stes export sessions --day 2026-08-29
  stes export sessions --day 2026-08-29 --out sessions.csv`,
	RunE: runExportSessions,
}

func init() {
	exportTransitionsCmd.Flags().StringVar(&exportFrom, "from", "", "Start day, inclusive (YYYY-MM-DD) (required)")
	exportTransitionsCmd.Flags().StringVar(&exportTo, "to", "", "End day, inclusive (YYYY-MM-DD) (required)")
	exportTransitionsCmd.Flags().StringVar(&exportOut, "out", "", "Output file - defaults to stdout")
	exportTransitionsCmd.MarkFlagRequired("from")
	exportTransitionsCmd.MarkFlagRequired("to")

	exportSessionsCmd.Flags().StringVar(&exportDay, "day", "", "Day to export (YYYY-MM-DD) - defaults to today")
	exportSessionsCmd.Flags().StringVar(&exportOut, "out", "", "Output file - defaults to stdout")

	exportCmd.AddCommand(exportTransitionsCmd)
	exportCmd.AddCommand(exportSessionsCmd)
	rootCmd.AddCommand(exportCmd)
}

func runExportTransitions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	start, err := time.ParseInLocation("2006-01-02", exportFrom, time.Local)
	if err != nil {
		return fmt.Errorf("invalid --from, expected YYYY-MM-DD: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", exportTo, time.Local)
	if err != nil {
		return fmt.Errorf("invalid --to, expected YYYY-MM-DD: %w", err)
	}
	// End day is inclusive
	end = end.AddDate(0, 0, 1)
	if !start.Before(end) {
		return fmt.Errorf("--from %s is after --to %s", exportFrom, exportTo)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	out, closeOut, err := openOutput(exportOut)
	if err != nil {
		return err
	}
	defer closeOut()

	reporter := report.NewReporter(store, quietLogger())
	if err := reporter.WriteTransitionsCSV(ctx, out, start, end); err != nil {
		return fmt.Errorf("failed to export transitions: %w", err)
	}

	return nil
}

func runExportSessions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dayKey := exportDay
	if dayKey == "" {
		dayKey = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", dayKey); err != nil {
		return fmt.Errorf("invalid --day, expected YYYY-MM-DD: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	out, closeOut, err := openOutput(exportOut)
	if err != nil {
		return err
	}
	defer closeOut()

	reporter := report.NewReporter(store, quietLogger())
	if err := reporter.WriteSessionsCSV(ctx, out, dayKey); err != nil {
		return fmt.Errorf("failed to export sessions: %w", err)
	}

	return nil
}

// openOutput opens the export destination: a file when given, stdout otherwise.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
