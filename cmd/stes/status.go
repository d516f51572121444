package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TEC7337/stes/internal/config"
	"github.com/TEC7337/stes/internal/report"
)

var statusDay string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the attendance status of all employees",
	Long:  `Show who is clocked in, clocked out, or absent for a given day.`,
	Example: `  stes status
  stes status --day 2026-08-29`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDay, "day", "", "Day to report on (YYYY-MM-DD) - defaults to today")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dayKey := statusDay
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

	reporter := report.NewReporter(store, quietLogger())

	summary, err := reporter.DailySummary(ctx, dayKey)
	if err != nil {
		return fmt.Errorf("failed to build daily summary: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	cyan.Printf("ATTENDANCE FOR %s\n", summary.DayKey)
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if len(summary.Employees) == 0 {
		fmt.Println("No employees registered")
		fmt.Println()
		return nil
	}

	for _, emp := range summary.Employees {
		fmt.Printf("%-24s", emp.Name)
		switch emp.Status {
		case report.StatusClockedIn:
			green.Print("CLOCKED IN ")
		case report.StatusClockedOut:
			fmt.Print("clocked out")
		default:
			yellow.Print("absent     ")
		}
		if emp.TotalTime > 0 {
			fmt.Printf("  %s worked", emp.TotalTime.Round(time.Minute))
		}
		if n := len(emp.Sessions); n > 0 {
			fmt.Printf("  (%d session", n)
			if n > 1 {
				fmt.Print("s")
			}
			fmt.Print(")")
		}
		fmt.Println()
	}

	fmt.Println()
	return nil
}
