package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TEC7337/stes/internal/config"
	"github.com/TEC7337/stes/internal/storage"
)

var (
	registerID         string
	registerName       string
	registerEmail      string
	registerDepartment string
	registerEncoding   string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an employee or update an existing one",
	Long: `Register an employee in the roster. The face encoding is read from a JSON
file containing an array of numbers, as produced by the enrollment tooling.
Registering an existing ID updates the record in place.`,
	Example: `  stes register --name "Alice Smith" --encoding alice.json
  stes register --id emp-001 --name "Alice Smith" --email alice@example.com --encoding alice.json`,
	RunE: runRegister,
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate EMPLOYEE",
	Short: "Deactivate an employee",
	Long: `Deactivate an employee. The record and its attendance history are kept,
but the employee is removed from the matcher index and can no longer clock
in or out. Send SIGHUP to a running server to pick up the change.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeactivate,
}

func init() {
	registerCmd.Flags().StringVar(&registerID, "id", "", "Employee ID (generated when omitted)")
	registerCmd.Flags().StringVar(&registerName, "name", "", "Employee name (required)")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Employee email")
	registerCmd.Flags().StringVar(&registerDepartment, "department", "", "Employee department")
	registerCmd.Flags().StringVar(&registerEncoding, "encoding", "", "Path to a JSON face encoding file")
	registerCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(deactivateCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	var encoding []float32
	if registerEncoding != "" {
		encoding, err = readEncodingFile(registerEncoding)
		if err != nil {
			return err
		}
	}

	id := registerID
	if id == "" {
		id = uuid.NewString()
	}

	employee := storage.Employee{
		ID:         id,
		Name:       registerName,
		Email:      registerEmail,
		Department: registerDepartment,
		Encoding:   encoding,
		Active:     true,
	}

	// Preserve fields not given on the command line when updating
	if existing, err := store.Employees().Get(ctx, id); err == nil {
		if registerEmail == "" {
			employee.Email = existing.Email
		}
		if registerDepartment == "" {
			employee.Department = existing.Department
		}
		if registerEncoding == "" {
			employee.Encoding = existing.Encoding
		}
		employee.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to look up employee: %w", err)
	}

	if err := store.Employees().Upsert(ctx, employee); err != nil {
		return fmt.Errorf("failed to register employee: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Printf("Registered %s", employee.Name)
	fmt.Printf(" (%s)", employee.ID)
	if len(employee.Encoding) > 0 {
		fmt.Printf(" with a %d-dimension face encoding", len(employee.Encoding))
	} else {
		fmt.Print(" without a face encoding")
	}
	fmt.Println()

	return nil
}

func runDeactivate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

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

	if !employee.Active {
		fmt.Printf("%s (%s) is already inactive\n", employee.Name, employee.ID)
		return nil
	}

	employee.Active = false
	if err := store.Employees().Upsert(ctx, *employee); err != nil {
		return fmt.Errorf("failed to deactivate employee: %w", err)
	}

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Printf("Deactivated %s", employee.Name)
	fmt.Printf(" (%s)\n", employee.ID)

	return nil
}

// readEncodingFile reads a JSON array of numbers into a face encoding.
func readEncodingFile(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoding file: %w", err)
	}

	var encoding []float32
	if err := json.Unmarshal(data, &encoding); err != nil {
		return nil, fmt.Errorf("invalid encoding file %s: %w", path, err)
	}
	if len(encoding) == 0 {
		return nil, fmt.Errorf("encoding file %s contains no values", path)
	}

	return encoding, nil
}

// quietLogger creates a logger suitable for one-shot CLI commands.
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}
