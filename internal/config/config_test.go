package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Engine.Cooldown != "10m" {
		t.Errorf("engine.cooldown = %s, want 10m", cfg.Engine.Cooldown)
	}
	if cfg.Engine.DayBoundaryPolicy != "reset" {
		t.Errorf("engine.day_boundary_policy = %s, want reset", cfg.Engine.DayBoundaryPolicy)
	}
	if cfg.Engine.MaxTrackedIdentities != 10000 {
		t.Errorf("engine.max_tracked_identities = %d, want 10000", cfg.Engine.MaxTrackedIdentities)
	}
	if cfg.Matcher.Tolerance != 0.6 {
		t.Errorf("matcher.tolerance = %f, want 0.6", cfg.Matcher.Tolerance)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("storage.type = %s, want bolt", cfg.Storage.Type)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
engine:
  cooldown: 5m
  day_boundary_policy: carry_over
storage:
  type: bolt
  path: ` + filepath.Join(dir, "stes.bolt") + `
matcher:
  tolerance: 0.5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Engine.Cooldown != "5m" {
		t.Errorf("engine.cooldown = %s, want 5m", cfg.Engine.Cooldown)
	}
	if cfg.Engine.DayBoundaryPolicy != "carry_over" {
		t.Errorf("engine.day_boundary_policy = %s, want carry_over", cfg.Engine.DayBoundaryPolicy)
	}
	if cfg.Matcher.Tolerance != 0.5 {
		t.Errorf("matcher.tolerance = %f, want 0.5", cfg.Matcher.Tolerance)
	}
	// Unset values keep their defaults
	if cfg.Capture.SampleInterval != "500ms" {
		t.Errorf("capture.sample_interval = %s, want 500ms", cfg.Capture.SampleInterval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad cooldown",
			content: `
engine:
  cooldown: soon
`,
		},
		{
			name: "bad day boundary policy",
			content: `
engine:
  day_boundary_policy: weekly
`,
		},
		{
			name: "bad storage type",
			content: `
storage:
  type: sqlite
`,
		},
		{
			name: "bad tolerance",
			content: `
matcher:
  tolerance: -1
`,
		},
		{
			name: "replay without file",
			content: `
capture:
  source: replay
`,
		},
		{
			name: "bad capture source",
			content: `
capture:
  source: webcam
`,
		},
		{
			name: "bad reset time",
			content: `
engine:
  daily_reset_time: midnight
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := Load(configPath); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}
