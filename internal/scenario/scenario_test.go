package scenario

// scenario_test.go — Tests for config defaults, loading and validation.

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultScenarios(t *testing.T) {
	cfg := Default()
	want := []string{"ssp126", "ssp245", "ssp585"}
	if len(cfg.Scenarios) != len(want) {
		t.Fatalf("expected %d scenarios, got %d", len(want), len(cfg.Scenarios))
	}
	for i, exp := range want {
		s := cfg.Scenarios[i]
		if s.Experiment != exp {
			t.Errorf("scenario %d: experiment = %q, want %q", i, s.Experiment, exp)
		}
		if s.Project != "CMIP6" || s.Activity != "ScenarioMIP" {
			t.Errorf("scenario %q: project/activity = %q/%q", exp, s.Project, s.Activity)
		}
		if s.Grid != "*" {
			t.Errorf("scenario %q: grid = %q, want wildcard", exp, s.Grid)
		}
	}
}

func TestLoad_FileNotExist(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "rhine.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got error: %v", err)
	}
	if len(cfg.Variables) != 3 {
		t.Errorf("expected default variables, got %v", cfg.Variables)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rhine.yaml")
	content := `
variables: [pr, tas]
output_dir: /data/out
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Variables) != 2 || cfg.Variables[0] != "pr" || cfg.Variables[1] != "tas" {
		t.Errorf("variables not overridden: %v", cfg.Variables)
	}
	if cfg.OutputDir != "/data/out" {
		t.Errorf("output_dir = %q", cfg.OutputDir)
	}
	// Untouched fields keep their defaults.
	if cfg.StartTime != "2025-01-01T00:00:00Z" {
		t.Errorf("start_time lost its default: %q", cfg.StartTime)
	}
	if !cfg.DistributedSearch {
		t.Error("distributed_search lost its default")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhine.yaml")
	if err := os.WriteFile(path, []byte(":\tbad yaml:"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhine.yaml")
	if err := os.WriteFile(path, []byte("variables: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "variables") {
		t.Errorf("expected variables validation error, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no scenarios", func(c *Config) { c.Scenarios = nil }, "no scenarios"},
		{"missing experiment", func(c *Config) { c.Scenarios[1].Experiment = "" }, "experiment"},
		{"missing activity", func(c *Config) { c.Scenarios[0].Activity = "" }, "activity"},
		{"no variables", func(c *Config) { c.Variables = nil }, "variables"},
		{"missing frequency", func(c *Config) { c.Frequency = "" }, "frequency"},
		{"bad start time", func(c *Config) { c.StartTime = "2025-01-01" }, "start_time"},
		{"bad end time", func(c *Config) { c.EndTime = "later" }, "end_time"},
		{"start after end", func(c *Config) { c.StartTime = "2040-01-01T00:00:00Z" }, "not before"},
		{"negative spinup", func(c *Config) { c.SpinupYears = -1 }, "spinup"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestSpinupStart(t *testing.T) {
	cfg := Default()
	got, err := cfg.SpinupStart()
	if err != nil {
		t.Fatalf("SpinupStart: %v", err)
	}
	if got != "2024-01-01T00:00:00Z" {
		t.Errorf("SpinupStart = %q, want 2024-01-01T00:00:00Z", got)
	}
}

func TestSpinupStart_ZeroYears(t *testing.T) {
	cfg := Default()
	cfg.SpinupYears = 0
	got, err := cfg.SpinupStart()
	if err != nil {
		t.Fatalf("SpinupStart: %v", err)
	}
	if got != cfg.StartTime {
		t.Errorf("SpinupStart = %q, want unchanged %q", got, cfg.StartTime)
	}
}
