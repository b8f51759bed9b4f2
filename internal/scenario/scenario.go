// Package scenario holds the climate-scenario configuration for the Rhine
// catchment study: which CMIP6 experiments to run, which forcing variables
// they must provide, and the common time range.
//
// Configuration is read from a YAML file (rhine.yaml by default). A missing
// file is not an error — the built-in defaults describe the three ScenarioMIP
// pathways used by the thesis. A partial file overrides only the fields it
// sets.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario identifies one CMIP6 dataset query: a named emissions pathway run
// by a specific model and ensemble member. Grid may be the "*" wildcard.
type Scenario struct {
	Project    string `yaml:"project"`
	Activity   string `yaml:"activity"`
	Experiment string `yaml:"experiment"`
	Model      string `yaml:"model"`
	Ensemble   string `yaml:"ensemble"`
	Grid       string `yaml:"grid"`
}

// Config is the full tool configuration shared by the discover and generate
// commands.
type Config struct {
	// Scenarios are processed in order; the forcing manifest preserves
	// this order in its directory list.
	Scenarios []Scenario `yaml:"scenarios"`

	// Variables are the forcing variable short names every accepted
	// (model, ensemble) pair must jointly provide.
	Variables []string `yaml:"variables"`

	// Frequency is the MIP frequency code used in catalog queries and
	// retained in exported dataset entries.
	Frequency string `yaml:"frequency"`

	// StartTime and EndTime bound the forcing period (RFC 3339). They are
	// exported unchanged; only the generator sees the spin-up shift.
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`

	// SpinupYears is subtracted from StartTime before each generator call
	// so the hydrological model can settle before the period of interest.
	SpinupYears int `yaml:"spinup_years"`

	ShapeFile string `yaml:"shape_file"`
	DEMFile   string `yaml:"dem_file"`
	OutputDir string `yaml:"output_dir"`

	// CatalogURL is the ESGF esg-search endpoint.
	CatalogURL string `yaml:"catalog_url"`

	// DistributedSearch queries the whole ESGF federation rather than the
	// single index node. Passed explicitly into every catalog query.
	DistributedSearch bool `yaml:"distributed_search"`

	// GeneratorCommand is the external forcing generator invocation
	// (argv). Empty means the generate command is unconfigured.
	GeneratorCommand []string `yaml:"generator_command"`
}

// Default returns the built-in configuration: the low, medium and high
// emissions pathways for EC-Earth3 r6i1p1f1 over 2025–2035 with a one-year
// spin-up.
func Default() *Config {
	scen := func(experiment string) Scenario {
		return Scenario{
			Project:    "CMIP6",
			Activity:   "ScenarioMIP",
			Experiment: experiment,
			Model:      "EC-Earth3",
			Ensemble:   "r6i1p1f1",
			Grid:       "*",
		}
	}
	return &Config{
		Scenarios:         []Scenario{scen("ssp126"), scen("ssp245"), scen("ssp585")},
		Variables:         []string{"pr", "tas", "rsds"},
		Frequency:         "day",
		StartTime:         "2025-01-01T00:00:00Z",
		EndTime:           "2035-12-31T00:00:00Z",
		SpinupYears:       1,
		OutputDir:         "output",
		CatalogURL:        "https://esgf-node.llnl.gov/esg-search/search",
		DistributedSearch: true,
	}
}

// Load reads a YAML config file on top of the defaults.
// Returns the defaults (not an error) if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields every command depends on. Generate-only inputs
// (shapefile, DEM, generator command) are checked by the forcing driver.
func (c *Config) Validate() error {
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("no scenarios configured")
	}
	for i, s := range c.Scenarios {
		if s.Experiment == "" {
			return fmt.Errorf("scenario %d: missing experiment", i)
		}
		if s.Project == "" {
			return fmt.Errorf("scenario %q: missing project", s.Experiment)
		}
		if s.Activity == "" {
			return fmt.Errorf("scenario %q: missing activity", s.Experiment)
		}
	}
	if len(c.Variables) == 0 {
		return fmt.Errorf("no variables configured")
	}
	if c.Frequency == "" {
		return fmt.Errorf("missing frequency")
	}
	start, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, c.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("start_time %s is not before end_time %s", c.StartTime, c.EndTime)
	}
	if c.SpinupYears < 0 {
		return fmt.Errorf("spinup_years must not be negative")
	}
	return nil
}

// SpinupStart returns StartTime shifted earlier by SpinupYears, in RFC 3339.
func (c *Config) SpinupStart() (string, error) {
	start, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return "", fmt.Errorf("start_time: %w", err)
	}
	return start.AddDate(-c.SpinupYears, 0, 0).Format(time.RFC3339), nil
}
