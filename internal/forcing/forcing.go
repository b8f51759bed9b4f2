// Package forcing drives the external forcing generator over the configured
// scenarios.
//
// The generator itself (data download, regridding, unit conversion) is an
// opaque collaborator behind the Generator interface. The default
// implementation execs a configured command, handing it the request as JSON
// on stdin and reading a JSON result from stdout — the only contract is that
// the result names the directory the forcing files were written to.
package forcing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/GJsteiger/BEP-thesis-Rhine-catchment/internal/scenario"
)

// Request is one generator invocation. StartTime already includes the
// spin-up shift; EndTime is the common end of the forcing period.
type Request struct {
	Scenario  scenario.Scenario `json:"scenario"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	ShapeFile string            `json:"shape_file"`
	DEMFile   string            `json:"dem_file"`
}

// Result is what the generator reports back. Only Directory is consumed by
// this tool; the per-variable file bindings are carried through untouched.
type Result struct {
	Directory string            `json:"directory"`
	Forcings  map[string]string `json:"forcings,omitempty"`
}

// Generator produces forcing files for one scenario.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// CommandGenerator runs an external command per request (argv form).
type CommandGenerator struct {
	Command []string
}

// Generate execs the configured command with the JSON-encoded request on
// stdin and decodes the JSON result from stdout. Stderr is passed through to
// the error on failure.
func (g *CommandGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	if len(g.Command) == 0 {
		return Result{}, fmt.Errorf("no generator command configured")
	}

	input, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, g.Command[0], g.Command[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("generator %s: %w\n%s", g.Command[0], err, stderr.String())
	}

	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return Result{}, fmt.Errorf("generator %s: decode result: %w", g.Command[0], err)
	}
	if res.Directory == "" {
		return Result{}, fmt.Errorf("generator %s: result names no output directory", g.Command[0])
	}
	return res, nil
}

// Run invokes gen once per configured scenario, sequentially and in order,
// and returns the produced output directories in the same order. The first
// failure aborts the run — there is no retry or partial-result recovery.
// report, when non-nil, is called with each scenario before its call starts.
func Run(ctx context.Context, gen Generator, cfg *scenario.Config, report func(scenario.Scenario)) ([]string, error) {
	if cfg.ShapeFile == "" {
		return nil, fmt.Errorf("no shape_file configured")
	}
	if cfg.DEMFile == "" {
		return nil, fmt.Errorf("no dem_file configured")
	}
	start, err := cfg.SpinupStart()
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(cfg.Scenarios))
	for _, s := range cfg.Scenarios {
		if report != nil {
			report(s)
		}
		res, err := gen.Generate(ctx, Request{
			Scenario:  s,
			StartTime: start,
			EndTime:   cfg.EndTime,
			ShapeFile: cfg.ShapeFile,
			DEMFile:   cfg.DEMFile,
		})
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Experiment, err)
		}
		dirs = append(dirs, res.Directory)
	}
	return dirs, nil
}
