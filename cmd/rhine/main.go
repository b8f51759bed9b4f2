package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/GJsteiger/BEP-thesis-Rhine-catchment/internal/dataset"
	"github.com/GJsteiger/BEP-thesis-Rhine-catchment/internal/esgf"
	"github.com/GJsteiger/BEP-thesis-Rhine-catchment/internal/export"
	"github.com/GJsteiger/BEP-thesis-Rhine-catchment/internal/forcing"
	"github.com/GJsteiger/BEP-thesis-Rhine-catchment/internal/scenario"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "discover",
		short: "Find (model, ensemble) pairs providing every forcing variable",
		usage: "rhine discover [-config rhine.yaml] [-experiment id] [-force] [-plain]",
		long: `Query the ESGF catalog once per configured forcing variable and keep
only the (model, ensemble) pairs that provide all of them.

Writes one datasets_<model>_<experiment>.json per model to the output
directory. Existing files are not overwritten unless -force is given.

Federation queries can take minutes per variable when the index caches
are cold; interrupt with Ctrl-C.
`,
		run: runDiscover,
	},
	{
		name:  "generate",
		short: "Run the forcing generator for every scenario",
		usage: "rhine generate [-config rhine.yaml] [-force] [-plain]",
		long: `Invoke the external forcing generator once per configured scenario,
with the start time shifted earlier by the spin-up period, and write a
forcing_<start>_<end>.json manifest listing the produced directories.

The generator command is configured via generator_command; the first
failing scenario aborts the run.
`,
		run: runGenerate,
	},
	{
		name:  "scenarios",
		short: "Print the effective configuration",
		usage: "rhine scenarios [-config rhine.yaml]",
		long: `Print the merged configuration (built-in defaults plus the config
file) as YAML.
`,
		run: runScenarios,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "rhine — CMIP6 forcing and dataset discovery for the Rhine catchment\n\n")
	fmt.Fprintf(w, "Usage:\n  rhine <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'rhine help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "rhine: unknown command %q\n\nRun 'rhine help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'rhine help' for usage.", args[0])
}

// ---------------------------------------------------------------------------
// discover
// ---------------------------------------------------------------------------

func runDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	configPath := fs.String("config", "rhine.yaml", "config file")
	experiment := fs.String("experiment", "", "experiment to discover (default: first configured scenario)")
	force := fs.Bool("force", false, "overwrite existing output files")
	plain := fs.Bool("plain", false, "line-oriented progress instead of the status spinner")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := scenario.Load(*configPath)
	if err != nil {
		return err
	}
	scen := cfg.Scenarios[0]
	if *experiment != "" {
		scen, err = scenarioForExperiment(cfg, *experiment)
		if err != nil {
			return err
		}
	}

	base := esgf.Query{
		Project:     scen.Project,
		Activity:    scen.Activity,
		Experiment:  scen.Experiment,
		Frequency:   cfg.Frequency,
		Distributed: cfg.DistributedSearch,
	}
	client := esgf.NewClient(cfg.CatalogURL)

	var catalog dataset.Catalog
	err = runWithStatus(*plain, func(ctx context.Context, report func(string)) error {
		records, err := client.SearchVariables(ctx, base, cfg.Variables, func(v string) {
			report(fmt.Sprintf("querying %s for %s/%s", cfg.CatalogURL, scen.Experiment, v))
		})
		if err != nil {
			return err
		}
		report("cross-referencing records")
		catalog = dataset.Filter(records, cfg.Variables)
		return nil
	})
	if err != nil {
		return err
	}

	paths, err := export.WriteDatasets(cfg.OutputDir, catalog, scen.Experiment, *force)
	if err != nil {
		return err
	}

	for _, model := range catalog.Models() {
		fmt.Printf("  %-24s %d ensemble(s) with all of %v\n", model, len(catalog[model]), cfg.Variables)
	}
	fmt.Printf("wrote %d dataset file(s) to %s\n", len(paths), cfg.OutputDir)
	return nil
}

// scenarioForExperiment returns the configured scenario matching experiment.
// An unmatched experiment is an error — a typo must not turn into a
// federation query for a nonexistent pathway and an empty artifact.
func scenarioForExperiment(cfg *scenario.Config, experiment string) (scenario.Scenario, error) {
	known := make([]string, 0, len(cfg.Scenarios))
	for _, s := range cfg.Scenarios {
		if s.Experiment == experiment {
			return s, nil
		}
		known = append(known, s.Experiment)
	}
	return scenario.Scenario{}, fmt.Errorf("experiment %q is not configured (have: %s)",
		experiment, strings.Join(known, ", "))
}

// ---------------------------------------------------------------------------
// generate
// ---------------------------------------------------------------------------

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	configPath := fs.String("config", "rhine.yaml", "config file")
	force := fs.Bool("force", false, "overwrite an existing manifest")
	plain := fs.Bool("plain", false, "line-oriented progress instead of the status spinner")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := scenario.Load(*configPath)
	if err != nil {
		return err
	}
	gen := &forcing.CommandGenerator{Command: cfg.GeneratorCommand}

	var dirs []string
	err = runWithStatus(*plain, func(ctx context.Context, report func(string)) error {
		dirs, err = forcing.Run(ctx, gen, cfg, func(s scenario.Scenario) {
			report(fmt.Sprintf("generating forcing for %s (%s %s)", s.Experiment, s.Model, s.Ensemble))
		})
		return err
	})
	if err != nil {
		return err
	}

	path, err := export.WriteForcingManifest(cfg.OutputDir, export.ForcingManifest{
		RunID:       uuid.NewString(),
		StartTime:   cfg.StartTime,
		EndTime:     cfg.EndTime,
		Directories: dirs,
	}, *force)
	if err != nil {
		return err
	}

	for i, dir := range dirs {
		fmt.Printf("  %-10s %s\n", cfg.Scenarios[i].Experiment, dir)
	}
	fmt.Printf("wrote manifest %s\n", path)
	return nil
}

// ---------------------------------------------------------------------------
// scenarios
// ---------------------------------------------------------------------------

func runScenarios(args []string) error {
	fs := flag.NewFlagSet("scenarios", flag.ContinueOnError)
	configPath := fs.String("config", "rhine.yaml", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := scenario.Load(*configPath)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

// ---------------------------------------------------------------------------
// TUI status helpers
// ---------------------------------------------------------------------------

type statusMsg string

type doneMsg struct{ err error }

// statusModel shows a spinner and the latest progress line while an external
// call is in flight.
type statusModel struct {
	spin   spinner.Model
	status string
	done   bool
}

func newStatusModel() statusModel {
	return statusModel{spin: spinner.New(spinner.WithSpinner(spinner.Dot))}
}

func (m statusModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	return m, cmd
}

func (m statusModel) View() string {
	if m.done || m.status == "" {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.spin.View(), m.status)
}

// runWithStatus runs fn while showing its progress reports. In plain mode,
// or when stdout is not a terminal (pipes, CI, cron), reports go to the log;
// otherwise a bubbletea spinner shows the latest report, and quitting the
// TUI (Ctrl-C) cancels fn's context.
func runWithStatus(plain bool, fn func(ctx context.Context, report func(string)) error) error {
	if plain || !stdoutIsTerminal() {
		return fn(context.Background(), func(s string) { log.Print(s) })
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(newStatusModel())
	errc := make(chan error, 1)
	go func() {
		err := fn(ctx, func(s string) { p.Send(statusMsg(s)) })
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errc
		return err
	}
	// The TUI may have quit on Ctrl-C before fn finished; cancel and wait.
	cancel()
	return <-errc
}

// stdoutIsTerminal reports whether stdout is attached to a terminal.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
