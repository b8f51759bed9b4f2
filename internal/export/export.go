// Package export serializes the run artifacts to JSON files.
//
// Both export paths use exclusive-create semantics: an artifact that already
// exists on disk is never silently replaced, and a refused write leaves the
// existing file untouched. Callers opt into overwriting explicitly.
//
// Artifacts:
//
//	forcing_<start>_<end>.json             — forcing manifest, one per run
//	datasets_<model>_<experiment>.json     — filtered catalog, one per model
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GJsteiger/BEP-thesis-Rhine-catchment/internal/dataset"
)

// ForcingManifest records where the generated forcing data ended up.
// Directories are ordered as the scenario list; StartTime and EndTime are the
// configured strings, without the spin-up shift.
type ForcingManifest struct {
	RunID       string   `json:"run_id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Directories []string `json:"directories"`
}

// ForcingPath returns the manifest path for a time range, e.g.
// output/forcing_2025-01-01_2035-12-31.json.
func ForcingPath(dir, startTime, endTime string) string {
	name := fmt.Sprintf("forcing_%s_%s.json", datePart(startTime), datePart(endTime))
	return filepath.Join(dir, name)
}

// DatasetPath returns the per-model dataset file path, e.g.
// output/datasets_EC-Earth3_ssp585.json.
func DatasetPath(dir, model, experiment string) string {
	return filepath.Join(dir, fmt.Sprintf("datasets_%s_%s.json", model, experiment))
}

// WriteForcingManifest writes the manifest to ForcingPath(dir, ...).
// Returns the written path.
func WriteForcingManifest(dir string, m ForcingManifest, overwrite bool) (string, error) {
	path := ForcingPath(dir, m.StartTime, m.EndTime)
	if err := writeJSON(path, m, overwrite); err != nil {
		return "", err
	}
	return path, nil
}

// WriteDatasets writes one datasets_<model>_<experiment>.json per model in
// the catalog, body {ensemble: entry}. Models are written in sorted order;
// a model with no accepted ensembles still gets a file (empty object).
// Returns the written paths in that order.
func WriteDatasets(dir string, c dataset.Catalog, experiment string, overwrite bool) ([]string, error) {
	paths := make([]string, 0, len(c))
	for _, model := range c.Models() {
		path := DatasetPath(dir, model, experiment)
		if err := writeJSON(path, c[model], overwrite); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeJSON marshals v (indented, trailing newline) and writes it to path,
// creating parent directories as needed. Without overwrite the create is
// exclusive: an existing file fails the write and keeps its contents.
func writeJSON(path string, v any, overwrite bool) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// datePart reduces an RFC 3339 time string to its date for use in filenames.
// Unparseable strings pass through unchanged.
func datePart(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}
