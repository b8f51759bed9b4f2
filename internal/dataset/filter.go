// Package dataset cross-references catalog records against the requested
// variable set.
//
// A (model, ensemble) pair is only useful to the hydrological model if every
// requested forcing variable is available for it; pairs covering a strict
// subset are discarded. Coverage is tracked as a set of distinct variables,
// so duplicate catalog records (the same variable listed by several index
// nodes) cannot over-count.
package dataset

import (
	"sort"

	"github.com/GJsteiger/BEP-thesis-Rhine-catchment/internal/esgf"
)

// Entry is the subset of a catalog record retained once its (model, ensemble)
// pair is confirmed to cover every requested variable.
type Entry struct {
	Project    string `json:"project"`
	Activity   string `json:"activity"`
	Experiment string `json:"experiment"`
	MIP        string `json:"mip"`
	Model      string `json:"model"`
	Ensemble   string `json:"ensemble"`
	Institute  string `json:"institute"`
	Grid       string `json:"grid"`
}

// Catalog maps model name → ensemble id → accepted entry. A model present in
// the records but with no ensemble covering all variables keeps an empty
// inner map, so the gap is visible in the export.
type Catalog map[string]map[string]Entry

// Filter retains the (model, ensemble) pairs whose records jointly cover
// every variable in variables. When several grid or institute values exist
// for an accepted pair, the entry from the record with the smallest
// (grid, institute) wins — a deterministic stand-in for the catalog's
// unspecified ordering.
func Filter(records []esgf.Record, variables []string) Catalog {
	requested := make(map[string]bool, len(variables))
	for _, v := range variables {
		requested[v] = true
	}

	type pair struct{ model, ensemble string }
	covered := make(map[pair]map[string]bool)
	chosen := make(map[pair]esgf.Record)

	out := make(Catalog)
	for _, rec := range records {
		if _, ok := out[rec.Model]; !ok {
			out[rec.Model] = make(map[string]Entry)
		}
		if !requested[rec.Variable] {
			continue
		}
		p := pair{rec.Model, rec.Ensemble}
		if covered[p] == nil {
			covered[p] = make(map[string]bool)
		}
		covered[p][rec.Variable] = true

		cur, ok := chosen[p]
		if !ok || lessGridInstitute(rec, cur) {
			chosen[p] = rec
		}
	}

	for p, vars := range covered {
		if len(vars) != len(requested) {
			continue
		}
		rec := chosen[p]
		out[p.model][p.ensemble] = Entry{
			Project:    rec.Project,
			Activity:   rec.Activity,
			Experiment: rec.Experiment,
			MIP:        rec.MIP,
			Model:      rec.Model,
			Ensemble:   rec.Ensemble,
			Institute:  rec.Institute,
			Grid:       rec.Grid,
		}
	}
	return out
}

// lessGridInstitute orders records by (grid, institute) lexicographically.
func lessGridInstitute(a, b esgf.Record) bool {
	if a.Grid != b.Grid {
		return a.Grid < b.Grid
	}
	return a.Institute < b.Institute
}

// Models returns the model names in sorted order.
func (c Catalog) Models() []string {
	models := make([]string, 0, len(c))
	for m := range c {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// Ensembles returns the accepted ensemble ids for model, sorted.
func (c Catalog) Ensembles(model string) []string {
	ensembles := make([]string, 0, len(c[model]))
	for e := range c[model] {
		ensembles = append(ensembles, e)
	}
	sort.Strings(ensembles)
	return ensembles
}
