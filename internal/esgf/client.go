// Package esgf queries the ESGF esg-search REST API for CMIP6 dataset
// metadata.
//
// The search service is an opaque collaborator: this package only builds the
// facet query, pages through the Solr-JSON response, and validates each
// returned document into a fixed-field Record. Query latency is dominated by
// the federation (tens of seconds per variable when caches are cold), so
// every request takes a context for cancellation.
package esgf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Record is one catalog result: a (variable, model, ensemble, grid)
// combination offered by some institute. Immutable value.
type Record struct {
	Project    string
	Activity   string
	Experiment string
	MIP        string
	Variable   string
	Model      string
	Ensemble   string
	Grid       string
	Institute  string
}

// Query describes one catalog search. Empty wildcard fields mean "match
// anything"; Project, Activity, Experiment, Frequency and Variable are always
// sent as facets.
type Query struct {
	Project    string
	Activity   string
	Experiment string
	Frequency  string
	Variable   string

	// Wildcardable facets. Empty or "*" is not sent.
	Model     string
	Institute string
	Ensemble  string
	Grid      string

	// Distributed searches the whole federation instead of the single
	// index node. Passed explicitly — there is no package-level mode.
	Distributed bool
}

// Client talks to one esg-search endpoint.
type Client struct {
	// BaseURL is the search endpoint, e.g.
	// https://esgf-node.llnl.gov/esg-search/search.
	BaseURL string

	// HTTPClient defaults to a client with a generous timeout; federation
	// queries are slow but not unbounded.
	HTTPClient *http.Client

	// PageSize bounds one response page. Defaults to 200.
	PageSize int
}

// NewClient returns a Client for the given esg-search endpoint.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
		PageSize:   200,
	}
}

// Search runs one catalog query, following pagination until all matching
// datasets have been fetched. Records are returned in the order the catalog
// reports them.
func (c *Client) Search(ctx context.Context, q Query) ([]Record, error) {
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	var records []Record
	offset := 0
	for {
		page, numFound, err := c.fetchPage(ctx, q, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("search %s/%s: %w", q.Experiment, q.Variable, err)
		}
		records = append(records, page...)
		offset += len(page)
		if offset >= numFound || len(page) == 0 {
			return records, nil
		}
	}
}

// SearchVariables runs one Search per requested variable and concatenates the
// results in variable order. report, when non-nil, is called with each
// variable name before its query starts. A failed query aborts the whole run.
func (c *Client) SearchVariables(ctx context.Context, base Query, variables []string, report func(string)) ([]Record, error) {
	var records []Record
	for _, v := range variables {
		if report != nil {
			report(v)
		}
		q := base
		q.Variable = v
		recs, err := c.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// solrResponse is the subset of the Solr-JSON envelope we read.
type solrResponse struct {
	Response struct {
		NumFound int       `json:"numFound"`
		Docs     []solrDoc `json:"docs"`
	} `json:"response"`
}

// solrDoc is one dataset document. The catalog reports every facet as a list
// even when it holds a single value.
type solrDoc struct {
	Project      []string `json:"project"`
	ActivityID   []string `json:"activity_id"`
	ExperimentID []string `json:"experiment_id"`
	Frequency    []string `json:"frequency"`
	Variable     []string `json:"variable"`
	SourceID     []string `json:"source_id"`
	MemberID     []string `json:"member_id"`
	GridLabel    []string `json:"grid_label"`
	Institution  []string `json:"institution_id"`
}

func (c *Client) fetchPage(ctx context.Context, q Query, offset, limit int) ([]Record, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(q, offset, limit), nil)
	if err != nil {
		return nil, 0, err
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("catalog returned %s", resp.Status)
	}

	var sr solrResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}

	records := make([]Record, 0, len(sr.Response.Docs))
	for i, doc := range sr.Response.Docs {
		rec, err := doc.record()
		if err != nil {
			return nil, 0, fmt.Errorf("document %d: %w", offset+i, err)
		}
		records = append(records, rec)
	}
	return records, sr.Response.NumFound, nil
}

// searchURL builds the facet query. Wildcard fields are omitted; the catalog
// treats an absent facet as unconstrained.
func (c *Client) searchURL(q Query, offset, limit int) string {
	v := url.Values{}
	v.Set("type", "Dataset")
	v.Set("format", "application/solr+json")
	v.Set("latest", "true")
	v.Set("replica", "false")
	v.Set("distrib", strconv.FormatBool(q.Distributed))
	v.Set("offset", strconv.Itoa(offset))
	v.Set("limit", strconv.Itoa(limit))

	v.Set("project", q.Project)
	v.Set("activity_id", q.Activity)
	v.Set("experiment_id", q.Experiment)
	v.Set("frequency", q.Frequency)
	v.Set("variable", q.Variable)

	setFacet := func(name, value string) {
		if value != "" && value != "*" {
			v.Set(name, value)
		}
	}
	setFacet("source_id", q.Model)
	setFacet("institution_id", q.Institute)
	setFacet("member_id", q.Ensemble)
	setFacet("grid_label", q.Grid)

	return c.BaseURL + "?" + v.Encode()
}

// record validates a document into a Record. Fields the cross-reference
// filter keys on must be present; the rest default to empty.
func (d solrDoc) record() (Record, error) {
	model := first(d.SourceID)
	if model == "" {
		return Record{}, fmt.Errorf("missing source_id")
	}
	ensemble := first(d.MemberID)
	if ensemble == "" {
		return Record{}, fmt.Errorf("missing member_id")
	}
	variable := first(d.Variable)
	if variable == "" {
		return Record{}, fmt.Errorf("missing variable")
	}
	return Record{
		Project:    first(d.Project),
		Activity:   first(d.ActivityID),
		Experiment: first(d.ExperimentID),
		MIP:        first(d.Frequency),
		Variable:   variable,
		Model:      model,
		Ensemble:   ensemble,
		Grid:       first(d.GridLabel),
		Institute:  first(d.Institution),
	}, nil
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
