// Package registry maps election years to their boundary and results sources.
package registry

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrUnknownYear is returned when a year has no registered dataset.
var ErrUnknownYear = eris.New("registry: unknown election year")

// Dataset describes the sources for one election year.
type Dataset struct {
	Year        int    `yaml:"year" json:"year"`
	BoundaryURL string `yaml:"boundary_url" json:"boundary_url"`
	ResultsPath string `yaml:"results_path" json:"results_path"`
	// NameColumn and CodeColumn are boundary property names; they differ by boundary vintage.
	NameColumn string `yaml:"name_column" json:"name_column"`
	CodeColumn string `yaml:"code_column" json:"code_column"`
}

// FineLayer describes the fine-grained census layer used for drill-down.
type FineLayer struct {
	URL        string `yaml:"url" json:"url"`
	CodeColumn string `yaml:"code_column" json:"code_column"`
	NameColumn string `yaml:"name_column" json:"name_column"`
}

// Registry is an ordered, read-only set of datasets keyed by year.
type Registry struct {
	datasets map[int]Dataset
	order    []int // registration order; the first entry is the default year
	fine     FineLayer
}

// New creates a registry from datasets in the given order.
func New(fine FineLayer, datasets ...Dataset) (*Registry, error) {
	r := &Registry{
		datasets: make(map[int]Dataset, len(datasets)),
		fine:     fine,
	}
	for _, d := range datasets {
		if err := r.register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(d Dataset) error {
	if d.Year <= 0 {
		return eris.Errorf("registry: invalid year %d", d.Year)
	}
	if _, dup := r.datasets[d.Year]; dup {
		return eris.Errorf("registry: year %d registered twice", d.Year)
	}
	if d.BoundaryURL == "" || d.ResultsPath == "" {
		return eris.Errorf("registry: year %d needs boundary_url and results_path", d.Year)
	}
	if d.NameColumn == "" || d.CodeColumn == "" {
		return eris.Errorf("registry: year %d needs name_column and code_column", d.Year)
	}
	r.datasets[d.Year] = d
	r.order = append(r.order, d.Year)
	return nil
}

// Lookup returns the dataset for year.
func (r *Registry) Lookup(year int) (Dataset, error) {
	d, ok := r.datasets[year]
	if !ok {
		return Dataset{}, eris.Wrapf(ErrUnknownYear, "registry: year %d", year)
	}
	return d, nil
}

// Years returns every registered year in registration order.
func (r *Registry) Years() []int {
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultYear returns the first registered year, or 0 for an empty registry.
func (r *Registry) DefaultYear() int {
	if len(r.order) == 0 {
		return 0
	}
	return r.order[0]
}

// Fine returns the fine-grained layer description.
func (r *Registry) Fine() FineLayer {
	return r.fine
}

// WithFine returns a copy of r using fine as the drill-down layer. Empty
// fields keep their current value.
func (r *Registry) WithFine(fine FineLayer) *Registry {
	out := r.clone()
	if fine.URL != "" {
		out.fine.URL = fine.URL
	}
	if fine.CodeColumn != "" {
		out.fine.CodeColumn = fine.CodeColumn
	}
	if fine.NameColumn != "" {
		out.fine.NameColumn = fine.NameColumn
	}
	return out
}

// ResolvePaths returns a copy of r with relative results paths joined to dir.
// Remote boundary URLs and absolute paths are left alone.
func (r *Registry) ResolvePaths(dir string) *Registry {
	out := r.clone()
	if dir == "" {
		return out
	}
	for year, d := range out.datasets {
		if !filepath.IsAbs(d.ResultsPath) && !isRemote(d.ResultsPath) {
			d.ResultsPath = filepath.Join(dir, d.ResultsPath)
		}
		if !filepath.IsAbs(d.BoundaryURL) && !isRemote(d.BoundaryURL) {
			d.BoundaryURL = filepath.Join(dir, d.BoundaryURL)
		}
		out.datasets[year] = d
	}
	return out
}

func (r *Registry) clone() *Registry {
	out := &Registry{
		datasets: make(map[int]Dataset, len(r.datasets)),
		order:    r.Years(),
		fine:     r.fine,
	}
	for k, v := range r.datasets {
		out.datasets[k] = v
	}
	return out
}

// ParseYear parses a year parameter. An empty string selects the default year.
func (r *Registry) ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return r.DefaultYear(), nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(ErrUnknownYear, "registry: year %q", s)
	}
	if _, err := r.Lookup(year); err != nil {
		return 0, err
	}
	return year, nil
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

type fileDoc struct {
	Fine     FineLayer `yaml:"fine"`
	Datasets []Dataset `yaml:"datasets"`
}

// LoadFile reads a registry from a YAML file of the form
//
//	fine: {url: ..., code_column: LSOA21CD, name_column: LSOA21NM}
//	datasets:
//	  - year: 2024
//	    boundary_url: https://...
//	    results_path: HoC-GE2024-results-by-constituency.csv
//	    name_column: PCON24NM
//	    code_column: PCON24CD
//
// A missing fine section falls back to the built-in LSOA layer.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "registry: parse file")
	}
	if len(doc.Datasets) == 0 {
		return nil, eris.Errorf("registry: %s lists no datasets", path)
	}

	fine := DefaultFineLayer()
	if doc.Fine.URL != "" {
		fine.URL = doc.Fine.URL
	}
	if doc.Fine.CodeColumn != "" {
		fine.CodeColumn = doc.Fine.CodeColumn
	}
	if doc.Fine.NameColumn != "" {
		fine.NameColumn = doc.Fine.NameColumn
	}

	return New(fine, doc.Datasets...)
}
