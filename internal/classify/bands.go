package classify

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Metric identifies a band table.
type Metric string

const (
	MetricBMI Metric = "bmi"
	MetricGPA Metric = "gpa"
	MetricCPS Metric = "cps"
	MetricWPM Metric = "wpm"
)

var (
	// ErrUnknownMetric is returned when no table is registered for the metric.
	ErrUnknownMetric = errors.New("classify: unknown metric")
	// ErrNotFinite is returned for NaN or infinite values.
	ErrNotFinite = errors.New("classify: value is not finite")
	// ErrInvalidBands signals a band table that is not contiguous and exhaustive.
	ErrInvalidBands = errors.New("classify: bands must be contiguous and cover the real line")
)

// Band maps the half-open range [Min, Max) to a label.
type Band struct {
	Min         float64
	Max         float64
	Label       string
	Description string
	Risk        string
	Badge       string
}

// Contains reports whether v falls in [Min, Max).
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v < b.Max
}

// Table is an ordered, contiguous set of bands for one metric.
type Table struct {
	Metric Metric
	bands  []Band
}

// NewTable sorts bands by lower bound and checks they cover (-Inf, +Inf) with no gaps or overlaps.
func NewTable(metric Metric, bands ...Band) (*Table, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: %s has no bands", ErrInvalidBands, metric)
	}
	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	if !math.IsInf(sorted[0].Min, -1) {
		return nil, fmt.Errorf("%w: %s bottom band must be open-ended", ErrInvalidBands, metric)
	}
	if !math.IsInf(sorted[len(sorted)-1].Max, 1) {
		return nil, fmt.Errorf("%w: %s top band must be open-ended", ErrInvalidBands, metric)
	}
	for i, b := range sorted {
		if !(b.Min < b.Max) {
			return nil, fmt.Errorf("%w: %s band %q is empty", ErrInvalidBands, metric, b.Label)
		}
		if i > 0 && sorted[i-1].Max != b.Min {
			return nil, fmt.Errorf("%w: %s gap or overlap between %q and %q", ErrInvalidBands, metric, sorted[i-1].Label, b.Label)
		}
	}
	return &Table{Metric: metric, bands: sorted}, nil
}

// MustTable is NewTable for package-level tables known to be valid.
func MustTable(metric Metric, bands ...Band) *Table {
	t, err := NewTable(metric, bands...)
	if err != nil {
		panic(err)
	}
	return t
}

// Bands returns a copy of the bands in ascending order.
func (t *Table) Bands() []Band {
	out := make([]Band, len(t.bands))
	copy(out, t.bands)
	return out
}

// Classify returns the band containing v.
func (t *Table) Classify(v float64) (Band, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Band{}, ErrNotFinite
	}
	idx := sort.Search(len(t.bands), func(i int) bool { return t.bands[i].Max > v })
	// The table is exhaustive, so idx is always in range for finite input.
	return t.bands[idx], nil
}

// Registry holds band tables keyed by metric.
type Registry struct {
	mu     sync.RWMutex
	tables map[Metric]*Table
}

// NewRegistry builds a registry from the supplied tables.
func NewRegistry(tables ...*Table) *Registry {
	r := &Registry{tables: make(map[Metric]*Table, len(tables))}
	for _, t := range tables {
		r.tables[t.Metric] = t
	}
	return r
}

// Register adds or replaces a table.
func (r *Registry) Register(t *Table) {
	r.mu.Lock()
	r.tables[t.Metric] = t
	r.mu.Unlock()
}

// Table returns the table for metric.
func (r *Registry) Table(metric Metric) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	return t, nil
}

// Classify looks up the metric's table and classifies value.
func (r *Registry) Classify(metric Metric, value float64) (Band, error) {
	t, err := r.Table(metric)
	if err != nil {
		return Band{}, err
	}
	return t.Classify(value)
}

var defaultRegistry = NewRegistry(BMITable, GPATable, CPSTable, WPMTable)

// Default returns the registry with the built-in tables.
func Default() *Registry { return defaultRegistry }

// Classify classifies value against the built-in table for metric.
func Classify(metric Metric, value float64) (Band, error) {
	return defaultRegistry.Classify(metric, value)
}
