package calc

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"finitefield.org/toolskit/internal/classify"
	"finitefield.org/toolskit/internal/validate"
)

var (
	// ErrUnknownTool is returned when a tool name is not registered.
	ErrUnknownTool = errors.New("calc: unknown tool")
	// ErrUnknownField is returned when a field is not part of the tool schema.
	ErrUnknownField = errors.New("calc: unknown field")
	// ErrInvalidInput signals a precondition violation: the engine was called with unvalidated input.
	ErrInvalidInput = errors.New("calc: invalid input")
)

// Result is the immutable outcome of one successful calculation.
type Result struct {
	Tool        string             `json:"tool"`
	Value       float64            `json:"value"`
	Unit        string             `json:"unit,omitempty"`
	Label       string             `json:"label,omitempty"`
	Description string             `json:"description,omitempty"`
	Risk        string             `json:"risk,omitempty"`
	Badge       string             `json:"badge,omitempty"`
	Details     map[string]float64 `json:"details,omitempty"`
}

func (r Result) clone() Result {
	if r.Details != nil {
		details := make(map[string]float64, len(r.Details))
		for k, v := range r.Details {
			details[k] = v
		}
		r.Details = details
	}
	return r
}

// Outcome is what a formula returns before rounding and classification.
type Outcome struct {
	Value   float64
	Unit    string
	Details map[string]float64
	// Label overrides classification when the formula has nothing to classify.
	Label       string
	Description string
}

// Tool is the shape shared by every calculator: validate, calculate, classify.
type Tool interface {
	Name() string
	Title() string
	Schema(values map[string]string) validate.Schema
	Defaults() map[string]string
	Calculate(values map[string]string) (Result, error)
}

// Definition configures a Tool from a field list, a formula and a band table.
type Definition struct {
	ToolName  string
	ToolTitle string
	Fields    validate.Schema
	// ExtraFields contributes fields that depend on the current values (e.g. GPA course rows).
	ExtraFields func(values map[string]string) validate.Schema
	Initial     map[string]string
	// Precision is the number of decimals kept; Significant, when positive,
	// keeps that many significant digits instead.
	Precision   int
	Significant int
	Metric      classify.Metric
	Formula     func(in Inputs) (Outcome, error)
	// OnChange lets a tool adjust dependent values when a field changes.
	OnChange func(field string, values map[string]string)
	// Classifier defaults to classify.Default().
	Classifier *classify.Registry
}

// Name implements Tool.
func (d *Definition) Name() string { return d.ToolName }

// Title implements Tool.
func (d *Definition) Title() string { return d.ToolTitle }

// Schema implements Tool.
func (d *Definition) Schema(values map[string]string) validate.Schema {
	if d.ExtraFields == nil {
		return d.Fields
	}
	out := make(validate.Schema, 0, len(d.Fields)+4)
	out = append(out, d.Fields...)
	return append(out, d.ExtraFields(values)...)
}

// Defaults implements Tool.
func (d *Definition) Defaults() map[string]string {
	return copyValues(d.Initial)
}

// Calculate implements Tool. Callers validate first; the formula does not re-validate.
func (d *Definition) Calculate(values map[string]string) (Result, error) {
	if d.Formula == nil {
		return Result{}, fmt.Errorf("calc: %s has no formula", d.ToolName)
	}
	outcome, err := d.Formula(Inputs{values: values})
	if err != nil {
		return Result{}, err
	}
	value := Round(outcome.Value, d.Precision)
	if d.Significant > 0 {
		value = RoundSignificant(outcome.Value, d.Significant)
	}
	result := Result{
		Tool:        d.ToolName,
		Value:       value,
		Unit:        outcome.Unit,
		Label:       outcome.Label,
		Description: outcome.Description,
		Details:     outcome.Details,
	}
	if d.Metric != "" && outcome.Label == "" {
		registry := d.Classifier
		if registry == nil {
			registry = classify.Default()
		}
		band, err := registry.Classify(d.Metric, result.Value)
		if err != nil {
			return Result{}, err
		}
		result.Label = band.Label
		result.Description = band.Description
		result.Risk = band.Risk
		result.Badge = band.Badge
	}
	return result.clone(), nil
}

// Inputs gives formulas typed access to validated raw values.
type Inputs struct {
	values map[string]string
}

// NewInputs wraps values for direct formula calls.
func NewInputs(values map[string]string) Inputs { return Inputs{values: values} }

// String returns the trimmed, lower-cased value for selectors.
func (in Inputs) String(name string) string {
	return strings.ToLower(strings.TrimSpace(in.values[name]))
}

// Raw returns the trimmed value without case folding.
func (in Inputs) Raw(name string) string {
	return strings.TrimSpace(in.values[name])
}

// Number parses a validated numeric field.
func (in Inputs) Number(name string) (float64, error) {
	v, err := validate.ParseNumber(in.values[name])
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidInput, name, in.values[name])
	}
	return v, nil
}

// NumberOr parses an optional numeric field, returning fallback when empty.
func (in Inputs) NumberOr(name string, fallback float64) (float64, error) {
	if strings.TrimSpace(in.values[name]) == "" {
		return fallback, nil
	}
	return in.Number(name)
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// RoundSignificant keeps digits significant digits, so tiny magnitudes survive.
func RoundSignificant(v float64, digits int) float64 {
	if digits <= 0 || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', digits, 64), 64)
	if err != nil {
		return v
	}
	return out
}

// Registry is the tool catalogue.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry registers the supplied tools by name.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// DefaultRegistry contains the BMI, GPA and unit converter tools.
func DefaultRegistry() *Registry {
	return NewRegistry(NewBMITool(), NewGPATool(), NewConverterTool(nil))
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.tools[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t, nil
}

// Tools lists the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// FieldChanged runs the OnChange hook, if any.
func (d *Definition) FieldChanged(field string, values map[string]string) {
	if d.OnChange != nil {
		d.OnChange(field, values)
	}
}
