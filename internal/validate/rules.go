// Package validate evaluates per-field rules over raw form input. Rules are
// pure: the verdict depends only on the raw string and the selected unit mode.
package validate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind classifies a field error.
type Kind string

const (
	KindMissingInput Kind = "missing_input"
	KindOutOfRange   Kind = "out_of_range"
	KindNotANumber   Kind = "not_a_number"
	// KindCalculation marks a form-level failure after every field passed.
	KindCalculation Kind = "calculation_failed"
)

// FormField is the Field of errors that belong to the whole form.
const FormField = "_form"

// FieldError is a user-facing validation failure for one field.
type FieldError struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Mode carries the unit selectors active when validating, e.g. {"weight_unit": "lb"}.
type Mode map[string]string

// Get returns the selector value, or fallback when unset.
func (m Mode) Get(key, fallback string) string {
	if v := strings.TrimSpace(m[key]); v != "" {
		return strings.ToLower(v)
	}
	return fallback
}

// Rule checks a raw value that is already known to be non-empty.
type Rule interface {
	Check(field, raw string, mode Mode) *FieldError
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(field, raw string, mode Mode) *FieldError

// Check implements Rule.
func (f RuleFunc) Check(field, raw string, mode Mode) *FieldError { return f(field, raw, mode) }

// RangeRule accepts numbers in [Min, Max].
type RangeRule struct {
	Min  float64
	Max  float64
	Unit string
}

// Check implements Rule.
func (r RangeRule) Check(field, raw string, _ Mode) *FieldError {
	v, err := ParseNumber(raw)
	if err != nil {
		return &FieldError{Field: field, Kind: KindNotANumber, Message: "must be a number"}
	}
	if v >= r.Min && v <= r.Max {
		return nil
	}
	return &FieldError{
		Field:   field,
		Kind:    KindOutOfRange,
		Message: fmt.Sprintf("must be between %s and %s%s", formatBound(r.Min), formatBound(r.Max), unitSuffix(r.Unit)),
	}
}

// MaxRule accepts any number up to Max, negatives included.
type MaxRule struct {
	Max  float64
	Unit string
}

// Check implements Rule.
func (r MaxRule) Check(field, raw string, _ Mode) *FieldError {
	v, err := ParseNumber(raw)
	if err != nil {
		return &FieldError{Field: field, Kind: KindNotANumber, Message: "must be a number"}
	}
	if v <= r.Max {
		return nil
	}
	return &FieldError{
		Field:   field,
		Kind:    KindOutOfRange,
		Message: fmt.Sprintf("must be at most %s%s", formatBound(r.Max), unitSuffix(r.Unit)),
	}
}

// UnitRangeRule chooses a RangeRule from the mode selector named Selector.
type UnitRangeRule struct {
	Selector string
	Default  string
	Ranges   map[string]RangeRule
}

// Check implements Rule.
func (r UnitRangeRule) Check(field, raw string, mode Mode) *FieldError {
	unit := mode.Get(r.Selector, r.Default)
	rule, ok := r.Ranges[unit]
	if !ok {
		rule, ok = r.Ranges[r.Default]
	}
	if !ok {
		return &FieldError{Field: field, Kind: KindOutOfRange, Message: fmt.Sprintf("unsupported unit %q", unit)}
	}
	return rule.Check(field, raw, mode)
}

// OneOfRule accepts one of a fixed set of options, compared case-insensitively.
type OneOfRule struct {
	Options []string
}

// Check implements Rule.
func (r OneOfRule) Check(field, raw string, _ Mode) *FieldError {
	for _, opt := range r.Options {
		if strings.EqualFold(opt, raw) {
			return nil
		}
	}
	return &FieldError{Field: field, Kind: KindOutOfRange, Message: fmt.Sprintf("must be one of %s", strings.Join(r.Options, ", "))}
}

// Field describes one input of a tool form.
type Field struct {
	Name     string
	Label    string
	Required bool
	Rule     Rule
	// When returns false the field is skipped for the current mode
	// (e.g. the inches field when height is entered in centimeters).
	When func(Mode) bool
}

// Active reports whether the field participates under mode.
func (f Field) Active(mode Mode) bool {
	return f.When == nil || f.When(mode)
}

// Validate applies the required check, then the field's rule.
func (f Field) Validate(raw string, mode Mode) *FieldError {
	if strings.TrimSpace(raw) == "" {
		if f.Required {
			return &FieldError{Field: f.Name, Kind: KindMissingInput, Message: fmt.Sprintf("%s is required", labelOrName(f))}
		}
		return nil
	}
	if f.Rule == nil {
		return nil
	}
	return f.Rule.Check(f.Name, strings.TrimSpace(raw), mode)
}

// Schema is the ordered field list of a tool.
type Schema []Field

// Field returns the field named name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks a single field; unknown fields are valid.
func (s Schema) Validate(name, raw string, mode Mode) *FieldError {
	f, ok := s.Field(name)
	if !ok || !f.Active(mode) {
		return nil
	}
	return f.Validate(raw, mode)
}

// ValidateAll checks every active field independently.
func (s Schema) ValidateAll(values map[string]string, mode Mode) Errors {
	errs := Errors{}
	for _, f := range s {
		if !f.Active(mode) {
			continue
		}
		if fe := f.Validate(values[f.Name], mode); fe != nil {
			errs[f.Name] = fe
		}
	}
	return errs
}

// Errors maps field names to their current error.
type Errors map[string]*FieldError

// Messages flattens errors to field → message.
func (e Errors) Messages() map[string]string {
	out := make(map[string]string, len(e))
	for k, v := range e {
		out[k] = v.Message
	}
	return out
}

// List returns the errors sorted by field name.
func (e Errors) List() []FieldError {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]FieldError, 0, len(keys))
	for _, k := range keys {
		out = append(out, *e[k])
	}
	return out
}

var errNotFinite = errors.New("validate: number is not finite")

// ParseNumber parses a trimmed decimal string, rejecting NaN and infinities.
func ParseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func labelOrName(f Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return " " + unit
}
