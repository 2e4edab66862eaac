package measure

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Quantity names a physical dimension understood by the conversion table.
type Quantity string

const (
	QuantityLength      Quantity = "length"
	QuantityMass        Quantity = "mass"
	QuantityTemperature Quantity = "temperature"
	QuantityArea        Quantity = "area"
)

var (
	// ErrUnsupportedUnit is returned when a conversion names a unit that is not registered for the quantity.
	ErrUnsupportedUnit = errors.New("measure: unsupported unit")
	// ErrUnknownQuantity is returned when the quantity has no registered units.
	ErrUnknownQuantity = errors.New("measure: unknown quantity")
	// ErrInvalidUnit signals a registration that would break the table invariants.
	ErrInvalidUnit = errors.New("measure: invalid unit definition")
)

// Unit describes a single unit and its scale factor relative to the quantity's base unit.
type Unit struct {
	Symbol   string
	Name     string
	Quantity Quantity
	Factor   float64
	Base     bool
}

// Table maps (quantity, symbol) to scale factors. Temperature units are registered
// with a zero factor because they convert through affine formulas instead.
type Table struct {
	mu       sync.RWMutex
	units    map[Quantity]map[string]Unit
	order    map[Quantity][]string
	defaults map[Quantity][2]string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		units:    map[Quantity]map[string]Unit{},
		order:    map[Quantity][]string{},
		defaults: map[Quantity][2]string{},
	}
}

// Register adds a multiplicative unit. The base unit must carry factor 1 and be the
// only base for its quantity; every other factor must be strictly positive.
func (t *Table) Register(u Unit) error {
	symbol := normalizeSymbol(u.Symbol)
	if symbol == "" || u.Quantity == "" {
		return fmt.Errorf("%w: symbol and quantity are required", ErrInvalidUnit)
	}
	if u.Quantity == QuantityTemperature {
		return fmt.Errorf("%w: temperature units are built in", ErrInvalidUnit)
	}
	if !(u.Factor > 0) {
		return fmt.Errorf("%w: factor for %q must be positive", ErrInvalidUnit, symbol)
	}
	if u.Base && u.Factor != 1 {
		return fmt.Errorf("%w: base unit %q must have factor 1", ErrInvalidUnit, symbol)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.units[u.Quantity]
	if !ok {
		set = map[string]Unit{}
		t.units[u.Quantity] = set
	}
	if _, dup := set[symbol]; dup {
		return fmt.Errorf("%w: %q already registered for %s", ErrInvalidUnit, symbol, u.Quantity)
	}
	if u.Base {
		for _, existing := range set {
			if existing.Base {
				return fmt.Errorf("%w: %s already has base unit %q", ErrInvalidUnit, u.Quantity, existing.Symbol)
			}
		}
	}
	u.Symbol = symbol
	set[symbol] = u
	t.order[u.Quantity] = append(t.order[u.Quantity], symbol)
	return nil
}

// SetDefaultPair records the from/to pair selected when a caller switches to the quantity.
func (t *Table) SetDefaultPair(q Quantity, from, to string) error {
	from, to = normalizeSymbol(from), normalizeSymbol(to)
	if _, err := t.lookup(q, from); err != nil {
		return err
	}
	if _, err := t.lookup(q, to); err != nil {
		return err
	}
	t.mu.Lock()
	t.defaults[q] = [2]string{from, to}
	t.mu.Unlock()
	return nil
}

// DefaultPair returns the default from/to symbols for the quantity.
func (t *Table) DefaultPair(q Quantity) (string, string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pair, ok := t.defaults[q]
	if !ok {
		if _, known := t.units[q]; !known && q != QuantityTemperature {
			return "", "", fmt.Errorf("%w: %q", ErrUnknownQuantity, q)
		}
		return "", "", fmt.Errorf("%w: no default pair for %s", ErrUnknownQuantity, q)
	}
	return pair[0], pair[1], nil
}

// Quantities lists the quantities with at least one unit.
func (t *Table) Quantities() []Quantity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Quantity, 0, len(t.order)+1)
	for _, q := range []Quantity{QuantityLength, QuantityMass, QuantityTemperature, QuantityArea} {
		if q == QuantityTemperature || len(t.order[q]) > 0 {
			out = append(out, q)
		}
	}
	return out
}

// Units returns the units registered for q in registration order.
func (t *Table) Units(q Quantity) ([]Unit, error) {
	if q == QuantityTemperature {
		out := make([]Unit, len(temperatureUnits))
		copy(out, temperatureUnits)
		return out, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	symbols, ok := t.order[q]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuantity, q)
	}
	out := make([]Unit, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, t.units[q][s])
	}
	return out, nil
}

// Lookup returns the unit registered under symbol for q.
func (t *Table) Lookup(q Quantity, symbol string) (Unit, error) {
	return t.lookup(q, normalizeSymbol(symbol))
}

func (t *Table) lookup(q Quantity, symbol string) (Unit, error) {
	if q == QuantityTemperature {
		for _, u := range temperatureUnits {
			if u.Symbol == symbol {
				return u, nil
			}
		}
		return Unit{}, fmt.Errorf("%w: %q is not a temperature unit", ErrUnsupportedUnit, symbol)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	set, ok := t.units[q]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %w: %q", ErrUnsupportedUnit, ErrUnknownQuantity, q)
	}
	u, ok := set[symbol]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q is not a %s unit", ErrUnsupportedUnit, symbol, q)
	}
	return u, nil
}

// Convert expresses value, given in from, in the to unit of the same quantity.
func (t *Table) Convert(value float64, q Quantity, from, to string) (float64, error) {
	from, to = normalizeSymbol(from), normalizeSymbol(to)
	if q == QuantityTemperature {
		return convertTemperature(value, from, to)
	}
	src, err := t.lookup(q, from)
	if err != nil {
		return 0, err
	}
	dst, err := t.lookup(q, to)
	if err != nil {
		return 0, err
	}
	if src.Symbol == dst.Symbol {
		return value, nil
	}
	return value * src.Factor / dst.Factor, nil
}

func normalizeSymbol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// Default returns the shared table with the units offered by the converter.
func Default() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = mustBuildDefault()
	})
	return defaultTable
}

func mustBuildDefault() *Table {
	t := NewTable()
	units := []Unit{
		{Symbol: "m", Name: "Meter", Quantity: QuantityLength, Factor: 1, Base: true},
		{Symbol: "km", Name: "Kilometer", Quantity: QuantityLength, Factor: 1000},
		{Symbol: "cm", Name: "Centimeter", Quantity: QuantityLength, Factor: 0.01},
		{Symbol: "mm", Name: "Millimeter", Quantity: QuantityLength, Factor: 0.001},
		{Symbol: "mi", Name: "Mile", Quantity: QuantityLength, Factor: 1609.344},
		{Symbol: "yd", Name: "Yard", Quantity: QuantityLength, Factor: 0.9144},
		{Symbol: "ft", Name: "Foot", Quantity: QuantityLength, Factor: 0.3048},
		{Symbol: "in", Name: "Inch", Quantity: QuantityLength, Factor: 0.0254},

		{Symbol: "kg", Name: "Kilogram", Quantity: QuantityMass, Factor: 1, Base: true},
		{Symbol: "g", Name: "Gram", Quantity: QuantityMass, Factor: 0.001},
		{Symbol: "mg", Name: "Milligram", Quantity: QuantityMass, Factor: 1e-6},
		{Symbol: "t", Name: "Metric ton", Quantity: QuantityMass, Factor: 1000},
		{Symbol: "lb", Name: "Pound", Quantity: QuantityMass, Factor: 0.453592},
		{Symbol: "oz", Name: "Ounce", Quantity: QuantityMass, Factor: 0.0283495},

		{Symbol: "m2", Name: "Square meter", Quantity: QuantityArea, Factor: 1, Base: true},
		{Symbol: "km2", Name: "Square kilometer", Quantity: QuantityArea, Factor: 1e6},
		{Symbol: "cm2", Name: "Square centimeter", Quantity: QuantityArea, Factor: 1e-4},
		{Symbol: "ha", Name: "Hectare", Quantity: QuantityArea, Factor: 1e4},
		{Symbol: "acre", Name: "Acre", Quantity: QuantityArea, Factor: 4046.8564224},
		{Symbol: "mi2", Name: "Square mile", Quantity: QuantityArea, Factor: 2589988.110336},
		{Symbol: "ft2", Name: "Square foot", Quantity: QuantityArea, Factor: 0.09290304},
		{Symbol: "in2", Name: "Square inch", Quantity: QuantityArea, Factor: 0.00064516},
	}
	for _, u := range units {
		if err := t.Register(u); err != nil {
			panic(err)
		}
	}
	pairs := []struct {
		q        Quantity
		from, to string
	}{
		{QuantityLength, "m", "ft"},
		{QuantityMass, "kg", "lb"},
		{QuantityTemperature, "c", "f"},
		{QuantityArea, "m2", "ft2"},
	}
	for _, p := range pairs {
		if err := t.SetDefaultPair(p.q, p.from, p.to); err != nil {
			panic(err)
		}
	}
	return t
}

// ParseQuantity resolves a category name. "weight" is accepted for mass.
func ParseQuantity(s string) (Quantity, error) {
	switch q := Quantity(strings.ToLower(strings.TrimSpace(s))); q {
	case QuantityLength, QuantityMass, QuantityTemperature, QuantityArea:
		return q, nil
	case "weight":
		return QuantityMass, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownQuantity, s)
	}
}
