package measure

import (
	"fmt"
	"strconv"
)

// Value is a magnitude tagged with its unit and quantity.
type Value struct {
	Magnitude float64
	Unit      string
	Quantity  Quantity
}

// NewValue tags magnitude with unit after checking the unit belongs to q.
func NewValue(t *Table, magnitude float64, q Quantity, unit string) (Value, error) {
	u, err := t.Lookup(q, unit)
	if err != nil {
		return Value{}, err
	}
	return Value{Magnitude: magnitude, Unit: u.Symbol, Quantity: q}, nil
}

// To returns a new Value expressed in unit. The receiver is left untouched.
func (v Value) To(t *Table, unit string) (Value, error) {
	converted, err := t.Convert(v.Magnitude, v.Quantity, v.Unit, unit)
	if err != nil {
		return Value{}, err
	}
	return Value{Magnitude: converted, Unit: normalizeSymbol(unit), Quantity: v.Quantity}, nil
}

func (v Value) String() string {
	return fmt.Sprintf("%s %s", strconv.FormatFloat(v.Magnitude, 'g', -1, 64), v.Unit)
}
