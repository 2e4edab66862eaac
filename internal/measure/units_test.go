package measure

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return math.Abs(a-b) <= 1e-6*scale
}

func TestConvertTemperature(t *testing.T) {
	table := Default()

	tests := []struct {
		name     string
		value    float64
		from, to string
		want     float64
	}{
		{"freezing c to f", 0, "c", "f", 32},
		{"boiling f to c", 212, "f", "c", 100},
		{"freezing c to k", 0, "c", "k", 273.15},
		{"absolute zero k to f", 0, "k", "f", -459.67},
		{"body temp f to k", 98.6, "f", "k", 310.15},
		{"k to c", 300, "K", "C", 26.85},
		{"identity", -40, "f", "f", -40},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := table.Convert(tc.value, QuantityTemperature, tc.from, tc.to)
			if err != nil {
				t.Fatalf("Convert returned error: %v", err)
			}
			if !almostEqual(got, tc.want) {
				t.Fatalf("Convert(%v, %q, %q) = %v; want %v", tc.value, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestConvertMultiplicative(t *testing.T) {
	table := Default()

	tests := []struct {
		name     string
		q        Quantity
		value    float64
		from, to string
		want     float64
	}{
		{"km to m", QuantityLength, 1.5, "km", "m", 1500},
		{"ft to in", QuantityLength, 1, "ft", "in", 12},
		{"mi to km", QuantityLength, 1, "mi", "km", 1.609344},
		{"kg to lb", QuantityMass, 100, "kg", "lb", 220.46244},
		{"oz to g", QuantityMass, 1, "oz", "g", 28.3495},
		{"ha to acre", QuantityArea, 1, "ha", "acre", 2.4710538},
		{"same unit", QuantityMass, 80, "kg", "kg", 80},
		{"zero", QuantityLength, 0, "m", "ft", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := table.Convert(tc.value, tc.q, tc.from, tc.to)
			if err != nil {
				t.Fatalf("Convert returned error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-4*math.Max(1, math.Abs(tc.want)) {
				t.Fatalf("Convert(%v, %q, %q) = %v; want %v", tc.value, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestConvertRoundTrip(t *testing.T) {
	table := Default()
	samples := []float64{-273.15, -1, 0, 0.001, 1, 42.42, 1e6}

	for _, q := range table.Quantities() {
		units, err := table.Units(q)
		if err != nil {
			t.Fatalf("Units(%s): %v", q, err)
		}
		for _, a := range units {
			for _, b := range units {
				for _, v := range samples {
					there, err := table.Convert(v, q, a.Symbol, b.Symbol)
					if err != nil {
						t.Fatalf("Convert %s->%s: %v", a.Symbol, b.Symbol, err)
					}
					back, err := table.Convert(there, q, b.Symbol, a.Symbol)
					if err != nil {
						t.Fatalf("Convert %s->%s: %v", b.Symbol, a.Symbol, err)
					}
					if !almostEqual(back, v) {
						t.Fatalf("%s round trip %s->%s->%s: got %v want %v", q, a.Symbol, b.Symbol, a.Symbol, back, v)
					}
				}
			}
		}
	}
}

func TestConvertUnsupportedUnit(t *testing.T) {
	table := Default()

	if _, err := table.Convert(1, QuantityLength, "kg", "m"); !errors.Is(err, ErrUnsupportedUnit) {
		t.Fatalf("expected ErrUnsupportedUnit for cross-quantity unit, got %v", err)
	}
	if _, err := table.Convert(1, QuantityTemperature, "c", "rankine"); !errors.Is(err, ErrUnsupportedUnit) {
		t.Fatalf("expected ErrUnsupportedUnit for unknown temperature scale, got %v", err)
	}
	_, err := table.Convert(1, Quantity("volume"), "l", "ml")
	if !errors.Is(err, ErrUnsupportedUnit) || !errors.Is(err, ErrUnknownQuantity) {
		t.Fatalf("expected ErrUnsupportedUnit wrapping ErrUnknownQuantity, got %v", err)
	}
}

func TestRegisterRejectsBrokenInvariants(t *testing.T) {
	table := NewTable()
	if err := table.Register(Unit{Symbol: "m", Quantity: QuantityLength, Factor: 1, Base: true}); err != nil {
		t.Fatalf("register base: %v", err)
	}

	cases := map[string]Unit{
		"second base":   {Symbol: "km", Quantity: QuantityLength, Factor: 1, Base: true},
		"zero factor":   {Symbol: "x", Quantity: QuantityLength, Factor: 0},
		"negative":      {Symbol: "y", Quantity: QuantityLength, Factor: -2},
		"duplicate":     {Symbol: "M", Quantity: QuantityLength, Factor: 1},
		"temperature":   {Symbol: "r", Quantity: QuantityTemperature, Factor: 1},
		"base not one":  {Symbol: "g", Quantity: QuantityMass, Factor: 0.001, Base: true},
		"missing input": {Quantity: QuantityMass, Factor: 1},
	}
	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			if err := table.Register(u); !errors.Is(err, ErrInvalidUnit) {
				t.Fatalf("expected ErrInvalidUnit, got %v", err)
			}
		})
	}
}

func TestDefaultPair(t *testing.T) {
	table := Default()
	want := map[Quantity][2]string{
		QuantityLength:      {"m", "ft"},
		QuantityMass:        {"kg", "lb"},
		QuantityTemperature: {"c", "f"},
		QuantityArea:        {"m2", "ft2"},
	}
	for q, pair := range want {
		from, to, err := table.DefaultPair(q)
		if err != nil {
			t.Fatalf("DefaultPair(%s): %v", q, err)
		}
		if from != pair[0] || to != pair[1] {
			t.Fatalf("DefaultPair(%s) = %s,%s; want %s,%s", q, from, to, pair[0], pair[1])
		}
	}
}

func TestValueToDoesNotMutate(t *testing.T) {
	table := Default()
	v, err := NewValue(table, 175, QuantityLength, "cm")
	if err != nil {
		t.Fatalf("NewValue: %v", err)
	}
	inches, err := v.To(table, "in")
	if err != nil {
		t.Fatalf("To: %v", err)
	}
	if v.Magnitude != 175 || v.Unit != "cm" {
		t.Fatalf("receiver mutated: %+v", v)
	}
	if !almostEqual(inches.Magnitude, 68.8976378) || inches.Unit != "in" {
		t.Fatalf("unexpected conversion %+v", inches)
	}
	if _, err := NewValue(table, 1, QuantityMass, "cm"); !errors.Is(err, ErrUnsupportedUnit) {
		t.Fatalf("expected ErrUnsupportedUnit, got %v", err)
	}
}
