package measure

import "fmt"

const (
	Celsius    = "c"
	Fahrenheit = "f"
	Kelvin     = "k"

	kelvinOffset = 273.15
)

var temperatureUnits = []Unit{
	{Symbol: Celsius, Name: "Celsius", Quantity: QuantityTemperature},
	{Symbol: Fahrenheit, Name: "Fahrenheit", Quantity: QuantityTemperature},
	{Symbol: Kelvin, Name: "Kelvin", Quantity: QuantityTemperature},
}

// convertTemperature applies the pairwise affine formulas; there is no shared
// multiplicative base between the three scales.
func convertTemperature(value float64, from, to string) (float64, error) {
	if !isTemperatureUnit(from) {
		return 0, fmt.Errorf("%w: %q is not a temperature unit", ErrUnsupportedUnit, from)
	}
	if !isTemperatureUnit(to) {
		return 0, fmt.Errorf("%w: %q is not a temperature unit", ErrUnsupportedUnit, to)
	}
	if from == to {
		return value, nil
	}
	switch from + ">" + to {
	case Celsius + ">" + Fahrenheit:
		return value*9/5 + 32, nil
	case Celsius + ">" + Kelvin:
		return value + kelvinOffset, nil
	case Fahrenheit + ">" + Celsius:
		return (value - 32) * 5 / 9, nil
	case Fahrenheit + ">" + Kelvin:
		return (value-32)*5/9 + kelvinOffset, nil
	case Kelvin + ">" + Celsius:
		return value - kelvinOffset, nil
	default: // Kelvin > Fahrenheit
		return (value-kelvinOffset)*9/5 + 32, nil
	}
}

func isTemperatureUnit(symbol string) bool {
	return symbol == Celsius || symbol == Fahrenheit || symbol == Kelvin
}
