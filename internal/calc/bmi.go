package calc

import (
	"finitefield.org/toolskit/internal/classify"
	"finitefield.org/toolskit/internal/validate"
)

const (
	ToolBMI = "bmi"

	cmPerInch = 2.54
	kgPerLb   = 0.453592

	healthyBMIMin = 18.5
	healthyBMIMax = 24.9
)

// HeightToCM converts a feet + inches height to centimeters.
func HeightToCM(feet, inches float64) float64 {
	return (feet*12 + inches) * cmPerInch
}

// PoundsToKG converts pounds to kilograms.
func PoundsToKG(lbs float64) float64 {
	return lbs * kgPerLb
}

// ComputeBMI returns kg / m² rounded to one decimal.
func ComputeBMI(weightKg, heightCm float64) float64 {
	m := heightCm / 100
	if m <= 0 {
		return 0
	}
	return Round(weightKg/(m*m), 1)
}

// HealthyWeightRange returns the weight range in kg that keeps BMI within 18.5–24.9.
func HealthyWeightRange(heightCm float64) (float64, float64) {
	m := heightCm / 100
	return Round(healthyBMIMin*m*m, 1), Round(healthyBMIMax*m*m, 1)
}

func isFeetInches(m validate.Mode) bool  { return m.Get("height_unit", "cm") == "ft_in" }
func isCentimeters(m validate.Mode) bool { return !isFeetInches(m) }

// NewBMITool builds the BMI calculator. Age and gender are collected for display
// and validated, but do not enter the formula.
func NewBMITool() Tool {
	return &Definition{
		ToolName:  ToolBMI,
		ToolTitle: "BMI Calculator",
		Fields: validate.Schema{
			{Name: "age", Label: "Age", Required: true, Rule: validate.RangeRule{Min: 2, Max: 120, Unit: "years"}},
			{Name: "gender", Label: "Gender", Rule: validate.OneOfRule{Options: []string{"male", "female"}}},
			{Name: "height_unit", Label: "Height unit", Required: true, Rule: validate.OneOfRule{Options: []string{"cm", "ft_in"}}},
			{Name: "height_cm", Label: "Height", Required: true, Rule: validate.RangeRule{Min: 50, Max: 250, Unit: "cm"}, When: isCentimeters},
			{Name: "height_ft", Label: "Feet", Required: true, Rule: validate.RangeRule{Min: 1, Max: 8, Unit: "ft"}, When: isFeetInches},
			{Name: "height_in", Label: "Inches", Rule: validate.RangeRule{Min: 0, Max: 11.99, Unit: "in"}, When: isFeetInches},
			{Name: "weight_unit", Label: "Weight unit", Required: true, Rule: validate.OneOfRule{Options: []string{"kg", "lb"}}},
			{Name: "weight", Label: "Weight", Required: true, Rule: validate.UnitRangeRule{
				Selector: "weight_unit",
				Default:  "kg",
				Ranges: map[string]validate.RangeRule{
					"kg": {Min: 10, Max: 300, Unit: "kg"},
					"lb": {Min: 22, Max: 660, Unit: "lb"},
				},
			}},
		},
		Initial: map[string]string{
			"age":         "",
			"gender":      "",
			"height_unit": "cm",
			"height_cm":   "",
			"height_ft":   "",
			"height_in":   "",
			"weight_unit": "kg",
			"weight":      "",
		},
		Precision: 1,
		Metric:    classify.MetricBMI,
		Formula:   bmiFormula,
	}
}

func bmiFormula(in Inputs) (Outcome, error) {
	var heightCm float64
	if in.String("height_unit") == "ft_in" {
		feet, err := in.Number("height_ft")
		if err != nil {
			return Outcome{}, err
		}
		inches, err := in.NumberOr("height_in", 0)
		if err != nil {
			return Outcome{}, err
		}
		heightCm = HeightToCM(feet, inches)
	} else {
		cm, err := in.Number("height_cm")
		if err != nil {
			return Outcome{}, err
		}
		heightCm = cm
	}

	weight, err := in.Number("weight")
	if err != nil {
		return Outcome{}, err
	}
	weightKg := weight
	if in.String("weight_unit") == "lb" {
		weightKg = PoundsToKG(weight)
	}

	low, high := HealthyWeightRange(heightCm)
	return Outcome{
		Value: ComputeBMI(weightKg, heightCm),
		Unit:  "kg/m²",
		Details: map[string]float64{
			"height_cm":          Round(heightCm, 1),
			"weight_kg":          Round(weightKg, 1),
			"healthy_weight_min": low,
			"healthy_weight_max": high,
		},
	}, nil
}
