package calc

import (
	"fmt"

	"finitefield.org/toolskit/internal/measure"
	"finitefield.org/toolskit/internal/validate"
)

const (
	ToolConverter = "converter"

	// ConverterSignificantDigits is how many significant digits conversions keep.
	ConverterSignificantDigits = 6
)

// NewConverterTool builds the unit converter over table, or measure.Default() when nil.
// Switching category resets from/to to the category's default pair.
func NewConverterTool(table *measure.Table) Tool {
	if table == nil {
		table = measure.Default()
	}
	categories := make([]string, 0, 5)
	for _, q := range table.Quantities() {
		categories = append(categories, string(q))
	}
	categories = append(categories, "weight")

	unitRule := validate.RuleFunc(func(field, raw string, mode validate.Mode) *validate.FieldError {
		q, err := measure.ParseQuantity(mode.Get("category", string(measure.QuantityLength)))
		if err != nil {
			return &validate.FieldError{Field: field, Kind: validate.KindOutOfRange, Message: "select a category first"}
		}
		if _, err := table.Lookup(q, raw); err != nil {
			return &validate.FieldError{Field: field, Kind: validate.KindOutOfRange, Message: fmt.Sprintf("is not a %s unit", q)}
		}
		return nil
	})
	numberRule := validate.RuleFunc(func(field, raw string, _ validate.Mode) *validate.FieldError {
		if _, err := validate.ParseNumber(raw); err != nil {
			return &validate.FieldError{Field: field, Kind: validate.KindNotANumber, Message: "must be a number"}
		}
		return nil
	})

	from, to, _ := table.DefaultPair(measure.QuantityLength)
	return &Definition{
		ToolName:  ToolConverter,
		ToolTitle: "Unit Converter",
		Fields: validate.Schema{
			{Name: "category", Label: "Category", Required: true, Rule: validate.OneOfRule{Options: categories}},
			{Name: "from", Label: "From unit", Required: true, Rule: unitRule},
			{Name: "to", Label: "To unit", Required: true, Rule: unitRule},
			{Name: "value", Label: "Value", Required: true, Rule: numberRule},
		},
		Initial: map[string]string{
			"category": string(measure.QuantityLength),
			"from":     from,
			"to":       to,
			"value":    "",
		},
		Precision:   -1,
		Significant: ConverterSignificantDigits,
		Formula: func(in Inputs) (Outcome, error) {
			return convertFormula(table, in)
		},
		OnChange: func(field string, values map[string]string) {
			if field != "category" {
				return
			}
			q, err := measure.ParseQuantity(values["category"])
			if err != nil {
				return
			}
			if from, to, err := table.DefaultPair(q); err == nil {
				values["from"], values["to"] = from, to
			}
		},
	}
}

func convertFormula(table *measure.Table, in Inputs) (Outcome, error) {
	q, err := measure.ParseQuantity(in.String("category"))
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	value, err := in.Number("value")
	if err != nil {
		return Outcome{}, err
	}
	from, to := in.String("from"), in.String("to")
	out, err := table.Convert(value, q, from, to)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Outcome{
		Value:       out,
		Unit:        to,
		Label:       fmt.Sprintf("%s → %s", from, to),
		Description: string(q),
		Details:     map[string]float64{"input": value},
	}, nil
}
