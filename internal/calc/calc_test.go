package calc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"finitefield.org/toolskit/internal/validate"
)

func TestComputeBMI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		weightKg float64
		heightCm float64
		want     float64
	}{
		{name: "normal", weightKg: 70, heightCm: 175, want: 22.9},
		{name: "underweight", weightKg: 45, heightCm: 170, want: 15.6},
		{name: "zero height", weightKg: 70, heightCm: 0, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ComputeBMI(tt.weightKg, tt.heightCm); got != tt.want {
				t.Fatalf("ComputeBMI(%v, %v) = %v, want %v", tt.weightKg, tt.heightCm, got, tt.want)
			}
		})
	}
}

func TestBMIToolClassifies(t *testing.T) {
	t.Parallel()

	tool := NewBMITool()
	result, err := tool.Calculate(map[string]string{
		"age": "30", "height_unit": "cm", "height_cm": "175", "weight_unit": "kg", "weight": "70",
	})
	require.NoError(t, err)
	require.Equal(t, 22.9, result.Value)
	require.Equal(t, "Normal weight", result.Label)
	require.NotEmpty(t, result.Risk)
	require.Equal(t, 56.7, result.Details["healthy_weight_min"])

	result, err = tool.Calculate(map[string]string{
		"age": "30", "height_unit": "ft_in", "height_ft": "5", "height_in": "9", "weight_unit": "lb", "weight": "154",
	})
	require.NoError(t, err)
	require.Equal(t, 175.3, result.Details["height_cm"])
	require.Equal(t, 22.7, result.Value)
}

func TestComputeGPA(t *testing.T) {
	t.Parallel()

	sum := ComputeGPA([]Course{
		{Name: "Calculus", Grade: "A", Credits: 3},
		{Name: "Physics", Grade: "B", Credits: 4},
		{Name: "History", Grade: "a-", Credits: 3},
	})
	require.Equal(t, 3.51, sum.GPA)
	require.Equal(t, 10.0, sum.TotalCredits)
	require.Equal(t, 35.1, sum.QualityPoints)
	require.Equal(t, 3, sum.CountedCourses)

	sum = ComputeGPA([]Course{{Name: "Audit", Credits: 3}, {Name: "Seminar", Grade: "A", Credits: 0}})
	require.Zero(t, sum.GPA)
	require.Zero(t, sum.TotalCredits)
	require.Zero(t, sum.CountedCourses)
}

func TestGPAToolHonorsAndEmptyCourses(t *testing.T) {
	t.Parallel()

	tool := NewGPATool()
	values := tool.Defaults()
	values["grade.1"] = "A"
	values["grade.2"] = "B"
	values["credits.2"] = "4"
	values["grade.3"] = "A-"
	result, err := tool.Calculate(values)
	require.NoError(t, err)
	require.Equal(t, 3.51, result.Value)
	require.Equal(t, "Cum Laude", result.Label)
	require.Equal(t, 3.0, result.Details["counted_courses"])

	result, err = tool.Calculate(tool.Defaults())
	require.NoError(t, err)
	require.Zero(t, result.Value)
	require.Equal(t, "No graded courses", result.Label)
}

func TestGPASessionExcludesNonPositiveCredits(t *testing.T) {
	t.Parallel()

	s := NewSession(NewGPATool())
	require.NoError(t, s.UpdateField("grade.1", "A"))
	require.NoError(t, s.UpdateField("credits.1", "3"))
	require.NoError(t, s.UpdateField("grade.2", "B"))
	require.NoError(t, s.UpdateField("credits.2", "-2"))
	require.True(t, s.Submit())

	snap := s.Snapshot()
	require.Equal(t, StateComplete, snap.State)
	require.Empty(t, snap.Errors)
	require.Equal(t, 4.0, snap.Result.Value)
	require.Equal(t, 1.0, snap.Result.Details["counted_courses"])
	require.Equal(t, 3.0, snap.Result.Details["listed_courses"])
	require.Equal(t, "-2", snap.Values["credits.2"])
}

func TestGPAExtraRowsJoinSchema(t *testing.T) {
	t.Parallel()

	tool := NewGPATool()
	values := tool.Defaults()
	values["grade.5"] = "Z"
	values["credits.5"] = "31"
	errs := tool.Schema(values).ValidateAll(values, validate.Mode(values))
	require.Len(t, errs, 2)
	require.Contains(t, errs, "grade.5")
	require.Contains(t, errs, "credits.5")
}

func TestConverterTool(t *testing.T) {
	t.Parallel()

	tool := NewConverterTool(nil)
	result, err := tool.Calculate(map[string]string{"category": "temperature", "from": "c", "to": "f", "value": "100"})
	require.NoError(t, err)
	require.Equal(t, 212.0, result.Value)
	require.Equal(t, "f", result.Unit)

	result, err = tool.Calculate(map[string]string{"category": "weight", "from": "kg", "to": "lb", "value": "1"})
	require.NoError(t, err)
	require.Equal(t, 2.20462, result.Value)

	_, err = tool.Calculate(map[string]string{"category": "length", "from": "kg", "to": "m", "value": "1"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestConverterKeepsSignificantDigits(t *testing.T) {
	t.Parallel()

	tool := NewConverterTool(nil)
	tests := []struct {
		category, from, to, value string
		want                      float64
	}{
		{category: "mass", from: "mg", to: "t", value: "1", want: 1e-9},
		{category: "area", from: "cm2", to: "km2", value: "1", want: 1e-10},
		{category: "length", from: "mm", to: "mi", value: "1", want: 6.21371e-7},
		{category: "length", from: "mi", to: "mm", value: "1", want: 1.60934e6},
	}
	for _, tt := range tests {
		t.Run(tt.from+"_"+tt.to, func(t *testing.T) {
			result, err := tool.Calculate(map[string]string{"category": tt.category, "from": tt.from, "to": tt.to, "value": tt.value})
			require.NoError(t, err)
			require.InEpsilon(t, tt.want, result.Value, 1e-9)
		})
	}

	s := NewSession(tool)
	require.NoError(t, s.UpdateField("category", "mass"))
	require.NoError(t, s.UpdateField("from", "mg"))
	require.NoError(t, s.UpdateField("to", "t"))
	require.NoError(t, s.UpdateField("value", "250"))
	require.True(t, s.Submit())
	require.Equal(t, 2.5e-7, s.Snapshot().Result.Value)
}

func TestSessionSubmitTransitions(t *testing.T) {
	t.Parallel()

	var seen []State
	s := NewSession(NewBMITool(), WithStateObserver(func(st State) { seen = append(seen, st) }))
	require.Equal(t, StateIdle, s.State())

	require.False(t, s.Submit())
	require.Equal(t, []State{StateValidating, StateInvalid}, seen)
	snap := s.Snapshot()
	require.Nil(t, snap.Result)
	require.NotEmpty(t, snap.Errors)

	require.NoError(t, s.UpdateField("age", "30"))
	require.Equal(t, StateIdle, s.State())
	require.NoError(t, s.UpdateField("height_cm", "175"))
	require.NoError(t, s.UpdateField("weight", "70"))

	seen = nil
	require.True(t, s.Submit())
	require.Equal(t, []State{StateValidating, StateCalculating, StateComplete}, seen)
	snap = s.Snapshot()
	require.NotNil(t, snap.Result)
	require.Equal(t, 22.9, snap.Result.Value)
	require.Empty(t, snap.Errors)

	require.NoError(t, s.UpdateField("weight", "71"))
	require.Equal(t, StateIdle, s.State())
	require.Nil(t, s.Snapshot().Result)
}

func TestSessionUpdateClearsOnlyThatFieldError(t *testing.T) {
	t.Parallel()

	s := NewSession(NewBMITool())
	require.NoError(t, s.UpdateField("weight", "5"))
	require.False(t, s.Submit())
	errs := s.Snapshot().Errors
	require.Len(t, errs, 3) // age, height_cm, weight

	require.NoError(t, s.UpdateField("weight", "6"))
	fields := map[string]bool{}
	for _, fe := range s.Snapshot().Errors {
		fields[fe.Field] = true
	}
	require.False(t, fields["weight"])
	require.True(t, fields["age"])

	fe := s.ValidateField("weight")
	require.NotNil(t, fe)
	require.Equal(t, validate.KindOutOfRange, fe.Kind)
}

func TestSessionCalculationFailureExplainsItself(t *testing.T) {
	t.Parallel()

	tool := &Definition{
		ToolName: "broken",
		Fields:   validate.Schema{{Name: "x", Required: true, Rule: validate.RangeRule{Min: 0, Max: 10}}},
		Initial:  map[string]string{"x": "1"},
		Formula: func(Inputs) (Outcome, error) {
			return Outcome{}, errors.New("division by zero")
		},
	}
	s := NewSession(tool)
	require.False(t, s.Submit())

	snap := s.Snapshot()
	require.Equal(t, StateInvalid, snap.State)
	require.Nil(t, snap.Result)
	require.Len(t, snap.Errors, 1)
	require.Equal(t, validate.FormField, snap.Errors[0].Field)
	require.Equal(t, validate.KindCalculation, snap.Errors[0].Kind)

	require.NoError(t, s.UpdateField("x", "2"))
	require.Equal(t, StateIdle, s.State())
	require.Empty(t, s.Snapshot().Errors)
}

func TestSessionResetIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewSession(NewBMITool())
	require.NoError(t, s.UpdateField("age", "30"))
	require.NoError(t, s.UpdateField("height_cm", "175"))
	require.NoError(t, s.UpdateField("weight", "70"))
	require.True(t, s.Submit())

	s.Reset()
	first := s.Snapshot()
	s.Reset()
	second := s.Snapshot()
	require.Equal(t, first, second)
	require.Equal(t, StateIdle, second.State)
	require.Nil(t, second.Result)
	require.Equal(t, NewBMITool().Defaults(), second.Values)
}

func TestSessionUnknownField(t *testing.T) {
	t.Parallel()

	s := NewSession(NewBMITool())
	err := s.UpdateField("shoe_size", "42")
	require.True(t, errors.Is(err, ErrUnknownField))

	gpa := NewSession(NewGPATool())
	require.NoError(t, gpa.UpdateField("grade.7", "B"))
	require.Contains(t, gpa.Snapshot().Values, "grade.7")
}

func TestConverterCategorySwitchResetsUnits(t *testing.T) {
	t.Parallel()

	s := NewSession(NewConverterTool(nil))
	require.Equal(t, "m", s.Snapshot().Values["from"])

	require.NoError(t, s.UpdateField("category", "temperature"))
	values := s.Snapshot().Values
	require.Equal(t, "c", values["from"])
	require.Equal(t, "f", values["to"])

	require.NoError(t, s.UpdateField("value", "0"))
	require.True(t, s.Submit())
	require.Equal(t, 32.0, s.Snapshot().Result.Value)
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	tool, err := r.Lookup(" BMI ")
	require.NoError(t, err)
	require.Equal(t, ToolBMI, tool.Name())

	_, err = r.Lookup("password")
	require.ErrorIs(t, err, ErrUnknownTool)

	names := []string{}
	for _, tl := range r.Tools() {
		names = append(names, tl.Name())
	}
	require.Equal(t, []string{ToolBMI, ToolConverter, ToolGPA}, names)
}
