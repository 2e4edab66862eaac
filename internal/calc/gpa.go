package calc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"finitefield.org/toolskit/internal/classify"
	"finitefield.org/toolskit/internal/validate"
)

const (
	ToolGPA = "gpa"

	defaultCourseRows = 3
	maxCourseRows     = 20
	maxCourseCredits  = 30
)

// gradeScale is the standard 4.0 scale.
var gradeScale = []struct {
	Grade string
	Point float64
}{
	{"A+", 4.0}, {"A", 4.0}, {"A-", 3.7},
	{"B+", 3.3}, {"B", 3.0}, {"B-", 2.7},
	{"C+", 2.3}, {"C", 2.0}, {"C-", 1.7},
	{"D+", 1.3}, {"D", 1.0}, {"D-", 0.7},
	{"F", 0},
}

// Grades lists the accepted letter grades from highest to lowest.
func Grades() []string {
	out := make([]string, 0, len(gradeScale))
	for _, g := range gradeScale {
		out = append(out, g.Grade)
	}
	return out
}

// GradePoint returns the 4.0-scale value for a letter grade.
func GradePoint(grade string) (float64, bool) {
	grade = strings.ToUpper(strings.TrimSpace(grade))
	for _, g := range gradeScale {
		if g.Grade == grade {
			return g.Point, true
		}
	}
	return 0, false
}

// Course is one row of the GPA form.
type Course struct {
	Name    string
	Grade   string
	Credits float64
}

// GPASummary holds the sums behind a GPA.
type GPASummary struct {
	GPA            float64
	QualityPoints  float64
	TotalCredits   float64
	CountedCourses int
}

// ComputeGPA accumulates quality points over courses that have a grade and positive
// credits. Other courses are skipped but stay in the caller's list.
func ComputeGPA(courses []Course) GPASummary {
	var sum GPASummary
	for _, c := range courses {
		point, ok := GradePoint(c.Grade)
		if !ok || c.Credits <= 0 {
			continue
		}
		sum.QualityPoints += point * c.Credits
		sum.TotalCredits += c.Credits
		sum.CountedCourses++
	}
	if sum.TotalCredits > 0 {
		sum.GPA = Round(sum.QualityPoints/sum.TotalCredits, 2)
	}
	sum.QualityPoints = Round(sum.QualityPoints, 2)
	return sum
}

// courseField names the field for a course row, e.g. "grade.2".
func courseField(prefix string, row int) string {
	return prefix + "." + strconv.Itoa(row)
}

// courseRows returns the row numbers present in values, always including 1..defaultCourseRows.
func courseRows(values map[string]string) []int {
	seen := map[int]struct{}{}
	for i := 1; i <= defaultCourseRows; i++ {
		seen[i] = struct{}{}
	}
	for key := range values {
		dot := strings.LastIndexByte(key, '.')
		if dot < 0 {
			continue
		}
		switch key[:dot] {
		case "name", "grade", "credits":
		default:
			continue
		}
		n, err := strconv.Atoi(key[dot+1:])
		if err != nil || n < 1 || n > maxCourseRows {
			continue
		}
		seen[n] = struct{}{}
	}
	rows := make([]int, 0, len(seen))
	for n := range seen {
		rows = append(rows, n)
	}
	sort.Ints(rows)
	return rows
}

// CoursesFromValues rebuilds the course list from form values.
func CoursesFromValues(values map[string]string) ([]Course, error) {
	in := Inputs{values: values}
	rows := courseRows(values)
	courses := make([]Course, 0, len(rows))
	for _, n := range rows {
		credits, err := in.NumberOr(courseField("credits", n), 0)
		if err != nil {
			return nil, err
		}
		courses = append(courses, Course{
			Name:    in.Raw(courseField("name", n)),
			Grade:   strings.ToUpper(in.Raw(courseField("grade", n))),
			Credits: credits,
		})
	}
	return courses, nil
}

// NewGPATool builds the GPA calculator. Course rows are addressed as
// name.N, grade.N and credits.N; writing any of them adds row N.
func NewGPATool() Tool {
	initial := map[string]string{}
	for i := 1; i <= defaultCourseRows; i++ {
		initial[courseField("name", i)] = ""
		initial[courseField("grade", i)] = ""
		initial[courseField("credits", i)] = "3"
	}
	return &Definition{
		ToolName:    ToolGPA,
		ToolTitle:   "GPA Calculator",
		ExtraFields: gpaCourseFields,
		Initial:     initial,
		Precision:   2,
		Metric:      classify.MetricGPA,
		Formula:     gpaFormula,
	}
}

func gpaCourseFields(values map[string]string) validate.Schema {
	rows := courseRows(values)
	schema := make(validate.Schema, 0, len(rows)*3)
	for _, n := range rows {
		schema = append(schema,
			validate.Field{Name: courseField("name", n), Label: fmt.Sprintf("Course %d name", n)},
			validate.Field{Name: courseField("grade", n), Label: fmt.Sprintf("Course %d grade", n), Rule: validate.OneOfRule{Options: Grades()}},
			validate.Field{Name: courseField("credits", n), Label: fmt.Sprintf("Course %d credits", n), Rule: validate.MaxRule{Max: maxCourseCredits}},
		)
	}
	return schema
}

func gpaFormula(in Inputs) (Outcome, error) {
	courses, err := CoursesFromValues(in.values)
	if err != nil {
		return Outcome{}, err
	}
	sum := ComputeGPA(courses)
	outcome := Outcome{
		Value: sum.GPA,
		Details: map[string]float64{
			"quality_points":  sum.QualityPoints,
			"total_credits":   sum.TotalCredits,
			"counted_courses": float64(sum.CountedCourses),
			"listed_courses":  float64(len(courses)),
		},
	}
	if sum.CountedCourses == 0 {
		outcome.Label = "No graded courses"
		outcome.Description = "Add a grade and credits to at least one course."
	}
	return outcome, nil
}
