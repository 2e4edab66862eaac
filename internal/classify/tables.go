package classify

import "math"

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

// BMITable follows the WHO adult categories.
var BMITable = MustTable(MetricBMI,
	Band{
		Min:         negInf,
		Max:         18.5,
		Label:       "Underweight",
		Description: "Your BMI is below the healthy range. Consider speaking with a healthcare provider about healthy ways to gain weight.",
		Risk:        "Increased risk of nutritional deficiency, weakened immunity and osteoporosis.",
	},
	Band{
		Min:         18.5,
		Max:         25,
		Label:       "Normal weight",
		Description: "Your BMI is within the healthy range. Keep up a balanced diet and regular physical activity.",
		Risk:        "Low risk of weight-related health problems.",
	},
	Band{
		Min:         25,
		Max:         30,
		Label:       "Overweight",
		Description: "Your BMI is above the healthy range. Small changes to diet and activity can help bring it down.",
		Risk:        "Moderately increased risk of heart disease, high blood pressure and type 2 diabetes.",
	},
	Band{
		Min:         30,
		Max:         posInf,
		Label:       "Obese",
		Description: "Your BMI is in the obese range. A healthcare provider can help you plan safe, sustainable weight loss.",
		Risk:        "High risk of heart disease, stroke, type 2 diabetes and certain cancers.",
	},
)

// GPATable maps a 4.0-scale GPA to an honors tier. Informational only.
var GPATable = MustTable(MetricGPA,
	Band{Min: negInf, Max: 2.5, Label: "Needs Improvement", Badge: "📚", Description: "Below 2.5. Focus on the courses with the most credits first."},
	Band{Min: 2.5, Max: 3.0, Label: "Good Standing", Badge: "✅", Description: "Solid academic standing."},
	Band{Min: 3.0, Max: 3.5, Label: "Dean's List", Badge: "⭐", Description: "Eligible for the Dean's List at most schools."},
	Band{Min: 3.5, Max: 3.7, Label: "Cum Laude", Badge: "🥈", Description: "Graduating with honors."},
	Band{Min: 3.7, Max: 3.9, Label: "Magna Cum Laude", Badge: "🥇", Description: "Graduating with high honors."},
	Band{Min: 3.9, Max: posInf, Label: "Summa Cum Laude", Badge: "🏆", Description: "Graduating with highest honors."},
)

// CPSTable maps clicks per second to a skill tier.
var CPSTable = MustTable(MetricCPS,
	Band{Min: negInf, Max: 4, Label: "Beginner", Badge: "🐢", Description: "1-3 clicks per second. Keep practicing."},
	Band{Min: 4, Max: 8, Label: "Average", Badge: "🙂", Description: "4-7 clicks per second, a typical score."},
	Band{Min: 8, Max: 11, Label: "Fast", Badge: "⚡", Description: "8-10 clicks per second. Impressive speed."},
	Band{Min: 11, Max: posInf, Label: "Pro", Badge: "🔥", Description: "11+ clicks per second. Elite clicker."},
)

// WPMTable maps typing speed in words per minute to a skill tier.
var WPMTable = MustTable(MetricWPM,
	Band{Min: negInf, Max: 30, Label: "Beginner", Description: "Under 30 WPM."},
	Band{Min: 30, Max: 50, Label: "Average", Description: "30-49 WPM, about the typical adult speed."},
	Band{Min: 50, Max: 70, Label: "Fast", Description: "50-69 WPM."},
	Band{Min: 70, Max: 100, Label: "Professional", Description: "70-99 WPM."},
	Band{Min: 100, Max: posInf, Label: "Elite", Description: "100+ WPM."},
)
