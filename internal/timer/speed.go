package timer

import (
	"math"
	"time"

	"finitefield.org/toolskit/internal/calc"
)

// ClicksPerSecond divides clicks by the elapsed wall time, rounded to 2 decimals.
func ClicksPerSecond(clicks int, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if clicks <= 0 || secs <= 0 {
		return 0
	}
	return calc.Round(float64(clicks)/secs, 2)
}

// TypingSpeed returns words per minute, counting five correct characters as a
// word, and accuracy as the percentage of typed characters that were correct.
func TypingSpeed(correct, typed int, elapsed time.Duration) (wpm, accuracy float64) {
	if mins := elapsed.Minutes(); mins > 0 && correct > 0 {
		wpm = calc.Round(float64(correct)/5/mins, 0)
	}
	if typed > 0 {
		accuracy = calc.Round(math.Min(float64(correct)/float64(typed), 1)*100, 1)
	}
	return wpm, accuracy
}

// CompareText counts the characters of typed that match passage position by position.
func CompareText(passage, typed string) (correct, total int) {
	want := []rune(passage)
	got := []rune(typed)
	for i, r := range got {
		if i < len(want) && want[i] == r {
			correct++
		}
	}
	return correct, len(got)
}
