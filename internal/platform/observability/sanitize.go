package observability

import (
	"strings"
	"unicode"
)

// cleanLogValue strips control characters so request data cannot forge log lines,
// then truncates to limit runes.
func cleanLogValue(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(value))
	if runes := []rune(value); len(runes) > limit {
		value = string(runes[:limit])
	}
	return value
}

// SanitizeRoute cleans a route or path for logs and span attributes.
func SanitizeRoute(route string) string {
	if route = cleanLogValue(route, 180); route == "" {
		return "/"
	}
	return route
}
