// Package i18n negotiates the response locale and formats numbers for it.
package i18n

import (
	"math"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"finitefield.org/toolskit/internal/platform/requestctx"
)

// Supported lists the locales results can be formatted in.
var Supported = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Japanese,
}

var matcher = language.NewMatcher(Supported)

// Negotiate picks a supported locale. An explicit lang (query parameter) wins over
// the Accept-Language header; fallback is used when neither matches.
func Negotiate(lang, acceptLanguage string, fallback language.Tag) language.Tag {
	if lang = strings.TrimSpace(lang); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			if _, idx, conf := matcher.Match(tag); conf != language.No {
				return Supported[idx]
			}
		}
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			if _, idx, conf := matcher.Match(tags...); conf != language.No {
				return Supported[idx]
			}
		}
	}
	return fallback
}

// Middleware stores the negotiated locale on the request context.
func Middleware(fallback language.Tag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := Negotiate(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), fallback)
			w.Header().Set("Content-Language", tag.String())
			w.Header().Add("Vary", "Accept-Language")
			next.ServeHTTP(w, r.WithContext(requestctx.WithLocale(r.Context(), tag)))
		})
	}
}

// FormatNumber renders v with locale grouping and at most decimals fraction digits.
func FormatNumber(tag language.Tag, v float64, decimals int) string {
	p := message.NewPrinter(tag)
	return p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(decimals)))
}

// FormatSignificant renders v with up to digits significant digits, so values
// far below one keep their leading digits instead of rounding to zero.
func FormatSignificant(tag language.Tag, v float64, digits int) string {
	decimals := 0
	if v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
		decimals = digits - 1 - int(math.Floor(math.Log10(math.Abs(v))))
	}
	if decimals < 0 {
		decimals = 0
	}
	return FormatNumber(tag, v, decimals)
}

// FormatPercent renders a 0-100 value as a percentage.
func FormatPercent(tag language.Tag, v float64, decimals int) string {
	p := message.NewPrinter(tag)
	return p.Sprintf("%v", number.Percent(v/100, number.MaxFractionDigits(decimals)))
}
