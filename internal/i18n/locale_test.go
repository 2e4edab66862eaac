package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"finitefield.org/toolskit/internal/platform/requestctx"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name   string
		lang   string
		accept string
		want   language.Tag
	}{
		{name: "query wins", lang: "de", accept: "fr-FR,fr;q=0.9", want: language.German},
		{name: "header", accept: "fr-CH, fr;q=0.9, en;q=0.8", want: language.French},
		{name: "bad query falls to header", lang: "!!", accept: "ja", want: language.Japanese},
		{name: "unsupported", accept: "zu", want: language.AmericanEnglish},
		{name: "empty", want: language.AmericanEnglish},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Negotiate(tt.lang, tt.accept, language.AmericanEnglish)
			if got != tt.want {
				t.Fatalf("Negotiate(%q, %q) = %s, want %s", tt.lang, tt.accept, got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "1,234.5", FormatNumber(language.AmericanEnglish, 1234.5, 2))
	require.Equal(t, "1.234,5", FormatNumber(language.German, 1234.5, 2))
	require.Equal(t, "22.9", FormatNumber(language.AmericanEnglish, 22.94, 1))
}

func TestFormatSignificantAndPercent(t *testing.T) {
	require.Equal(t, "0.00000025", FormatSignificant(language.AmericanEnglish, 2.5e-7, 6))
	require.Equal(t, "0,000621371", FormatSignificant(language.German, 0.000621371, 6))
	require.Equal(t, "1,609,340", FormatSignificant(language.AmericanEnglish, 1609340, 6))
	require.Equal(t, "0", FormatSignificant(language.AmericanEnglish, 0, 6))
	require.Equal(t, "90.9%", FormatPercent(language.AmericanEnglish, 90.9, 1))
}

func TestMiddlewareStoresLocale(t *testing.T) {
	var got language.Tag
	h := Middleware(language.AmericanEnglish)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = requestctx.Locale(r.Context(), language.Und)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/convert?lang=de-DE", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, language.German, got)
	require.Equal(t, "de", rec.Header().Get("Content-Language"))
	require.Equal(t, "Accept-Language", rec.Header().Get("Vary"))
}
