package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertEndpoint(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantValue  float64
		wantFormat string
	}{
		{name: "temperature", query: "category=temperature&from=c&to=f&value=100", wantStatus: http.StatusOK, wantValue: 212, wantFormat: "212"},
		{name: "weight alias", query: "category=weight&from=kg&to=g&value=1.5", wantStatus: http.StatusOK, wantValue: 1500, wantFormat: "1,500"},
		{name: "tiny mass", query: "category=mass&from=mg&to=t&value=250", wantStatus: http.StatusOK, wantValue: 2.5e-7, wantFormat: "0.00000025"},
		{name: "default category", query: "from=km&to=m&value=2", wantStatus: http.StatusOK, wantValue: 2000, wantFormat: "2,000"},
		{name: "unit from other category", query: "category=length&from=kg&to=m&value=1", wantStatus: http.StatusUnprocessableEntity},
		{name: "missing value", query: "category=length&from=m&to=ft", wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown category", query: "category=volume&from=l&to=ml&value=1", wantStatus: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/v1/convert?"+tt.query, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if tt.wantStatus != http.StatusOK {
				if body["error"] != "validation_failed" {
					t.Fatalf("expected validation_failed, got %v", body["error"])
				}
				if _, ok := body["errors"]; !ok {
					t.Fatalf("expected field errors in envelope")
				}
				return
			}
			if body["value"] != tt.wantValue {
				t.Fatalf("expected value %v, got %v", tt.wantValue, body["value"])
			}
			if body["formatted"] != tt.wantFormat {
				t.Fatalf("expected formatted %q, got %v", tt.wantFormat, body["formatted"])
			}
		})
	}
}

func TestUnitsEndpoint(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, http.MethodGet, "/api/v1/units/temperature", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, "c", body["defaultFrom"])
	require.Equal(t, "f", body["defaultTo"])
	require.Len(t, body["units"], 3)

	rr = env.do(t, http.MethodGet, "/api/v1/units/weight", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "mass", decodeBody(t, rr)["category"])

	rr = env.do(t, http.MethodGet, "/api/v1/units/volume", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/units", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decodeBody(t, rr)["items"], 4)
}
