package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"finitefield.org/toolskit/internal/timer"
)

func TestScoreRecordCPS(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, http.MethodGet, "/api/v1/scores/cps", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, false, decodeBody(t, rr)["hasBest"])

	rr = env.do(t, http.MethodPost, "/api/v1/scores/cps", map[string]any{"clicks": 32, "duration_ms": 5000})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decodeBody(t, rr)
	require.Equal(t, 6.4, first["score"])
	require.Equal(t, true, first["improved"])
	require.Equal(t, "Average", first["label"])

	rr = env.do(t, http.MethodPost, "/api/v1/scores/cps", map[string]any{"clicks": 20, "duration_ms": 5000})
	require.Equal(t, http.StatusOK, rr.Code)
	second := decodeBody(t, rr)
	require.Equal(t, 4.0, second["score"])
	require.Equal(t, false, second["improved"])
	require.Equal(t, 6.4, second["best"])

	rr = env.do(t, http.MethodGet, "/api/v1/scores/cps", nil)
	require.Equal(t, 6.4, decodeBody(t, rr)["best"])
}

func TestScoreRecordTyping(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	input := string([]rune(timer.DefaultPassage)[:50])
	rr := env.do(t, http.MethodPost, "/api/v1/scores/typing", map[string]any{"input": input, "duration_ms": 30000})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	require.Equal(t, 20.0, body["score"])
	require.Equal(t, 100.0, body["accuracy"])
	require.Equal(t, "Beginner", body["label"])

	rr = env.do(t, http.MethodPost, "/api/v1/scores/typing", map[string]any{"correct": 250, "typed": 275, "duration_ms": 60000})
	require.Equal(t, http.StatusOK, rr.Code)
	body = decodeBody(t, rr)
	require.Equal(t, 50.0, body["score"])
	require.Equal(t, 90.9, body["accuracy"])
	require.Equal(t, "90.9%", body["formattedAccuracy"])
	require.Equal(t, true, body["improved"])

	rr = env.do(t, http.MethodGet, "/api/v1/typing/passage", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, timer.DefaultPassage, decodeBody(t, rr)["passage"])
}

func TestScoreRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "unknown tool", path: "/api/v1/scores/password", body: map[string]any{"clicks": 1, "duration_ms": 1000}, status: http.StatusNotFound},
		{name: "zero duration", path: "/api/v1/scores/cps", body: map[string]any{"clicks": 1}, status: http.StatusBadRequest},
		{name: "negative clicks", path: "/api/v1/scores/cps", body: map[string]any{"clicks": -1, "duration_ms": 1000}, status: http.StatusBadRequest},
		{name: "missing clicks", path: "/api/v1/scores/cps", body: map[string]any{"duration_ms": 1000}, status: http.StatusBadRequest},
		{name: "correct exceeds typed", path: "/api/v1/scores/typing", body: map[string]any{"correct": 5, "typed": 4, "duration_ms": 1000}, status: http.StatusBadRequest},
		{name: "empty body", path: "/api/v1/scores/cps", body: nil, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}

	rr := env.do(t, http.MethodGet, "/api/v1/scores/password", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
