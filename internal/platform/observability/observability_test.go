package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/toolskit/internal/platform/requestctx"
)

func TestRequestLoggerRecordsRouteAndStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	r := chi.NewRouter()
	r.Use(InjectLoggerMiddleware(logger), TraceMiddleware(), RequestLoggerMiddleware())
	r.Get("/api/v1/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		require.NotEqual(t, requestctx.NoopLogger(), requestctx.Logger(r.Context()))
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/api/v1/sessions/{sessionID}", fields["route"])
	require.Equal(t, "abc", fields["sessionID"])
	require.EqualValues(t, http.StatusNotFound, fields["status"])
	require.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal_server_error")
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("chatty")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zap.InfoLevel))
	require.False(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger("debug")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Calculation(context.Background(), "bmi")

	m, err := NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)
	m.Calculation(context.Background(), "bmi")
	m.ValidationFailure(context.Background(), "bmi", 2)
	m.Conversion(context.Background(), "length")
	m.Score(context.Background(), "cps", true)
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	require.Equal(t, "/api", SanitizeRoute("/a\npi"))
	require.Equal(t, "/", SanitizeRoute(""))
	require.Equal(t, "GET", cleanLogValue("GET\x00", 10))
	require.Equal(t, "abc", cleanLogValue("abcdef", 3))
}
