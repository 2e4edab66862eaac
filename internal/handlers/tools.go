package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"finitefield.org/toolskit/internal/calc"
	"finitefield.org/toolskit/internal/i18n"
	"finitefield.org/toolskit/internal/platform/httpx"
	"finitefield.org/toolskit/internal/platform/observability"
	"finitefield.org/toolskit/internal/platform/requestctx"
	"finitefield.org/toolskit/internal/platform/sessions"
	"finitefield.org/toolskit/internal/validate"
)

const (
	maxFieldBodySize  = 4 * 1024
	resultFractionMax = 6
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")

	tracer = otel.Tracer("finitefield.org/toolskit/internal/handlers")
)

// FormStore keeps calculator form sessions.
type FormStore = sessions.MemoryStore[*calc.Session]

type formRecord = sessions.Record[*calc.Session]

// ToolDeps wires ToolHandlers.
type ToolDeps struct {
	Registry      *calc.Registry
	Sessions      *FormStore
	Metrics       *observability.Metrics
	DefaultLocale language.Tag
	Logger        *zap.Logger
	Now           func() time.Time
}

// ToolHandlers exposes the calculator catalogue and form sessions.
type ToolHandlers struct {
	registry *calc.Registry
	sessions *FormStore
	metrics  *observability.Metrics
	locale   language.Tag
	logger   *zap.Logger
	now      func() time.Time
}

// NewToolHandlers constructs the tool handler set.
func NewToolHandlers(deps ToolDeps) *ToolHandlers {
	h := &ToolHandlers{
		registry: deps.Registry,
		sessions: deps.Sessions,
		metrics:  deps.Metrics,
		locale:   deps.DefaultLocale,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if h.registry == nil {
		h.registry = calc.DefaultRegistry()
	}
	if h.sessions == nil {
		h.sessions = sessions.NewMemoryStore[*calc.Session](sessions.DefaultTTL)
	}
	if h.locale == language.Und {
		h.locale = language.AmericanEnglish
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Routes registers the catalogue and session endpoints.
func (h *ToolHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/tools", h.listTools)
	r.Get("/tools/{tool}", h.getTool)
	r.Post("/tools/{tool}/sessions", h.createSession)

	r.Get("/sessions/{sessionID}", h.getSession)
	r.Delete("/sessions/{sessionID}", h.deleteSession)
	r.Put("/sessions/{sessionID}/fields/{field}", h.updateField)
	r.Post("/sessions/{sessionID}:submit", h.submit)
	r.Post("/sessions/{sessionID}:reset", h.reset)
}

type fieldPayload struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Selector string   `json:"unitSelector,omitempty"`
	Units    []string `json:"units,omitempty"`
}

type toolPayload struct {
	Name     string            `json:"name"`
	Title    string            `json:"title"`
	Fields   []fieldPayload    `json:"fields"`
	Defaults map[string]string `json:"defaults"`
}

type sessionResponse struct {
	ID        string                `json:"id"`
	Tool      string                `json:"tool"`
	State     calc.State            `json:"state"`
	Values    map[string]string     `json:"values"`
	Errors    []validate.FieldError `json:"errors,omitempty"`
	Result    *calc.Result          `json:"result,omitempty"`
	Formatted *formattedResult      `json:"formatted,omitempty"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

type formattedResult struct {
	Locale  string            `json:"locale"`
	Value   string            `json:"value"`
	Details map[string]string `json:"details,omitempty"`
}

type updateFieldRequest struct {
	Value    *string `json:"value"`
	Validate bool    `json:"validate"`
}

func (h *ToolHandlers) listTools(w http.ResponseWriter, r *http.Request) {
	tools := h.registry.Tools()
	items := make([]toolPayload, 0, len(tools))
	for _, tool := range tools {
		items = append(items, buildToolPayload(tool))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ToolHandlers) getTool(w http.ResponseWriter, r *http.Request) {
	tool, ok := h.lookupTool(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildToolPayload(tool))
}

func (h *ToolHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tool, ok := h.lookupTool(w, r)
	if !ok {
		return
	}

	record, err := h.sessions.Create(ctx, h.now(), func(id string) (*calc.Session, error) {
		logger := h.logger.With(zap.String("session_id", id), zap.String("tool", tool.Name()))
		return calc.NewSession(tool, calc.WithStateObserver(func(st calc.State) {
			logger.Debug("session state", zap.String("state", string(st)))
		})), nil
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", err.Error(), http.StatusInternalServerError))
		return
	}

	if prefix, _, found := strings.Cut(r.URL.Path, "/tools/"); found {
		w.Header().Set("Location", prefix+"/sessions/"+record.ID)
	}
	httpx.WriteJSON(w, http.StatusCreated, h.buildSessionResponse(r, record))
}

func (h *ToolHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildSessionResponse(r, record))
}

func (h *ToolHandlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.sessions.Delete(ctx, chi.URLParam(r, "sessionID")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", err.Error(), http.StatusInternalServerError))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ToolHandlers) updateField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxFieldBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateFieldRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if req.Value == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "value is required", http.StatusBadRequest))
		return
	}

	field := strings.TrimSpace(chi.URLParam(r, "field"))
	if err := record.Value.UpdateField(field, *req.Value); err != nil {
		if errors.Is(err, calc.ErrUnknownField) {
			httpx.WriteError(ctx, w, httpx.NewError("unknown_field", err.Error(), http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if req.Validate {
		record.Value.ValidateField(field)
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildSessionResponse(r, record))
}

func (h *ToolHandlers) submit(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	tool := record.Value.Tool().Name()

	ctx, span := tracer.Start(r.Context(), "calc.submit",
		trace.WithAttributes(attribute.String("toolskit.tool", tool), attribute.String("toolskit.session_id", record.ID)))
	defer span.End()

	if !record.Value.Submit() {
		snap := record.Value.Snapshot()
		h.metrics.ValidationFailure(ctx, tool, len(snap.Errors))
		span.SetStatus(codes.Error, "validation failed")
		span.SetAttributes(attribute.Int("toolskit.field_errors", len(snap.Errors)))
		observability.FromContext(ctx).Info("calculation rejected",
			zap.String("tool", tool), zap.Int("field_errors", len(snap.Errors)))
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, h.buildSessionResponse(r.WithContext(ctx), record))
		return
	}

	h.metrics.Calculation(ctx, tool)
	if tool == calc.ToolConverter {
		h.metrics.Conversion(ctx, record.Value.Snapshot().Values["category"])
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildSessionResponse(r.WithContext(ctx), record))
}

func (h *ToolHandlers) reset(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	record.Value.Reset()
	httpx.WriteJSON(w, http.StatusOK, h.buildSessionResponse(r, record))
}

func (h *ToolHandlers) lookupTool(w http.ResponseWriter, r *http.Request) (calc.Tool, bool) {
	tool, err := h.registry.Lookup(chi.URLParam(r, "tool"))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("tool_not_found", err.Error(), http.StatusNotFound))
		return nil, false
	}
	return tool, true
}

func (h *ToolHandlers) lookupSession(w http.ResponseWriter, r *http.Request) (formRecord, bool) {
	ctx := r.Context()
	record, err := h.sessions.Get(ctx, chi.URLParam(r, "sessionID"), h.now())
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "session not found or expired", http.StatusNotFound))
			return formRecord{}, false
		}
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", err.Error(), http.StatusInternalServerError))
		return formRecord{}, false
	}
	return record, true
}

func (h *ToolHandlers) buildSessionResponse(r *http.Request, record formRecord) sessionResponse {
	snap := record.Value.Snapshot()
	resp := sessionResponse{
		ID:        record.ID,
		Tool:      snap.Tool,
		State:     snap.State,
		Values:    snap.Values,
		Errors:    snap.Errors,
		Result:    snap.Result,
		ExpiresAt: record.ExpiresAt,
	}
	if snap.Result != nil {
		resp.Formatted = formatResult(requestctx.Locale(r.Context(), h.locale), *snap.Result)
	}
	return resp
}

func formatResult(tag language.Tag, result calc.Result) *formattedResult {
	out := &formattedResult{
		Locale: tag.String(),
		Value:  i18n.FormatNumber(tag, result.Value, resultFractionMax),
	}
	if result.Tool == calc.ToolConverter {
		out.Value = i18n.FormatSignificant(tag, result.Value, calc.ConverterSignificantDigits)
	}
	if len(result.Details) > 0 {
		out.Details = make(map[string]string, len(result.Details))
		for k, v := range result.Details {
			out.Details[k] = i18n.FormatNumber(tag, v, resultFractionMax)
		}
	}
	return out
}

func buildToolPayload(tool calc.Tool) toolPayload {
	defaults := tool.Defaults()
	schema := tool.Schema(defaults)
	fields := make([]fieldPayload, 0, len(schema))
	for _, f := range schema {
		fields = append(fields, buildFieldPayload(f))
	}
	return toolPayload{
		Name:     tool.Name(),
		Title:    tool.Title(),
		Fields:   fields,
		Defaults: defaults,
	}
}

func buildFieldPayload(f validate.Field) fieldPayload {
	out := fieldPayload{Name: f.Name, Label: f.Label, Required: f.Required}
	switch rule := f.Rule.(type) {
	case validate.RangeRule:
		out.Min, out.Max, out.Unit = floatPtr(rule.Min), floatPtr(rule.Max), rule.Unit
	case validate.MaxRule:
		out.Max, out.Unit = floatPtr(rule.Max), rule.Unit
	case validate.OneOfRule:
		out.Options = append([]string(nil), rule.Options...)
	case validate.UnitRangeRule:
		out.Selector = rule.Selector
		if def, ok := rule.Ranges[rule.Default]; ok {
			out.Min, out.Max, out.Unit = floatPtr(def.Min), floatPtr(def.Max), def.Unit
		}
		units := make([]string, 0, len(rule.Ranges))
		for unit := range rule.Ranges {
			units = append(units, unit)
		}
		sort.Strings(units)
		out.Units = units
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}
