package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"finitefield.org/toolskit/internal/calc"
	"finitefield.org/toolskit/internal/i18n"
	"finitefield.org/toolskit/internal/measure"
	"finitefield.org/toolskit/internal/platform/httpx"
	"finitefield.org/toolskit/internal/platform/observability"
	"finitefield.org/toolskit/internal/platform/requestctx"
	"finitefield.org/toolskit/internal/validate"
)

// ConvertHandlers serves stateless unit conversion and the unit catalogue.
type ConvertHandlers struct {
	table   *measure.Table
	tool    calc.Tool
	metrics *observability.Metrics
	locale  language.Tag
}

// NewConvertHandlers uses measure.Default() when table is nil.
func NewConvertHandlers(table *measure.Table, metrics *observability.Metrics, locale language.Tag) *ConvertHandlers {
	if table == nil {
		table = measure.Default()
	}
	if locale == language.Und {
		locale = language.AmericanEnglish
	}
	return &ConvertHandlers{
		table:   table,
		tool:    calc.NewConverterTool(table),
		metrics: metrics,
		locale:  locale,
	}
}

// Routes registers /convert and /units.
func (h *ConvertHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/convert", h.convert)
	r.Get("/units", h.listQuantities)
	r.Get("/units/{category}", h.listUnits)
}

type unitPayload struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Base   bool   `json:"base,omitempty"`
}

type unitsResponse struct {
	Category    string        `json:"category"`
	Units       []unitPayload `json:"units"`
	DefaultFrom string        `json:"defaultFrom"`
	DefaultTo   string        `json:"defaultTo"`
}

type convertResponse struct {
	Category  string  `json:"category"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Input     float64 `json:"input"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
	Locale    string  `json:"locale"`
}

func (h *ConvertHandlers) convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	values := map[string]string{
		"category": strings.TrimSpace(q.Get("category")),
		"from":     strings.TrimSpace(q.Get("from")),
		"to":       strings.TrimSpace(q.Get("to")),
		"value":    strings.TrimSpace(q.Get("value")),
	}
	if values["category"] == "" {
		values["category"] = string(measure.QuantityLength)
	}

	ctx, span := tracer.Start(r.Context(), "measure.convert",
		trace.WithAttributes(
			attribute.String("toolskit.category", values["category"]),
			attribute.String("toolskit.from", values["from"]),
			attribute.String("toolskit.to", values["to"]),
		))
	defer span.End()

	if errs := h.tool.Schema(values).ValidateAll(values, validate.Mode(values)); len(errs) > 0 {
		h.metrics.ValidationFailure(ctx, calc.ToolConverter, len(errs))
		span.SetStatus(codes.Error, "validation failed")
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "conversion input is invalid", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"errors": errs.List()}))
		return
	}

	result, err := h.tool.Calculate(values)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		status := http.StatusInternalServerError
		if errors.Is(err, calc.ErrInvalidInput) {
			status = http.StatusUnprocessableEntity
		}
		httpx.WriteError(ctx, w, httpx.NewError("conversion_failed", err.Error(), status))
		return
	}

	h.metrics.Calculation(ctx, calc.ToolConverter)
	h.metrics.Conversion(ctx, result.Description)

	tag := requestctx.Locale(ctx, h.locale)
	httpx.WriteJSON(w, http.StatusOK, convertResponse{
		Category:  result.Description,
		From:      strings.ToLower(values["from"]),
		To:        result.Unit,
		Input:     result.Details["input"],
		Value:     result.Value,
		Formatted: i18n.FormatSignificant(tag, result.Value, calc.ConverterSignificantDigits),
		Locale:    tag.String(),
	})
}

func (h *ConvertHandlers) listQuantities(w http.ResponseWriter, r *http.Request) {
	quantities := h.table.Quantities()
	items := make([]unitsResponse, 0, len(quantities))
	for _, q := range quantities {
		resp, err := h.unitsFor(q)
		if err != nil {
			continue
		}
		items = append(items, resp)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ConvertHandlers) listUnits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := measure.ParseQuantity(chi.URLParam(r, "category"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", err.Error(), http.StatusNotFound))
		return
	}
	resp, err := h.unitsFor(q)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", err.Error(), http.StatusNotFound))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ConvertHandlers) unitsFor(q measure.Quantity) (unitsResponse, error) {
	units, err := h.table.Units(q)
	if err != nil {
		return unitsResponse{}, err
	}
	from, to, err := h.table.DefaultPair(q)
	if err != nil {
		return unitsResponse{}, err
	}
	out := unitsResponse{Category: string(q), DefaultFrom: from, DefaultTo: to, Units: make([]unitPayload, 0, len(units))}
	for _, u := range units {
		out.Units = append(out.Units, unitPayload{Symbol: u.Symbol, Name: u.Name, Base: u.Base})
	}
	return out, nil
}
