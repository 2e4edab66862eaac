package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"finitefield.org/toolskit/internal/classify"
	"finitefield.org/toolskit/internal/i18n"
	"finitefield.org/toolskit/internal/platform/httpx"
	"finitefield.org/toolskit/internal/platform/observability"
	"finitefield.org/toolskit/internal/platform/requestctx"
	"finitefield.org/toolskit/internal/score"
	"finitefield.org/toolskit/internal/timer"
)

const (
	maxScoreBodySize = 16 * 1024
	maxScoreDuration = 2 * time.Minute
)

// ScoreHandlers records timed-test results and serves the best score per tool.
type ScoreHandlers struct {
	tracker *score.Tracker
	metrics *observability.Metrics
	locale  language.Tag
	passage string
}

// NewScoreHandlers constructs the score handler set.
func NewScoreHandlers(tracker *score.Tracker, metrics *observability.Metrics, locale language.Tag) *ScoreHandlers {
	if tracker == nil {
		tracker = score.NewTracker(score.NewMemoryStore())
	}
	if locale == language.Und {
		locale = language.AmericanEnglish
	}
	return &ScoreHandlers{
		tracker: tracker,
		metrics: metrics,
		locale:  locale,
		passage: timer.DefaultPassage,
	}
}

// Routes registers the score endpoints.
func (h *ScoreHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/scores/{tool}", h.getBest)
	r.Post("/scores/{tool}", h.record)
	r.Get("/typing/passage", h.getPassage)
}

type scoreRequest struct {
	Clicks     *int    `json:"clicks"`
	Input      *string `json:"input"`
	Correct    *int    `json:"correct"`
	Typed      *int    `json:"typed"`
	DurationMS int64   `json:"duration_ms"`
}

type scoreResponse struct {
	Tool      string   `json:"tool"`
	Score     float64  `json:"score"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Best      float64  `json:"best"`
	Improved  bool     `json:"improved"`
	Label     string   `json:"label,omitempty"`
	Badge     string   `json:"badge,omitempty"`
	Formatted string   `json:"formatted"`
	// FormattedAccuracy is set for typing scores.
	FormattedAccuracy string `json:"formattedAccuracy,omitempty"`
	Locale            string `json:"locale"`
}

func (h *ScoreHandlers) getBest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tool := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "tool")))
	best, ok, err := h.tracker.Best(ctx, tool)
	if err != nil {
		writeScoreError(w, r, err)
		return
	}
	payload := map[string]any{"tool": tool, "hasBest": ok}
	if ok {
		payload["best"] = best
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h *ScoreHandlers) getPassage(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"passage":    h.passage,
		"durationMs": timer.TypingDuration.Milliseconds(),
	})
}

func (h *ScoreHandlers) record(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tool := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "tool")))
	if _, err := score.KeyFor(tool); err != nil {
		writeScoreError(w, r, err)
		return
	}

	body, err := readLimitedBody(r, maxScoreBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req scoreRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	elapsed := time.Duration(req.DurationMS) * time.Millisecond
	if elapsed <= 0 || elapsed > maxScoreDuration {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "duration_ms must be between 1 and 120000", http.StatusBadRequest))
		return
	}

	var (
		value    float64
		metric   classify.Metric
		accuracy *float64
	)
	switch tool {
	case score.ToolCPS:
		if req.Clicks == nil || *req.Clicks < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "clicks must be a non-negative integer", http.StatusBadRequest))
			return
		}
		value, metric = timer.ClicksPerSecond(*req.Clicks, elapsed), classify.MetricCPS
	case score.ToolTyping:
		correct, typed, ok := h.typingCounts(req)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "provide input, or correct and typed counts with correct <= typed", http.StatusBadRequest))
			return
		}
		wpm, acc := timer.TypingSpeed(correct, typed, elapsed)
		value, metric, accuracy = wpm, classify.MetricWPM, &acc
	}

	best, improved, err := h.tracker.Record(ctx, tool, value)
	if err != nil {
		writeScoreError(w, r, err)
		return
	}
	h.metrics.Score(ctx, tool, improved)

	resp := scoreResponse{Tool: tool, Score: value, Accuracy: accuracy, Best: best, Improved: improved}
	if band, err := classify.Classify(metric, value); err == nil {
		resp.Label, resp.Badge = band.Label, band.Badge
	}
	tag := requestctx.Locale(ctx, h.locale)
	resp.Formatted, resp.Locale = i18n.FormatNumber(tag, value, 2), tag.String()
	if accuracy != nil {
		resp.FormattedAccuracy = i18n.FormatPercent(tag, *accuracy, 1)
	}

	observability.FromContext(ctx).Info("score recorded",
		zap.String("tool", tool), zap.Float64("score", value), zap.Bool("improved", improved))
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ScoreHandlers) typingCounts(req scoreRequest) (correct, typed int, ok bool) {
	if req.Input != nil {
		correct, typed = timer.CompareText(h.passage, *req.Input)
		return correct, typed, true
	}
	if req.Correct == nil || req.Typed == nil {
		return 0, 0, false
	}
	correct, typed = *req.Correct, *req.Typed
	if correct < 0 || typed < 0 || correct > typed {
		return 0, 0, false
	}
	return correct, typed, true
}

func writeScoreError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, score.ErrUnknownTool):
		httpx.WriteError(ctx, w, httpx.NewError("tool_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, score.ErrInvalidScore):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_score", err.Error(), http.StatusBadRequest))
	default:
		observability.FromContext(ctx).Error("score store failure", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("score_unavailable", "score store unavailable", http.StatusServiceUnavailable))
	}
}
