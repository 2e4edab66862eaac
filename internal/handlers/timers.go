package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/toolskit/internal/platform/httpx"
	"finitefield.org/toolskit/internal/platform/observability"
	"finitefield.org/toolskit/internal/platform/sessions"
	"finitefield.org/toolskit/internal/score"
	"finitefield.org/toolskit/internal/timer"
)

const maxTimerBodySize = 16 * 1024

// TimerStore keeps running timer sessions.
type TimerStore = sessions.MemoryStore[*timer.Session]

type timerRecord = sessions.Record[*timer.Session]

// NewTimerStore builds a TimerStore that cancels a timer's countdown when the
// session is deleted or expires.
func NewTimerStore(ttl time.Duration) *TimerStore {
	return sessions.NewMemoryStore(ttl, sessions.WithEvictHook(func(s *timer.Session) { s.Reset() }))
}

// TimerDeps wires TimerHandlers.
type TimerDeps struct {
	Sessions *TimerStore
	Tracker  *score.Tracker
	Metrics  *observability.Metrics
	Clock    timer.Clock
	Pomodoro timer.PomodoroConfig
	Logger   *zap.Logger
	Now      func() time.Time
}

// TimerHandlers runs CPS tests, typing tests and Pomodoro timers server-side.
type TimerHandlers struct {
	sessions *TimerStore
	tracker  *score.Tracker
	metrics  *observability.Metrics
	clock    timer.Clock
	pomodoro timer.PomodoroConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewTimerHandlers constructs the timer handler set.
func NewTimerHandlers(deps TimerDeps) *TimerHandlers {
	h := &TimerHandlers{
		sessions: deps.Sessions,
		tracker:  deps.Tracker,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		pomodoro: deps.Pomodoro,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if h.sessions == nil {
		h.sessions = NewTimerStore(sessions.DefaultTTL)
	}
	if h.tracker == nil {
		h.tracker = score.NewTracker(score.NewMemoryStore())
	}
	if h.clock == nil {
		h.clock = timer.RealClock{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = h.clock.Now
	}
	return h
}

// Routes registers the timer endpoints.
func (h *TimerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/timers/{tool}", h.create)

	r.Get("/timers/sessions/{sessionID}", h.get)
	r.Delete("/timers/sessions/{sessionID}", h.remove)
	r.Post("/timers/sessions/{sessionID}:click", h.action(func(s *timer.Session) error { return s.Click() }))
	r.Post("/timers/sessions/{sessionID}:type", h.typeInput)
	r.Post("/timers/sessions/{sessionID}:start", h.action(func(s *timer.Session) error { return s.Start() }))
	r.Post("/timers/sessions/{sessionID}:resume", h.action(func(s *timer.Session) error { return s.Start() }))
	r.Post("/timers/sessions/{sessionID}:pause", h.action(func(s *timer.Session) error { return s.Pause() }))
	r.Post("/timers/sessions/{sessionID}:skip", h.action(func(s *timer.Session) error { return s.Skip() }))
	r.Post("/timers/sessions/{sessionID}:reset", h.action(func(s *timer.Session) error {
		s.Reset()
		return nil
	}))
}

type createTimerRequest struct {
	DurationMS int64 `json:"duration_ms"`
}

type timerActionRequest struct {
	Input *string `json:"input"`
}

type timerResponse struct {
	ID string `json:"id"`
	timer.Status
	Best      *float64  `json:"best,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *TimerHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, err := timer.ParseKind(chi.URLParam(r, "tool"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("timer_not_found", err.Error(), http.StatusNotFound))
		return
	}

	var req createTimerRequest
	body, err := readLimitedBody(r, maxTimerBodySize)
	switch {
	case errors.Is(err, errEmptyBody):
	case err != nil:
		writeBodyError(ctx, w, err)
		return
	default:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	}

	record, err := h.sessions.Create(ctx, h.now(), func(id string) (*timer.Session, error) {
		logger := h.logger.With(zap.String("timer_id", id), zap.String("tool", string(kind)))
		s, err := timer.NewSession(kind, timer.SessionDeps{
			Clock:    h.clock,
			Tracker:  h.tracker,
			Logger:   logger,
			Pomodoro: h.pomodoro,
			OnScore: func(kind timer.Kind, value float64, improved bool) {
				h.metrics.Score(context.Background(), string(kind), improved)
				logger.Info("timer finished", zap.Float64("score", value), zap.Bool("improved", improved))
			},
		})
		if err != nil {
			return nil, err
		}
		if req.DurationMS != 0 {
			if err := s.SetDuration(time.Duration(req.DurationMS) * time.Millisecond); err != nil {
				return nil, err
			}
		}
		return s, nil
	})
	if err != nil {
		h.writeTimerError(ctx, w, err)
		return
	}

	if prefix, _, found := strings.Cut(r.URL.Path, "/timers/"); found {
		w.Header().Set("Location", prefix+"/timers/sessions/"+record.ID)
	}
	httpx.WriteJSON(w, http.StatusCreated, h.buildResponse(ctx, record))
}

func (h *TimerHandlers) get(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.buildResponse(r.Context(), record))
}

func (h *TimerHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.sessions.Delete(ctx, chi.URLParam(r, "sessionID")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", err.Error(), http.StatusInternalServerError))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TimerHandlers) typeInput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxTimerBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req timerActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if req.Input == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "input is required", http.StatusBadRequest))
		return
	}
	h.action(func(s *timer.Session) error { return s.Type(*req.Input) })(w, r)
}

func (h *TimerHandlers) action(fn func(*timer.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := h.lookup(w, r)
		if !ok {
			return
		}
		ctx := r.Context()
		if err := fn(record.Value); err != nil {
			h.writeTimerError(ctx, w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, h.buildResponse(ctx, record))
	}
}

func (h *TimerHandlers) lookup(w http.ResponseWriter, r *http.Request) (timerRecord, bool) {
	ctx := r.Context()
	record, err := h.sessions.Get(ctx, chi.URLParam(r, "sessionID"), h.now())
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "timer not found or expired", http.StatusNotFound))
			return timerRecord{}, false
		}
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", err.Error(), http.StatusInternalServerError))
		return timerRecord{}, false
	}
	return record, true
}

func (h *TimerHandlers) buildResponse(ctx context.Context, record timerRecord) timerResponse {
	resp := timerResponse{
		ID:        record.ID,
		Status:    record.Value.Status(),
		ExpiresAt: record.ExpiresAt,
	}
	if kind := record.Value.Kind(); kind != timer.KindPomodoro {
		best, ok, err := h.tracker.Best(ctx, string(kind))
		if err != nil {
			observability.FromContext(ctx).Warn("load best score", zap.Error(err), zap.String("tool", string(kind)))
		} else if ok {
			resp.Best = &best
		}
	}
	return resp
}

func (h *TimerHandlers) writeTimerError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timer.ErrUnknownKind):
		httpx.WriteError(ctx, w, httpx.NewError("timer_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, timer.ErrUnsupportedAction):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_action", err.Error(), http.StatusConflict))
	case errors.Is(err, timer.ErrTestRunning):
		httpx.WriteError(ctx, w, httpx.NewError("timer_running", err.Error(), http.StatusConflict))
	case errors.Is(err, timer.ErrInvalidDuration):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_duration", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("timer_unavailable", err.Error(), http.StatusInternalServerError))
	}
}
