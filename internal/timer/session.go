package timer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"finitefield.org/toolskit/internal/score"
)

// Kind names a timed tool.
type Kind string

const (
	KindCPS      Kind = "cps"
	KindTyping   Kind = "typing"
	KindPomodoro Kind = "pomodoro"
)

var (
	// ErrUnknownKind is returned for a timer name other than cps, typing or pomodoro.
	ErrUnknownKind = errors.New("timer: unknown timer")
	// ErrUnsupportedAction is returned when an action does not apply to the timer kind,
	// e.g. clicking a Pomodoro.
	ErrUnsupportedAction = errors.New("timer: action not supported")
)

// ParseKind resolves a timer name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCPS, KindTyping, KindPomodoro:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// SessionDeps wires every timer a Session may hold.
type SessionDeps struct {
	Clock    Clock
	Tracker  *score.Tracker
	Logger   *zap.Logger
	Passage  string
	Pomodoro PomodoroConfig
	// OnScore is called when a CPS or typing test finishes.
	OnScore func(kind Kind, value float64, improved bool)
}

// Session is one visitor's timer: a CPS test, a typing test or a Pomodoro.
type Session struct {
	kind     Kind
	cps      *CPSTest
	typing   *TypingTest
	pomodoro *Pomodoro
}

// NewSession builds a ready timer of kind.
func NewSession(kind Kind, deps SessionDeps) (*Session, error) {
	s := &Session{kind: kind}
	switch kind {
	case KindCPS:
		s.cps = NewCPSTest(CPSDeps{
			Clock:   deps.Clock,
			Tracker: deps.Tracker,
			Logger:  deps.Logger,
			OnFinish: func(r CPSResult) {
				if deps.OnScore != nil {
					deps.OnScore(KindCPS, r.CPS, r.NewBest)
				}
			},
		})
	case KindTyping:
		s.typing = NewTypingTest(TypingDeps{
			Clock:   deps.Clock,
			Tracker: deps.Tracker,
			Logger:  deps.Logger,
			Passage: deps.Passage,
			OnFinish: func(r TypingResult) {
				if deps.OnScore != nil {
					deps.OnScore(KindTyping, r.WPM, r.NewBest)
				}
			},
		})
	case KindPomodoro:
		s.pomodoro = NewPomodoro(PomodoroDeps{Clock: deps.Clock, Logger: deps.Logger, Config: deps.Pomodoro})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return s, nil
}

// Kind returns the timer kind.
func (s *Session) Kind() Kind { return s.kind }

// Status is a rendering snapshot of a Session.
type Status struct {
	Kind        Kind   `json:"kind"`
	Phase       string `json:"phase"`
	RemainingMS int64  `json:"remainingMs"`

	DurationMS int64      `json:"durationMs,omitempty"`
	Clicks     *int       `json:"clicks,omitempty"`
	CPS        *CPSResult `json:"cpsResult,omitempty"`

	Passage string        `json:"passage,omitempty"`
	Correct *int          `json:"correct,omitempty"`
	Typed   *int          `json:"typed,omitempty"`
	Typing  *TypingResult `json:"typingResult,omitempty"`

	Pomodoro *PomodoroStatus `json:"pomodoro,omitempty"`
}

// Status snapshots the timer.
func (s *Session) Status() Status {
	st := Status{Kind: s.kind}
	switch s.kind {
	case KindCPS:
		clicks := s.cps.Clicks()
		st.Phase = string(s.cps.Phase())
		st.RemainingMS = s.cps.Remaining().Milliseconds()
		st.DurationMS = s.cps.Duration().Milliseconds()
		st.Clicks = &clicks
		if res, ok := s.cps.Result(); ok {
			st.CPS = &res
		}
	case KindTyping:
		correct, typed := s.typing.Progress()
		st.Phase = string(s.typing.Phase())
		st.RemainingMS = s.typing.Remaining().Milliseconds()
		st.DurationMS = TypingDuration.Milliseconds()
		st.Passage = s.typing.Passage()
		st.Correct, st.Typed = &correct, &typed
		if res, ok := s.typing.Result(); ok {
			st.Typing = &res
		}
	case KindPomodoro:
		ps := s.pomodoro.Status()
		st.Phase = string(ps.Phase)
		st.RemainingMS = ps.Remaining.Milliseconds()
		st.Pomodoro = &ps
	}
	return st
}

// SetDuration selects the CPS test length.
func (s *Session) SetDuration(d time.Duration) error {
	if s.cps == nil {
		return s.unsupported("duration")
	}
	return s.cps.SetDuration(d)
}

// Click counts a CPS click.
func (s *Session) Click() error {
	if s.cps == nil {
		return s.unsupported("click")
	}
	s.cps.Click()
	return nil
}

// Type reports the typing test's current input.
func (s *Session) Type(input string) error {
	if s.typing == nil {
		return s.unsupported("type")
	}
	s.typing.Type(input)
	return nil
}

// Start runs the Pomodoro.
func (s *Session) Start() error {
	if s.pomodoro == nil {
		return s.unsupported("start")
	}
	s.pomodoro.Start()
	return nil
}

// Pause halts the Pomodoro, keeping the remaining time.
func (s *Session) Pause() error {
	if s.pomodoro == nil {
		return s.unsupported("pause")
	}
	s.pomodoro.Pause()
	return nil
}

// Skip ends the current Pomodoro interval without counting it.
func (s *Session) Skip() error {
	if s.pomodoro == nil {
		return s.unsupported("skip")
	}
	s.pomodoro.Skip()
	return nil
}

// Reset returns any timer to its ready state and cancels its countdown.
func (s *Session) Reset() {
	switch {
	case s.cps != nil:
		s.cps.Reset()
	case s.typing != nil:
		s.typing.Reset()
	case s.pomodoro != nil:
		s.pomodoro.Reset()
	}
}

func (s *Session) unsupported(action string) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedAction, action, s.kind)
}
