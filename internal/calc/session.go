package calc

import (
	"fmt"
	"strings"
	"sync"

	"finitefield.org/toolskit/internal/validate"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateInvalid     State = "invalid"
	StateCalculating State = "calculating"
	StateComplete    State = "complete"
)

// fieldChangeHook is implemented by tools that rewrite dependent values.
type fieldChangeHook interface {
	FieldChanged(field string, values map[string]string)
}

// Snapshot is a point-in-time copy of a session for rendering.
type Snapshot struct {
	Tool   string                `json:"tool"`
	State  State                 `json:"state"`
	Values map[string]string     `json:"values"`
	Errors []validate.FieldError `json:"errors,omitempty"`
	Result *Result               `json:"result,omitempty"`
}

// Session holds the form state of one tool. It is safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	tool   Tool
	values map[string]string
	errors validate.Errors
	state  State
	result *Result
	// observe receives every state the session passes through; tests use it.
	observe func(State)
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(State)) SessionOption {
	return func(s *Session) { s.observe = fn }
}

// NewSession starts a session with the tool's defaults.
func NewSession(tool Tool, opts ...SessionOption) *Session {
	s := &Session{
		tool:   tool,
		values: tool.Defaults(),
		errors: validate.Errors{},
		state:  StateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Tool returns the tool driven by the session.
func (s *Session) Tool() Tool { return s.tool }

// UpdateField stores raw for name. The field's previous error is cleared first;
// an Invalid or Complete session drops back to Idle.
func (s *Session) UpdateField(name, raw string) error {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemaWith(name).Field(name); !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, s.tool.Name(), name)
	}
	delete(s.errors, name)
	delete(s.errors, validate.FormField)
	s.values[name] = raw
	if hook, ok := s.tool.(fieldChangeHook); ok {
		hook.FieldChanged(name, s.values)
	}
	if s.state == StateInvalid || s.state == StateComplete {
		s.result = nil
		s.setState(StateIdle)
	}
	return nil
}

// ValidateField checks one field against the current values and records the verdict.
func (s *Session) ValidateField(name string) *validate.FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe := s.tool.Schema(s.values).Validate(name, s.values[name], validate.Mode(s.values))
	if fe == nil {
		delete(s.errors, name)
		return nil
	}
	s.errors[name] = fe
	copied := *fe
	return &copied
}

// Submit validates every field and, when all pass, calculates a fresh result.
func (s *Session) Submit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setState(StateValidating)
	errs := s.tool.Schema(s.values).ValidateAll(s.values, validate.Mode(s.values))
	s.errors = errs
	if len(errs) > 0 {
		s.result = nil
		s.setState(StateInvalid)
		return false
	}

	s.setState(StateCalculating)
	result, err := s.tool.Calculate(copyValues(s.values))
	if err != nil {
		s.errors[validate.FormField] = &validate.FieldError{
			Field:   validate.FormField,
			Kind:    validate.KindCalculation,
			Message: "could not be calculated from these values",
		}
		s.result = nil
		s.setState(StateInvalid)
		return false
	}
	s.result = &result
	s.setState(StateComplete)
	return true
}

// Reset restores defaults and clears errors and result.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = s.tool.Defaults()
	s.errors = validate.Errors{}
	s.result = nil
	if s.state != StateIdle {
		s.setState(StateIdle)
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot copies the session for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Tool:   s.tool.Name(),
		State:  s.state,
		Values: copyValues(s.values),
		Errors: s.errors.List(),
	}
	if s.result != nil {
		r := s.result.clone()
		snap.Result = &r
	}
	return snap
}

// schemaWith returns the schema as it would look once name is written.
func (s *Session) schemaWith(name string) validate.Schema {
	if _, ok := s.values[name]; ok {
		return s.tool.Schema(s.values)
	}
	blank := copyValues(s.values)
	blank[name] = ""
	return s.tool.Schema(blank)
}

func (s *Session) setState(st State) {
	s.state = st
	if s.observe != nil {
		s.observe(st)
	}
}
