package timer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"finitefield.org/toolskit/internal/classify"
	"finitefield.org/toolskit/internal/score"
)

// TypingDuration is the fixed length of a typing test.
const TypingDuration = 60 * time.Second

// DefaultPassage is the text offered when none is configured.
const DefaultPassage = "The quick brown fox jumps over the lazy dog. " +
	"Practice makes progress, and steady hands make fewer mistakes. " +
	"Type each word carefully and let your speed grow with accuracy."

// TypingResult summarises a finished typing test.
type TypingResult struct {
	WPM      float64       `json:"wpm"`
	Accuracy float64       `json:"accuracy"`
	Correct  int           `json:"correct"`
	Typed    int           `json:"typed"`
	Elapsed  time.Duration `json:"elapsed"`
	Label    string        `json:"label"`
	Complete bool          `json:"complete"`
	Best     float64       `json:"best"`
	NewBest  bool          `json:"new_best"`
}

// TypingDeps wires a TypingTest.
type TypingDeps struct {
	Clock    Clock
	Tracker  *score.Tracker
	Logger   *zap.Logger
	Passage  string
	OnFinish func(TypingResult)
}

// TypingTest measures speed over a fixed passage. The first keystroke starts
// a 60 second countdown; typing the whole passage ends the test early.
type TypingTest struct {
	clock    Clock
	tracker  *score.Tracker
	logger   *zap.Logger
	passage  string
	onFinish func(TypingResult)
	cd       *Countdown

	mu     sync.Mutex
	phase  Phase
	typed  string
	round  int
	result *TypingResult
}

// NewTypingTest builds a ready test.
func NewTypingTest(deps TypingDeps) *TypingTest {
	t := &TypingTest{
		clock:    deps.Clock,
		tracker:  deps.Tracker,
		logger:   deps.Logger,
		passage:  deps.Passage,
		onFinish: deps.OnFinish,
		phase:    PhaseReady,
	}
	if t.clock == nil {
		t.clock = RealClock{}
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.passage == "" {
		t.passage = DefaultPassage
	}
	t.cd = NewCountdown(t.clock, Hooks{OnDone: func(elapsed time.Duration) { t.finish(elapsed, false) }})
	return t
}

// Passage returns the text to type.
func (t *TypingTest) Passage() string { return t.passage }

// Type replaces the typed text with input, as a text area would report it.
// Input is ignored once the test has finished.
func (t *TypingTest) Type(input string) {
	t.mu.Lock()
	switch t.phase {
	case PhaseFinished:
		t.mu.Unlock()
		return
	case PhaseReady:
		if input == "" {
			t.mu.Unlock()
			return
		}
		if err := t.cd.Start(TypingDuration, time.Second); err != nil {
			t.logger.Error("start typing countdown", zap.Error(err))
			t.mu.Unlock()
			return
		}
		t.phase = PhaseRunning
	}
	t.typed = input
	done := len([]rune(input)) >= len([]rune(t.passage))
	t.mu.Unlock()

	if done {
		elapsed := t.cd.Elapsed()
		t.cd.Stop()
		t.finish(elapsed, true)
	}
}

// Progress reports the live correct and typed character counts.
func (t *TypingTest) Progress() (correct, typed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CompareText(t.passage, t.typed)
}

// Remaining is the time left in the running test.
func (t *TypingTest) Remaining() time.Duration { return t.cd.Remaining() }

// Phase returns the current phase.
func (t *TypingTest) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Result returns the outcome once the test has finished.
func (t *TypingTest) Result() (TypingResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return TypingResult{}, false
	}
	return *t.result, true
}

// Reset cancels any countdown and clears the typed text and result.
func (t *TypingTest) Reset() {
	t.cd.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseReady
	t.typed = ""
	t.round++
	t.result = nil
}

func (t *TypingTest) finish(elapsed time.Duration, complete bool) {
	t.mu.Lock()
	if t.phase != PhaseRunning {
		t.mu.Unlock()
		return
	}
	correct, typed := CompareText(t.passage, t.typed)
	wpm, accuracy := TypingSpeed(correct, typed, elapsed)
	res := TypingResult{
		WPM:      wpm,
		Accuracy: accuracy,
		Correct:  correct,
		Typed:    typed,
		Elapsed:  elapsed,
		Complete: complete,
	}
	if band, err := classify.Classify(classify.MetricWPM, wpm); err == nil {
		res.Label = band.Label
	}
	round := t.round
	// claim the finish so a racing countdown expiry is ignored
	t.phase = PhaseFinished
	t.mu.Unlock()

	if t.tracker != nil {
		best, improved, err := t.tracker.Record(context.Background(), score.ToolTyping, wpm)
		if err != nil {
			t.logger.Warn("record typing best score", zap.Error(err), zap.Float64("wpm", wpm))
		} else {
			res.Best, res.NewBest = best, improved
		}
	}

	t.mu.Lock()
	if t.round != round {
		t.mu.Unlock()
		return
	}
	t.result = &res
	onFinish := t.onFinish
	t.mu.Unlock()

	if onFinish != nil {
		onFinish(res)
	}
}
