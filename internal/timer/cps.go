package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"finitefield.org/toolskit/internal/classify"
	"finitefield.org/toolskit/internal/score"
)

// Phase is the lifecycle of a timed test.
type Phase string

const (
	PhaseReady    Phase = "ready"
	PhaseRunning  Phase = "running"
	PhaseFinished Phase = "finished"
)

// ErrTestRunning rejects configuration changes while a test is in progress.
var ErrTestRunning = errors.New("timer: test is running")

// CPSDurations are the selectable CPS test lengths.
var CPSDurations = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// CPSResult summarises a finished CPS test.
type CPSResult struct {
	Clicks  int           `json:"clicks"`
	Elapsed time.Duration `json:"elapsed"`
	CPS     float64       `json:"cps"`
	Label   string        `json:"label"`
	Badge   string        `json:"badge,omitempty"`
	Best    float64       `json:"best"`
	NewBest bool          `json:"new_best"`
}

// CPSDeps wires a CPSTest.
type CPSDeps struct {
	Clock   Clock
	Tracker *score.Tracker
	Logger  *zap.Logger
	// OnFinish is called once per finished test, outside the test's lock.
	OnFinish func(CPSResult)
}

// CPSTest counts clicks during a countdown that the first click starts.
type CPSTest struct {
	clock    Clock
	tracker  *score.Tracker
	logger   *zap.Logger
	onFinish func(CPSResult)
	cd       *Countdown

	mu       sync.Mutex
	duration time.Duration
	phase    Phase
	clicks   int
	round    int
	result   *CPSResult
}

// NewCPSTest builds a test with the 5 second default duration.
func NewCPSTest(deps CPSDeps) *CPSTest {
	t := &CPSTest{
		clock:    deps.Clock,
		tracker:  deps.Tracker,
		logger:   deps.Logger,
		onFinish: deps.OnFinish,
		duration: 5 * time.Second,
		phase:    PhaseReady,
	}
	if t.clock == nil {
		t.clock = RealClock{}
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	t.cd = NewCountdown(t.clock, Hooks{OnDone: t.finish})
	return t
}

// SetDuration selects one of CPSDurations.
func (t *CPSTest) SetDuration(d time.Duration) error {
	valid := false
	for _, allowed := range CPSDurations {
		if d == allowed {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s is not a CPS test length", ErrInvalidDuration, d)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == PhaseRunning {
		return ErrTestRunning
	}
	t.duration = d
	return nil
}

// Click registers one click. The first click of a ready test starts the countdown;
// clicks after the end are ignored. It returns the click count so far.
func (t *CPSTest) Click() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.phase {
	case PhaseFinished:
		return t.clicks
	case PhaseReady:
		if err := t.cd.Start(t.duration, DefaultTick); err != nil {
			t.logger.Error("start cps countdown", zap.Error(err))
			return t.clicks
		}
		t.phase = PhaseRunning
	}
	t.clicks++
	return t.clicks
}

// Clicks returns the clicks counted so far.
func (t *CPSTest) Clicks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clicks
}

// Duration returns the selected test length.
func (t *CPSTest) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Remaining is the time left in the running test.
func (t *CPSTest) Remaining() time.Duration { return t.cd.Remaining() }

// Phase returns the current phase.
func (t *CPSTest) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Result returns the outcome once the test has finished.
func (t *CPSTest) Result() (CPSResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return CPSResult{}, false
	}
	return *t.result, true
}

// Reset cancels any countdown and clears clicks and result.
func (t *CPSTest) Reset() {
	t.cd.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseReady
	t.clicks = 0
	t.round++
	t.result = nil
}

func (t *CPSTest) finish(elapsed time.Duration) {
	t.mu.Lock()
	if t.phase != PhaseRunning {
		t.mu.Unlock()
		return
	}
	res := CPSResult{
		Clicks:  t.clicks,
		Elapsed: elapsed,
		CPS:     ClicksPerSecond(t.clicks, elapsed),
	}
	round := t.round
	if band, err := classify.Classify(classify.MetricCPS, res.CPS); err == nil {
		res.Label, res.Badge = band.Label, band.Badge
	}
	t.mu.Unlock()

	if t.tracker != nil {
		best, improved, err := t.tracker.Record(context.Background(), score.ToolCPS, res.CPS)
		if err != nil {
			t.logger.Warn("record cps best score", zap.Error(err), zap.Float64("cps", res.CPS))
		} else {
			res.Best, res.NewBest = best, improved
		}
	}

	t.mu.Lock()
	if t.phase != PhaseRunning || t.round != round {
		// reset while recording
		t.mu.Unlock()
		return
	}
	t.phase = PhaseFinished
	t.result = &res
	onFinish := t.onFinish
	t.mu.Unlock()

	t.logger.Debug("cps test finished", zap.Int("clicks", res.Clicks), zap.Float64("cps", res.CPS))
	if onFinish != nil {
		onFinish(res)
	}
}
