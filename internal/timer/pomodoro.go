package timer

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// PomodoroPhase is the interval kind.
type PomodoroPhase string

const (
	PhaseWork       PomodoroPhase = "work"
	PhaseShortBreak PomodoroPhase = "short_break"
	PhaseLongBreak  PomodoroPhase = "long_break"
)

// PomodoroConfig sets interval lengths. Zero values take the classic defaults.
type PomodoroConfig struct {
	Work           time.Duration
	ShortBreak     time.Duration
	LongBreak      time.Duration
	LongBreakEvery int
	Tick           time.Duration
}

func (c PomodoroConfig) withDefaults() PomodoroConfig {
	if c.Work <= 0 {
		c.Work = 25 * time.Minute
	}
	if c.ShortBreak <= 0 {
		c.ShortBreak = 5 * time.Minute
	}
	if c.LongBreak <= 0 {
		c.LongBreak = 15 * time.Minute
	}
	if c.LongBreakEvery <= 0 {
		c.LongBreakEvery = 4
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	return c
}

// PomodoroStatus is a snapshot for rendering.
type PomodoroStatus struct {
	Phase         PomodoroPhase `json:"phase"`
	Running       bool          `json:"running"`
	Paused        bool          `json:"paused"`
	Remaining     time.Duration `json:"remaining"`
	CompletedWork int           `json:"completed_work"`
}

// PomodoroDeps wires a Pomodoro.
type PomodoroDeps struct {
	Clock  Clock
	Logger *zap.Logger
	Config PomodoroConfig
	// OnPhase is called after an interval ends with the phase that follows.
	OnPhase func(PomodoroStatus)
}

// Pomodoro alternates work and break intervals. Each finished interval
// advances to the next one and keeps running.
type Pomodoro struct {
	cfg     PomodoroConfig
	clock   Clock
	logger  *zap.Logger
	onPhase func(PomodoroStatus)
	cd      *Countdown

	mu        sync.Mutex
	phase     PomodoroPhase
	running   bool
	remaining time.Duration
	completed int
}

// NewPomodoro builds a stopped timer at the start of a work interval.
func NewPomodoro(deps PomodoroDeps) *Pomodoro {
	p := &Pomodoro{
		cfg:     deps.Config.withDefaults(),
		clock:   deps.Clock,
		logger:  deps.Logger,
		onPhase: deps.OnPhase,
	}
	if p.clock == nil {
		p.clock = RealClock{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.phase = PhaseWork
	p.remaining = p.cfg.Work
	p.cd = NewCountdown(p.clock, Hooks{OnDone: func(time.Duration) { p.expire() }})
	return p
}

// Start runs the current interval from its remaining time. It is a no-op when running.
func (p *Pomodoro) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.startLocked()
}

// Pause stops the countdown and keeps the remaining time.
func (p *Pomodoro) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.remaining = p.cd.Remaining()
	p.cd.Stop()
	p.running = false
}

// Resume continues a paused interval.
func (p *Pomodoro) Resume() { p.Start() }

// Reset stops the timer and returns to a fresh work interval with no completed sessions.
func (p *Pomodoro) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cd.Stop()
	p.running = false
	p.phase = PhaseWork
	p.remaining = p.cfg.Work
	p.completed = 0
}

// Skip ends the current interval without counting it and moves on.
func (p *Pomodoro) Skip() {
	p.mu.Lock()
	p.advanceLocked(false)
}

// Status returns the current state.
func (p *Pomodoro) Status() PomodoroStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

func (p *Pomodoro) statusLocked() PomodoroStatus {
	st := PomodoroStatus{
		Phase:         p.phase,
		Running:       p.running,
		Remaining:     p.remaining,
		CompletedWork: p.completed,
	}
	if p.running {
		st.Remaining = p.cd.Remaining()
	}
	st.Paused = !p.running && p.remaining < p.length(p.phase)
	return st
}

func (p *Pomodoro) startLocked() {
	if err := p.cd.Start(p.remaining, p.cfg.Tick); err != nil {
		p.logger.Error("start pomodoro countdown", zap.Error(err), zap.String("phase", string(p.phase)))
		return
	}
	p.running = true
}

// expire handles a countdown that ran out. The countdown releases its lock
// before calling back, so a Reset (and a new Start) can slip in first; the
// expiry is stale when the timer is stopped or a fresh countdown is running.
func (p *Pomodoro) expire() {
	p.mu.Lock()
	if !p.running || p.cd.Running() {
		p.mu.Unlock()
		return
	}
	p.advanceLocked(true)
}

// advanceLocked moves to the next interval and releases p.mu. counted is false for skips.
func (p *Pomodoro) advanceLocked(counted bool) {
	wasRunning := p.running
	p.cd.Stop()
	if p.phase == PhaseWork {
		if counted {
			p.completed++
		}
		if counted && p.completed%p.cfg.LongBreakEvery == 0 {
			p.phase = PhaseLongBreak
		} else {
			p.phase = PhaseShortBreak
		}
	} else {
		p.phase = PhaseWork
	}
	p.remaining = p.length(p.phase)
	p.running = false
	if wasRunning {
		p.startLocked()
	}
	st := p.statusLocked()
	onPhase := p.onPhase
	p.mu.Unlock()

	p.logger.Debug("pomodoro phase", zap.String("phase", string(st.Phase)), zap.Int("completed_work", st.CompletedWork))
	if onPhase != nil {
		onPhase(st)
	}
}

func (p *Pomodoro) length(phase PomodoroPhase) time.Duration {
	switch phase {
	case PhaseShortBreak:
		return p.cfg.ShortBreak
	case PhaseLongBreak:
		return p.cfg.LongBreak
	default:
		return p.cfg.Work
	}
}
