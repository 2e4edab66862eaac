package timer

import (
	"errors"
	"sync"
	"time"
)

// DefaultTick is the cadence used when Start is given a non-positive tick.
const DefaultTick = 100 * time.Millisecond

// ErrInvalidDuration rejects non-positive countdown lengths.
var ErrInvalidDuration = errors.New("timer: duration must be positive")

// Hooks receive countdown events. Either may be nil.
type Hooks struct {
	OnTick func(remaining time.Duration)
	OnDone func(elapsed time.Duration)
}

// Countdown runs at most one timer at a time. Starting again replaces the
// running timer; once Stop returns no callback that has not already begun will run.
type Countdown struct {
	clock Clock
	hooks Hooks

	mu       sync.Mutex
	gen      uint64
	running  bool
	start    time.Time
	stopped  time.Time
	end      time.Time
	duration time.Duration
	tick     time.Duration
	ticks    int
	pending  Stopper
}

// NewCountdown builds a countdown on clock (RealClock when nil).
func NewCountdown(clock Clock, hooks Hooks) *Countdown {
	if clock == nil {
		clock = RealClock{}
	}
	return &Countdown{clock: clock, hooks: hooks}
}

// Start begins a countdown of duration, ticking every tick.
func (c *Countdown) Start(duration, tick time.Duration) error {
	if duration <= 0 {
		return ErrInvalidDuration
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.gen++
	c.running = true
	c.start = c.clock.Now()
	c.stopped = time.Time{}
	c.end = c.start.Add(duration)
	c.duration = duration
	c.tick = tick
	c.ticks = 0
	c.scheduleLocked(c.gen)
	return nil
}

// Stop cancels the running countdown. It reports whether one was running.
func (c *Countdown) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.running
	c.cancelLocked()
	return was
}

// Running reports whether a countdown is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Elapsed is the wall time between Start and now (or the stop), capped at the duration.
func (c *Countdown) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

// Remaining is the wall time left, zero when idle or expired.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	if left := c.end.Sub(c.clock.Now()); left > 0 {
		return left
	}
	return 0
}

func (c *Countdown) elapsedLocked() time.Duration {
	if c.start.IsZero() {
		return 0
	}
	ref := c.clock.Now()
	if !c.running && !c.stopped.IsZero() {
		ref = c.stopped
	}
	e := ref.Sub(c.start)
	if e > c.duration {
		return c.duration
	}
	return e
}

func (c *Countdown) cancelLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.running {
		c.stopped = c.clock.Now()
	}
	c.gen++
	c.running = false
}

// scheduleLocked arms the next tick on the fixed cadence start+n*tick, clamped to the end.
func (c *Countdown) scheduleLocked(gen uint64) {
	c.ticks++
	next := c.start.Add(time.Duration(c.ticks) * c.tick)
	if next.After(c.end) {
		next = c.end
	}
	wait := next.Sub(c.clock.Now())
	if wait < 0 {
		wait = 0
	}
	c.pending = c.clock.AfterFunc(wait, func() { c.fire(gen) })
}

func (c *Countdown) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	if !now.Before(c.end) {
		elapsed := now.Sub(c.start)
		c.running = false
		c.stopped = now
		c.pending = nil
		c.gen++
		onDone := c.hooks.OnDone
		c.mu.Unlock()
		if onDone != nil {
			onDone(elapsed)
		}
		return
	}
	remaining := c.end.Sub(now)
	c.scheduleLocked(gen)
	onTick := c.hooks.OnTick
	c.mu.Unlock()
	if onTick != nil {
		onTick(remaining)
	}
}
