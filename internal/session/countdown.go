package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/clock"
)

const tickInterval = time.Second

// Countdown decrements the remaining exam time once per second and fires the
// timeout callback exactly once when it reaches zero.
type Countdown struct {
	sched     clock.Scheduler
	onTick    func(remaining int)
	onTimeout func()

	mu        sync.Mutex
	remaining int
	running   bool
	gen       uint64
	timer     clock.Timer
}

// NewCountdown creates a stopped countdown. onTick may be nil.
func NewCountdown(sched clock.Scheduler, onTick func(remaining int), onTimeout func()) *Countdown {
	if onTick == nil {
		onTick = func(int) {}
	}
	return &Countdown{sched: sched, onTick: onTick, onTimeout: onTimeout}
}

// Start begins ticking from initialSeconds. It is a no-op while already running.
func (c *Countdown) Start(initialSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	if initialSeconds < 0 {
		initialSeconds = 0
	}
	c.remaining = initialSeconds
	c.running = true
	c.gen++
	c.scheduleLocked(c.gen)
}

// Stop cancels ticking. Safe to call repeatedly and before Start.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Remaining returns the seconds left; frozen once stopped.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether the countdown is ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
	c.gen++
}

func (c *Countdown) scheduleLocked(gen uint64) {
	c.timer = c.sched.After(tickInterval, func() { c.tick(gen) })
}

func (c *Countdown) tick(gen uint64) {
	c.mu.Lock()
	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return
	}

	if c.remaining > 0 {
		c.remaining--
	}
	remaining := c.remaining
	expired := remaining == 0
	if expired {
		c.stopLocked()
	} else {
		c.scheduleLocked(gen)
	}
	c.mu.Unlock()

	c.onTick(remaining)
	if expired {
		c.onTimeout()
	}
}

// FormatTime renders seconds as mm:ss. Minutes are not wrapped into hours.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
