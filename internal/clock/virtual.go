package clock

import (
	"sort"
	"sync"
	"time"
)

// Virtual is a manually advanced Scheduler. Callbacks fire synchronously on the
// goroutine calling Advance, in deadline order, ties in scheduling order.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*virtualTimer
}

type virtualTimer struct {
	v       *Virtual
	at      time.Time
	seq     uint64
	f       func()
	stopped bool
	fired   bool
}

// NewVirtual returns a virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) After(d time.Duration, f func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{v: v, at: v.now.Add(d), seq: v.seq, f: f}
	v.timers = append(v.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every callback due on the way,
// including callbacks scheduled by earlier callbacks inside the window.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		t := v.nextDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	v.mu.Lock()
	v.now = target
	v.mu.Unlock()
}

// Pending reports how many callbacks are scheduled and not yet fired or stopped.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.timers)
}

func (v *Virtual) nextDue(target time.Time) *virtualTimer {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.timers) == 0 {
		return nil
	}
	sort.Slice(v.timers, func(i, j int) bool {
		if !v.timers[i].at.Equal(v.timers[j].at) {
			return v.timers[i].at.Before(v.timers[j].at)
		}
		return v.timers[i].seq < v.timers[j].seq
	})
	t := v.timers[0]
	if t.at.After(target) {
		return nil
	}
	v.timers = v.timers[1:]
	t.fired = true
	if t.at.After(v.now) {
		v.now = t.at
	}
	return t
}

func (t *virtualTimer) Stop() bool {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	for i, other := range t.v.timers {
		if other == t {
			t.v.timers = append(t.v.timers[:i], t.v.timers[i+1:]...)
			break
		}
	}
	return true
}
