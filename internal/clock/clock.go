// Package clock abstracts timers so session timing can run against a virtual
// clock in tests.
package clock

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped it before it fired.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, f func()) Timer
}

// Real is the wall-clock Scheduler. Callbacks run on their own goroutine.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) After(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
