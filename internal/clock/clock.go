// Package clock abstracts time so timers in the watchdog, the CEC debouncer
// and the video warm-up can be driven deterministically in tests.
//
// Production code takes Real(); tests take Fake(start) and call Advance.
package clock

import "time"

// Clock is the subset of the time package the bridge depends on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	// AfterFunc calls f after d. Fake clocks call f synchronously from Advance.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer cancels or re-arms a pending AfterFunc.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the timer from firing. Returns false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset re-arms the timer to fire after d. Returns true if it was still pending.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop, resetFunc: t.Reset}
}
