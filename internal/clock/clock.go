// Package clock abstracts wall-clock time so the timing windows of the
// radio protocol can run without real delay under test.
package clock

import "time"

// Clock reports the current time and waits.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Real is the system clock.
type Real struct{}

func (Real) Now() time.Time        { return time.Now() }
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a virtual clock. Sleep advances Now by the requested duration and
// returns immediately. It is not safe for concurrent use.
type Fake struct {
	now   time.Time
	slept time.Duration
}

// NewFake returns a Fake starting at an arbitrary fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *Fake) Now() time.Time { return f.now }

func (f *Fake) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	f.now = f.now.Add(d)
	f.slept += d
}

// Advance moves the clock forward without counting it as sleep.
func (f *Fake) Advance(d time.Duration) { f.now = f.now.Add(d) }

// Slept is the total virtual time spent in Sleep.
func (f *Fake) Slept() time.Duration { return f.slept }
