// SPDX-License-Identifier: MPL-2.0

// Package clock abstracts wall-clock reads so cache expiry and run
// timestamps can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

type (
	// Clock reports the current time.
	Clock interface {
		Now() time.Time
		Since(t time.Time) time.Duration
	}

	// Real reads the system clock.
	Real struct{}

	// Fake is a manually advanced clock.
	Fake struct {
		mu      sync.Mutex
		current time.Time
	}
)

// Now returns the current system time.
func (Real) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

// NewFake returns a Fake set to initial, or to 2020-01-01 UTC when initial
// is zero.
func NewFake(initial time.Time) *Fake {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Fake{current: initial}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Since returns the fake time elapsed since t.
func (f *Fake) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Set moves the fake time to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}
