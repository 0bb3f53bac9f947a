// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations the pipeline needs. Production
// code injects Real(); tests inject Fake().
type Clock interface {
	// Now returns the current time. Values returned by the real
	// clock carry a monotonic reading.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f. The returned
	// Timer cancels the pending call with Stop. If d <= 0, f is
	// called immediately in a new goroutine (real) or synchronously
	// (fake).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer represents a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if the timer has already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Elapsed returns the time that has passed on c since start. Negative
// results (a start reading taken from a different clock) are clamped
// to zero.
func Elapsed(c Clock, start time.Time) time.Duration {
	elapsed := c.Now().Sub(start)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
