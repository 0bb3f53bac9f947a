// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the flush
// scheduler and its sinks.
//
// Every type that reads the current time or schedules deferred work
// takes a [Clock] instead of calling the time package directly. In
// production, [Real] provides the standard library behavior. In tests,
// [Fake] provides a clock that moves only when Advance is called, so
// flush-threshold tests are deterministic and never sleep.
//
// # Monotonic readings
//
// Record timestamps are derived from the difference between two Now
// readings ([Elapsed]). The real clock returns time.Time values that
// carry a monotonic reading, so the difference is immune to wall-clock
// adjustments. The fake clock has no wall clock to adjust, so the same
// arithmetic is exact.
//
// # FakeClock Synchronization
//
// Scheduling work on a FakeClock registers a pending waiter. Use
// WaitForTimers to block until the expected number of waiters exist
// before calling Advance:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go worker.Run(ctx)          // arms a check timer
//	fakeClock.WaitForTimers(1)  // wait for the timer to register
//	fakeClock.Advance(2 * time.Second)
package clock
