// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"
	"time"
)

// Never disables the interval trigger when used as FlushInterval.
const Never time.Duration = -1

// Default flush thresholds.
const (
	DefaultMaxRecordCount = 100
	DefaultCheckInterval  = 2 * time.Second
	DefaultFlushInterval  = 5 * time.Second
)

// FlushConfig holds the flush thresholds. Setup copies it; later
// changes by the caller have no effect.
type FlushConfig struct {
	// MaxRecordCount is the buffer size that forces an immediate
	// flush. Zero disables the count trigger.
	MaxRecordCount uint

	// CheckInterval is how often the worker evaluates the interval
	// trigger. Must be positive.
	CheckInterval time.Duration

	// FlushInterval is the longest time records may wait since the
	// previous flush. Never disables the interval trigger.
	FlushInterval time.Duration
}

// DefaultFlushConfig returns 100 records, a 2s check, and a 5s flush
// interval.
func DefaultFlushConfig() FlushConfig {
	return FlushConfig{
		MaxRecordCount: DefaultMaxRecordCount,
		CheckInterval:  DefaultCheckInterval,
		FlushInterval:  DefaultFlushInterval,
	}
}

// Validate reports configurations the worker cannot run.
func (c FlushConfig) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("flush config: CheckInterval must be positive, got %v", c.CheckInterval)
	}
	if c.FlushInterval == 0 {
		return fmt.Errorf("flush config: FlushInterval must be positive or Never")
	}
	if c.FlushInterval < 0 && c.FlushInterval != Never {
		return fmt.Errorf("flush config: FlushInterval must be positive or Never, got %v", c.FlushInterval)
	}
	return nil
}

// countExceeded reports whether a buffer of the given size triggers a
// count flush.
func (c FlushConfig) countExceeded(buffered int) bool {
	return c.MaxRecordCount > 0 && uint(buffered) >= c.MaxRecordCount
}

// intervalExceeded reports whether elapsed time since the last flush
// triggers an interval flush.
func (c FlushConfig) intervalExceeded(sinceLastFlush time.Duration) bool {
	return c.FlushInterval != Never && sinceLastFlush >= c.FlushInterval
}
