// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
)

// State is the scheduler's position in its state machine.
type State uint8

const (
	// StateUnconfigured: no FlushConfig installed. Only manual
	// flushes deliver records.
	StateUnconfigured State = iota
	// StateRunning: count and interval flushing are active.
	StateRunning
	// StatePaused: records buffer but only manual flushes deliver.
	StatePaused
)

// String returns "unconfigured", "running", or "paused".
func (state State) String() string {
	switch state {
	case StateUnconfigured:
		return "unconfigured"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// Status is a snapshot of the worker's state.
type Status struct {
	State State

	// Config is the installed configuration. Zero when Unconfigured.
	Config FlushConfig

	// Buffered is the number of records waiting for the next flush.
	Buffered int

	// LastRecordID is the ID of the most recently ingested record.
	LastRecordID uint64

	// Batches is the number of batches delivered so far.
	Batches uint64

	// Sinks is the number of registered sinks.
	Sinks int

	// Dropped counts Ingest calls made after Run exited.
	Dropped uint64
}

// Status returns a snapshot taken on the worker. Because the worker
// processes operations in order, every operation posted before Status
// has completed when it returns.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	result := make(chan Status, 1)
	posted := s.mailbox.post(func() { result <- s.snapshot() })
	if !posted {
		return Status{}, ErrStopped
	}
	select {
	case status := <-result:
		return status, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Dropped returns the number of Ingest calls rejected because Run had
// exited. Unlike Status it is usable after shutdown.
func (s *Scheduler) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Scheduler) snapshot() Status {
	status := Status{
		Buffered:     len(s.buffer),
		LastRecordID: s.lastRecordID,
		Batches:      s.sequence,
		Sinks:        len(s.sinks),
		Dropped:      s.dropped.Load(),
	}
	switch {
	case s.config == nil:
		status.State = StateUnconfigured
	case s.paused:
		status.State = StatePaused
		status.Config = *s.config
	default:
		status.State = StateRunning
		status.Config = *s.config
	}
	return status
}
