// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/telme/lib/clock"
	"github.com/bureau-foundation/telme/lib/record"
	"github.com/bureau-foundation/telme/lib/signal"
)

// ErrStopped is returned by Setup, Drain and Status after Run has
// exited.
var ErrStopped = errors.New("scheduler: stopped")

// Config holds the parameters for creating a [Scheduler]. All fields
// are required.
type Config struct {
	// Clock stamps records and drives the check timer. Production
	// callers pass clock.Real(); tests pass clock.Fake().
	Clock clock.Clock

	// Logger receives flush and sink-failure messages.
	Logger *slog.Logger
}

// Scheduler buffers records and flushes them to sinks. See the package
// documentation for the threading model.
//
// Ingest is a no-op on a nil receiver, so producers can hold a nil
// *Scheduler when the pipeline is disabled.
type Scheduler struct {
	clock   clock.Clock
	logger  *slog.Logger
	epoch   time.Time
	mailbox *mailbox
	started atomic.Bool
	dropped atomic.Uint64
	done    chan struct{}

	// Everything below is owned by the worker goroutine.
	config          *FlushConfig
	paused          bool
	buffer          []record.Record
	sinks           []Sink
	lastRecordID    uint64
	sequence        uint64
	lastFlush       time.Time
	timer           *clock.Timer
	timerGeneration uint64
}

// New creates a scheduler in the Unconfigured state. The epoch for
// record timestamps is the clock reading at construction. Operations
// may be called immediately; they take effect once Run is started.
func New(config Config) (*Scheduler, error) {
	if config.Clock == nil {
		return nil, fmt.Errorf("scheduler: Clock is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("scheduler: Logger is required")
	}
	now := config.Clock.Now()
	return &Scheduler{
		clock:     config.Clock,
		logger:    config.Logger,
		epoch:     now,
		lastFlush: now,
		mailbox:   newMailbox(),
		done:      make(chan struct{}),
	}, nil
}

// Run processes posted operations until ctx is cancelled. On
// cancellation it runs the operations already queued, stops the check
// timer, flushes the buffer one last time, and closes Done. Operations
// posted after that are dropped.
//
// Must be called exactly once.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		panic("scheduler: Run called more than once")
	}
	defer close(s.done)

	for {
		select {
		case <-s.mailbox.notify:
			for _, task := range s.mailbox.take() {
				task()
			}
		case <-ctx.Done():
			for _, task := range s.mailbox.close() {
				task()
			}
			s.stopTimer()
			s.flush(record.FlushShutdown)
			return
		}
	}
}

// Done returns a channel that is closed after Run has exited,
// including its final flush.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Setup installs the flush configuration and starts the check timer.
// Only the first installed configuration counts; later calls are
// ignored. An invalid configuration is rejected before anything is
// posted.
func (s *Scheduler) Setup(config FlushConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if !s.mailbox.post(func() { s.install(config) }) {
		return ErrStopped
	}
	return nil
}

// AddSink registers sink for every subsequent flush. Sinks receive
// batches in registration order. A nil sink is ignored.
func (s *Scheduler) AddSink(sink Sink) {
	if sink == nil {
		return
	}
	s.mailbox.post(func() { s.sinks = append(s.sinks, sink) })
}

// Ingest queues payload for buffering. The record ID and timestamp are
// assigned when the worker processes the append, so IDs follow the
// order in which Ingest calls were made. Never blocks and never fails;
// calls after Run has exited are counted in Status.Dropped.
func (s *Scheduler) Ingest(payload signal.Signal, annotation signal.Annotation) {
	if s == nil || payload == nil {
		return
	}
	annotation = annotation.Clone()
	if !s.mailbox.post(func() { s.appendRecord(payload, annotation) }) {
		s.dropped.Add(1)
	}
}

// Flush delivers every buffered record to the sinks. It returns
// before delivery happens; use Drain to wait for it.
func (s *Scheduler) Flush() {
	s.mailbox.post(func() { s.flush(record.FlushManual) })
}

// PauseFlushing delivers the buffered records, then stops count and
// interval flushing. Ingestion continues to buffer.
func (s *Scheduler) PauseFlushing() {
	s.mailbox.post(func() {
		s.flush(record.FlushPause)
		s.paused = true
		s.stopTimer()
	})
}

// ResumeFlushing re-enables count and interval flushing. The first
// check runs one CheckInterval later.
func (s *Scheduler) ResumeFlushing() {
	s.mailbox.post(func() {
		s.paused = false
		if s.config != nil && s.timer == nil {
			s.armTimer()
		}
	})
}

// Drain flushes the buffer and waits until every sink has been handed
// the batch, or ctx is done.
func (s *Scheduler) Drain(ctx context.Context) error {
	delivered := make(chan struct{})
	posted := s.mailbox.post(func() {
		s.flush(record.FlushManual)
		close(delivered)
	})
	if !posted {
		return ErrStopped
	}
	select {
	case <-delivered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// install runs on the worker.
func (s *Scheduler) install(config FlushConfig) {
	if s.config != nil {
		s.logger.Debug("ignoring repeated flush setup")
		return
	}
	s.config = &config
	s.lastFlush = s.clock.Now()
	s.logger.Debug("flush configuration installed",
		"max_record_count", config.MaxRecordCount,
		"check_interval", config.CheckInterval,
		"flush_interval", config.FlushInterval,
	)
	if !s.paused {
		s.armTimer()
	}
}

// appendRecord runs on the worker.
func (s *Scheduler) appendRecord(payload signal.Signal, annotation signal.Annotation) {
	s.lastRecordID++
	s.buffer = append(s.buffer, record.New(s.lastRecordID, s.stamp(), payload, annotation))

	if s.flushingEnabled() && s.config.countExceeded(len(s.buffer)) {
		s.flush(record.FlushCount)
	}
}

// check is the timer-driven threshold evaluation. It runs on the
// worker. A check whose generation is not current was armed before a
// pause or a re-arm and is ignored.
func (s *Scheduler) check(generation uint64) {
	if generation != s.timerGeneration || !s.flushingEnabled() {
		return
	}
	s.timer = nil

	switch {
	case s.config.countExceeded(len(s.buffer)):
		s.flush(record.FlushCount)
	case s.config.intervalExceeded(clock.Elapsed(s.clock, s.lastFlush)):
		s.flush(record.FlushInterval)
	}

	s.armTimer()
}

func (s *Scheduler) flushingEnabled() bool {
	return s.config != nil && !s.paused
}

// armTimer schedules the next check. The callback only posts to the
// mailbox, so a timer that outlives Run does nothing.
func (s *Scheduler) armTimer() {
	s.timerGeneration++
	generation := s.timerGeneration
	s.timer = s.clock.AfterFunc(s.config.CheckInterval, func() {
		s.mailbox.post(func() { s.check(generation) })
	})
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// Invalidate a check that fired but has not run yet.
	s.timerGeneration++
}

// flush swaps out the buffer and delivers it. An empty buffer is not
// delivered and does not count as a flush.
func (s *Scheduler) flush(reason record.FlushReason) {
	if len(s.buffer) == 0 {
		return
	}

	batch := record.Batch{
		Sequence:  s.sequence,
		Reason:    reason,
		FlushedAt: s.stamp(),
		Records:   s.buffer,
	}
	s.buffer = nil
	s.sequence++
	s.lastFlush = s.clock.Now()

	first, last := batch.IDRange()
	s.logger.Debug("flushing batch",
		"sequence", batch.Sequence,
		"reason", reason.String(),
		"records", batch.Len(),
		"first_id", first,
		"last_id", last,
		"sinks", len(s.sinks),
	)

	for _, sink := range s.sinks {
		if err := Deliver(sink, batch); err != nil {
			s.logger.Error("sink write failed",
				"sink", sink.Name(),
				"sequence", batch.Sequence,
				"records", batch.Len(),
				"error", err,
			)
		}
	}
}

func (s *Scheduler) stamp() signal.Nanostamp {
	return signal.StampSince(clock.Elapsed(s.clock, s.epoch))
}
