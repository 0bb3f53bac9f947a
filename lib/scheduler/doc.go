// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler buffers records and decides when to hand them to
// sinks.
//
// A [Scheduler] owns one worker goroutine (started by Run) and a FIFO
// mailbox. Every public operation posts a task to the mailbox and
// returns immediately; the worker runs the tasks one at a time in
// posting order. The worker exclusively owns the record buffer, the
// installed [FlushConfig], the paused flag, the sink list, the record
// counter, and the check timer, so none of them need locks.
//
// Flush triggers:
//   - Count: after every append, if the buffer holds MaxRecordCount
//     records the worker flushes immediately.
//   - Interval: every CheckInterval the worker checks whether
//     FlushInterval has passed since the last flush.
//   - Manual: Flush, Drain, PauseFlushing, and Run's shutdown path.
//
// A flush swaps the buffer for an empty one and delivers the old
// contents to every sink in registration order, on the worker. Records
// therefore reach each sink in strictly increasing ID order, within and
// across batches. A sink that returns an error or panics is logged and
// skipped; the batch is not re-queued.
//
// State machine:
//
//	Unconfigured --Setup--> Running <--PauseFlushing/ResumeFlushing--> Paused
//
// Manual flushes work in every state. Count and interval flushes only
// happen while Running.
package scheduler
