// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"

	"github.com/bureau-foundation/telme/lib/signal"
)

// FlushReason records what triggered a flush.
type FlushReason uint8

const (
	// FlushCount: the buffer reached the configured record count.
	FlushCount FlushReason = iota + 1
	// FlushInterval: the flush interval elapsed since the last flush.
	FlushInterval
	// FlushManual: an explicit Flush or Drain call.
	FlushManual
	// FlushPause: PauseFlushing drained the buffer before pausing.
	FlushPause
	// FlushShutdown: the scheduler's Run loop is exiting.
	FlushShutdown
)

// String returns the lower-case reason name used in logs and on the
// wire.
func (reason FlushReason) String() string {
	switch reason {
	case FlushCount:
		return "count"
	case FlushInterval:
		return "interval"
	case FlushManual:
		return "manual"
	case FlushPause:
		return "pause"
	case FlushShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", reason)
	}
}

// ParseFlushReason is the inverse of FlushReason.String.
func ParseFlushReason(name string) (FlushReason, error) {
	switch name {
	case "count":
		return FlushCount, nil
	case "interval":
		return FlushInterval, nil
	case "manual":
		return FlushManual, nil
	case "pause":
		return FlushPause, nil
	case "shutdown":
		return FlushShutdown, nil
	default:
		return 0, fmt.Errorf("unknown flush reason %q", name)
	}
}

// Batch is the snapshot of the buffer handed to sinks by one flush.
type Batch struct {
	// Sequence numbers delivered batches from 0.
	Sequence uint64

	// Reason is the trigger of this flush.
	Reason FlushReason

	// FlushedAt is the scheduler's monotonic reading when the buffer
	// was swapped out.
	FlushedAt signal.Nanostamp

	// Records are in strictly increasing ID order.
	Records []Record
}

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b.Records) }

// IDRange returns the first and last record IDs. Both are zero for an
// empty batch.
func (b Batch) IDRange() (first, last uint64) {
	if len(b.Records) == 0 {
		return 0, 0
	}
	return b.Records[0].ID, b.Records[len(b.Records)-1].ID
}
