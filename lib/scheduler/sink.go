// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"

	"github.com/bureau-foundation/telme/lib/record"
)

// Sink consumes flushed batches. WriteBatch is called on the
// scheduler's worker, once per batch, and must not modify the batch:
// the same Records slice is passed to every sink. A slow WriteBatch
// delays all ingestion and flush processing.
//
// Implementations own their output format. A failure rendering one
// record should be handled inside the sink (typically by writing a
// degraded representation); a returned error is logged by the
// scheduler and otherwise ignored.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// WriteBatch delivers one batch.
	WriteBatch(batch record.Batch) error
}

// Deliver hands batch to one sink, converting a panic into an error
// so a misbehaving sink cannot take down the worker.
func Deliver(sink Sink, batch record.Batch) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return sink.WriteBatch(batch)
}
