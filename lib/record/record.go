// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/telme/lib/signal"
)

// Record is the canonical representation of one ingested signal.
type Record struct {
	// ID is assigned by the scheduler, starting at 1 and strictly
	// increasing for the scheduler's lifetime.
	ID uint64

	// Kind is the lower-cased Signal.Kind of the payload.
	Kind string

	// Timestamp is the scheduler's monotonic reading at ingestion.
	Timestamp signal.Nanostamp

	// Payload is the original signal.
	Payload signal.Signal

	// Annotation is the correlation metadata as received.
	Annotation signal.Annotation

	// Correlation repeats the annotation fields sinks most often
	// need, so they do not have to resolve checkpoint or task context
	// themselves.
	Correlation Correlation
}

// Correlation is the denormalized correlation context of a record.
type Correlation struct {
	EventID    uint64              `json:"event_id"`
	Checkpoint signal.CheckpointID `json:"checkpoint"`
	TaskID     *uint64             `json:"task_id,omitempty"`
}

// New builds a record. The annotation is deep-copied twice (once for
// Annotation, once for Correlation) so the record shares no memory
// with the producer or with itself.
func New(id uint64, timestamp signal.Nanostamp, payload signal.Signal, annotation signal.Annotation) Record {
	correlated := annotation.Clone()
	return Record{
		ID:         id,
		Kind:       strings.ToLower(payload.Kind()),
		Timestamp:  timestamp,
		Payload:    payload,
		Annotation: annotation.Clone(),
		Correlation: Correlation{
			EventID:    correlated.EventID,
			Checkpoint: correlated.Checkpoint,
			TaskID:     correlated.TaskID,
		},
	}
}

// String is a compact single-line summary: "#12 task_started cp-3 task=7".
func (r Record) String() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "#%d %s %s", r.ID, r.Kind, r.Correlation.Checkpoint)
	if r.Correlation.TaskID != nil {
		fmt.Fprintf(&builder, " task=%d", *r.Correlation.TaskID)
	}
	return builder.String()
}
