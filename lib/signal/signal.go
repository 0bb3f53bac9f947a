// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"fmt"
	"time"
)

// Signal is one discrete observability event. Kind returns its
// categorical name; the scheduler lower-cases it when building a
// record, so implementations may return any case.
type Signal interface {
	Kind() string
}

// Structured is implemented by signals that control their own
// structured rendering. Sinks call StructuredData and serialize the
// result instead of the signal value. An error makes the sink fall
// back to a plain rendering for that record.
type Structured interface {
	StructuredData() (any, error)
}

// Nanostamp is a monotonic reading in nanoseconds. Values are only
// comparable when they come from the same source.
type Nanostamp uint64

// StampSince converts an elapsed duration to a Nanostamp. Negative
// durations clamp to zero.
func StampSince(elapsed time.Duration) Nanostamp {
	if elapsed < 0 {
		return 0
	}
	return Nanostamp(elapsed)
}

// Duration returns the stamp as a time.Duration.
func (n Nanostamp) Duration() time.Duration { return time.Duration(n) }

// String renders the stamp as a duration ("1.5s").
func (n Nanostamp) String() string { return n.Duration().String() }

// CheckpointID identifies a point in program execution. Checkpoints
// are assigned by the correlation layer; the pipeline only copies
// them.
type CheckpointID uint64

// String returns "cp-<id>".
func (id CheckpointID) String() string { return fmt.Sprintf("cp-%d", id) }

// Annotation is the correlation metadata attached to a signal before
// it reaches the scheduler.
type Annotation struct {
	// EventID is the correlation layer's identifier for this event.
	EventID uint64 `json:"event_id"`

	// Timestamp is the producer-side monotonic capture time.
	Timestamp Nanostamp `json:"timestamp"`

	// Checkpoint is the execution point the event is attached to.
	Checkpoint CheckpointID `json:"checkpoint"`

	// TaskID is set when the event was produced inside a tracked
	// task.
	TaskID *uint64 `json:"task_id,omitempty"`
}

// WithTask returns a copy of the annotation carrying taskID.
func (a Annotation) WithTask(taskID uint64) Annotation {
	a.TaskID = &taskID
	return a
}

// Clone returns a copy that shares no memory with a.
func (a Annotation) Clone() Annotation {
	if a.TaskID != nil {
		taskID := *a.TaskID
		a.TaskID = &taskID
	}
	return a
}
