// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"fmt"
	"log/slog"
	"strings"
)

// CheckpointAction distinguishes the two checkpoint lifecycle events.
type CheckpointAction uint8

const (
	// CheckpointCreated marks a new checkpoint.
	CheckpointCreated CheckpointAction = iota + 1

	// CheckpointCorrelated links an existing checkpoint (From) to a
	// newer one (Checkpoint).
	CheckpointCorrelated
)

// String returns "created" or "correlated".
func (action CheckpointAction) String() string {
	switch action {
	case CheckpointCreated:
		return "created"
	case CheckpointCorrelated:
		return "correlated"
	default:
		return fmt.Sprintf("unknown(%d)", action)
	}
}

// CheckpointEvent reports checkpoint creation and correlation.
type CheckpointEvent struct {
	Action     CheckpointAction `json:"-"`
	Checkpoint CheckpointID     `json:"checkpoint"`

	// From is the earlier checkpoint of a correlation. Zero for
	// CheckpointCreated.
	From CheckpointID `json:"from,omitempty"`
}

// Kind returns "checkpoint_created" or "checkpoint_correlated".
func (e CheckpointEvent) Kind() string {
	return "checkpoint_" + e.Action.String()
}

// Annotate builds the annotation for this event. Correlations are
// attributed to the newer checkpoint.
func (e CheckpointEvent) Annotate(eventID uint64, timestamp Nanostamp) Annotation {
	return Annotation{
		EventID:    eventID,
		Timestamp:  timestamp,
		Checkpoint: e.Checkpoint,
	}
}

// TaskState is the execution state reported by a TaskEvent.
type TaskState uint8

const (
	TaskCreated TaskState = iota + 1
	TaskStarted
	TaskCompleted
)

// String returns "created", "started", or "completed".
func (state TaskState) String() string {
	switch state {
	case TaskCreated:
		return "created"
	case TaskStarted:
		return "started"
	case TaskCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// TaskEvent reports a state transition of a queued task.
type TaskEvent struct {
	State      TaskState    `json:"-"`
	TaskID     uint64       `json:"task_id"`
	Name       string       `json:"name,omitempty"`
	Checkpoint CheckpointID `json:"checkpoint"`
}

// Kind returns "task_created", "task_started", or "task_completed".
func (e TaskEvent) Kind() string {
	return "task_" + e.State.String()
}

// Annotate builds the annotation for this event, carrying the task id
// and the checkpoint the task was enqueued at.
func (e TaskEvent) Annotate(eventID uint64, timestamp Nanostamp) Annotation {
	return Annotation{
		EventID:    eventID,
		Timestamp:  timestamp,
		Checkpoint: e.Checkpoint,
	}.WithTask(e.TaskID)
}

// Message is a log line. Its kind is "log_" followed by the lower-cased
// level name ("log_info", "log_error").
type Message struct {
	Level      slog.Level
	Text       string
	Attributes map[string]any
}

// Kind returns the level-qualified kind.
func (m Message) Kind() string {
	return "log_" + strings.ToLower(m.Level.String())
}

// StructuredData renders the message as a map with "level", "message",
// and (when present) "attributes".
func (m Message) StructuredData() (any, error) {
	data := map[string]any{
		"level":   m.Level.String(),
		"message": m.Text,
	}
	if len(m.Attributes) > 0 {
		data["attributes"] = m.Attributes
	}
	return data, nil
}
