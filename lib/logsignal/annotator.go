// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logsignal

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/telme/lib/clock"
	"github.com/bureau-foundation/telme/lib/signal"
)

// Annotator builds the correlation metadata for a log record.
type Annotator interface {
	Annotate(ctx context.Context, record slog.Record) signal.Annotation
}

// AnnotatorFunc adapts a function to Annotator.
type AnnotatorFunc func(ctx context.Context, record slog.Record) signal.Annotation

func (f AnnotatorFunc) Annotate(ctx context.Context, record slog.Record) signal.Annotation {
	return f(ctx, record)
}

// Sequence is the default Annotator. Event IDs start at 1 and
// increase by one per annotated record. Timestamps are measured from
// the Sequence's creation on its clock.
type Sequence struct {
	clock      clock.Clock
	start      time.Time
	checkpoint signal.CheckpointID
	next       atomic.Uint64
}

// NewSequence returns a Sequence that attributes records to checkpoint
// unless the context names another one.
func NewSequence(c clock.Clock, checkpoint signal.CheckpointID) *Sequence {
	return &Sequence{clock: c, start: c.Now(), checkpoint: checkpoint}
}

func (s *Sequence) Annotate(ctx context.Context, _ slog.Record) signal.Annotation {
	annotation := signal.Annotation{
		EventID:    s.next.Add(1),
		Timestamp:  signal.StampSince(clock.Elapsed(s.clock, s.start)),
		Checkpoint: s.checkpoint,
	}
	if ctx == nil {
		return annotation
	}
	if checkpoint, ok := ctx.Value(checkpointKey{}).(signal.CheckpointID); ok {
		annotation.Checkpoint = checkpoint
	}
	if taskID, ok := ctx.Value(taskKey{}).(uint64); ok {
		annotation = annotation.WithTask(taskID)
	}
	return annotation
}

type (
	checkpointKey struct{}
	taskKey       struct{}
)

// ContextWithCheckpoint attributes records logged with ctx to
// checkpoint.
func ContextWithCheckpoint(ctx context.Context, checkpoint signal.CheckpointID) context.Context {
	return context.WithValue(ctx, checkpointKey{}, checkpoint)
}

// ContextWithTask attributes records logged with ctx to a task.
func ContextWithTask(ctx context.Context, taskID uint64) context.Context {
	return context.WithValue(ctx, taskKey{}, taskID)
}
