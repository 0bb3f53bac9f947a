// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/telme/lib/logsignal"
	"github.com/bureau-foundation/telme/lib/signal"
)

// maxLineBytes is the longest input line accepted.
const maxLineBytes = 1 << 20

// pipeTaskID identifies the task bracketing the input. There is one
// task per process.
const pipeTaskID = 1

type pipeOptions struct {
	// LineLevel is the level of every line.
	LineLevel slog.Level

	// BridgeLevel is the minimum level ingested. Lines below it are
	// read and discarded.
	BridgeLevel slog.Level

	Checkpoint signal.CheckpointID
	TaskName   string
}

type pipeResult struct {
	lines int
	err   error
}

// pipe ingests input into target: a checkpoint_created event, the
// task_created and task_started events, one log signal per line, and
// task_completed at end of input. It returns the number of lines read.
// Event IDs and timestamps come from annotator so lifecycle events and
// lines share one sequence.
func pipe(ctx context.Context, input io.Reader, target logsignal.Ingester, annotator *logsignal.Sequence, options pipeOptions) (int, error) {
	ingestEvent := func(event interface {
		signal.Signal
		Annotate(eventID uint64, timestamp signal.Nanostamp) signal.Annotation
	}) {
		next := annotator.Annotate(ctx, slog.Record{})
		target.Ingest(event, event.Annotate(next.EventID, next.Timestamp))
	}

	ingestEvent(signal.CheckpointEvent{Action: signal.CheckpointCreated, Checkpoint: options.Checkpoint})
	task := signal.TaskEvent{TaskID: pipeTaskID, Name: options.TaskName, Checkpoint: options.Checkpoint}
	task.State = signal.TaskCreated
	ingestEvent(task)
	task.State = signal.TaskStarted
	ingestEvent(task)

	logger := slog.New(logsignal.NewHandler(target, logsignal.Options{
		Level:     options.BridgeLevel,
		Annotator: annotator,
	}))
	taskCtx := logsignal.ContextWithTask(logsignal.ContextWithCheckpoint(ctx, options.Checkpoint), pipeTaskID)

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lines := 0
	for scanner.Scan() {
		lines++
		logger.Log(taskCtx, options.LineLevel, scanner.Text(), "line", lines)
	}

	task.State = signal.TaskCompleted
	ingestEvent(task)

	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("reading input after line %d: %w", lines, err)
	}
	return lines, nil
}
