// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logsignal bridges log/slog into a signal pipeline.
//
// [NewHandler] returns a slog.Handler that turns every enabled log
// record into a [signal.Message] and ingests it, so application logs
// flow through the same scheduler and sinks as other signals:
//
//	handler := logsignal.NewHandler(sched, logsignal.Options{
//	    Annotator: logsignal.NewSequence(clock.Real(), 0),
//	})
//	logger := slog.New(handler)
//	logger.Info("request served", "status", 200)
//
// Attributes keep their slog structure: groups become nested maps.
// Correlation comes from an [Annotator]; the default [Sequence]
// numbers events and reads checkpoint and task from the context (see
// [ContextWithCheckpoint] and [ContextWithTask]).
package logsignal
