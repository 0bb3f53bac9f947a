// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package signal defines what producers hand to the flush scheduler: a
// [Signal] (any value that can name its own kind) and the [Annotation]
// the upstream correlation layer attaches to it (event id, monotonic
// timestamp, checkpoint, optional task).
//
// The scheduler never inspects a signal beyond Kind. Sinks that need
// structured data type-assert for [Structured] and fall back to
// serializing the value itself.
//
// The package also provides the lifecycle events every pipeline emits
// for itself ([CheckpointEvent], [TaskEvent]) and a generic log line
// ([Message]).
package signal
