// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sink provides the standard [scheduler.Sink] implementations.
//
//   - [Console]: human-readable output. Each record renders as
//     indented JSON with keys sorted at every level, optionally
//     highlighted; a record that cannot be rendered as JSON is written
//     as a single plain-text line instead.
//   - [File]: JSON lines appended to a file, rotated by size. Rotated
//     segments are optionally compressed (zstd or lz4) and get a
//     BLAKE3 digest file next to them.
//   - [Collector]: each batch is one CBOR item on a unix or tcp
//     stream, read by the collector binary (see lib/collector).
//   - [Callback] and [Channel]: hand batches to in-process code.
//
// Every sink isolates rendering failures per record: a payload that
// cannot be serialized degrades to [RenderPlain] and the rest of the
// batch is written normally.
package sink
