// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by the
// collector sink and the collector binary.
//
// JSON is used for everything a human reads (console and file sinks).
// CBOR is used on the wire between a process exporting batches and the
// collector that receives them. Both ends must agree on encoding
// options, so the modes live here and nowhere else.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same batch always produces identical bytes.
//
// Batches travel as a CBOR sequence: each batch is one self-delimiting
// data item written with an [Encoder] and read back with a [Decoder].
//
// # Struct Tag Rules
//
// Wire types use `json` tags. fxamacker/cbor v2 reads `json` tags when
// `cbor` tags are absent, so one tag names the field for both the
// console rendering and the wire. Never put both tags on one field.
package codec
