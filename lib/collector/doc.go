// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector receives batches streamed by sink.Collector and
// forwards them to local sinks.
//
// Each connection carries a sequence of CBOR-encoded sink.WireBatch
// items. The server rebuilds every item into a record.Batch and
// delivers it to its sinks in order. Batches from different
// connections are delivered one at a time, so sinks never see
// concurrent WriteBatch calls.
package collector
