// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package record defines the canonical form every signal is normalized
// into ([Record]) and the unit of delivery to sinks ([Batch]).
//
// Records are values. The scheduler constructs them on its worker and
// never touches them again; a batch's Records slice is shared by every
// sink the batch is delivered to, so sinks must treat it as read-only.
package record
