// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed], and [Context] wrap the timeout
// safety valve (select with a real-time fallback) so that tests of the
// scheduler and sinks never call time.After themselves. Everything
// else in tests runs on a fake clock; these helpers are the only place
// real wall-clock time is used, and only to turn a hang into a failure.
//
// [SocketDir] creates a short directory under /tmp for Unix domain
// sockets, whose paths are limited to 108 bytes.
//
// All helpers call t.Fatalf on failure.
package testutil
