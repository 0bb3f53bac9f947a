// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the pieces shared by the telme binaries: the
// diagnostic logger and usage errors that map to exit codes.
package cli
