// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// UsageError reports invalid flags or arguments. Binaries exit with
// status 2 for it, as flag parsing errors conventionally do.
type UsageError struct {
	Err error
}

// Usage creates a UsageError.
func Usage(format string, args ...any) *UsageError {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode returns 2.
func (e *UsageError) ExitCode() int { return 2 }

// ExitCode returns the process exit status for err: 0 for nil, the
// error's own code when it has an ExitCode method, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if coder, ok := err.(interface{ ExitCode() int }); ok {
		return coder.ExitCode()
	}
	return 1
}
