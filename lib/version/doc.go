// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for telme
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// When GitCommit is not injected it is taken from the VCS stamp the Go
// toolchain embeds in the binary, if any.
//
//	go build -ldflags "-X github.com/bureau-foundation/telme/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
