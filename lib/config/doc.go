// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the configuration of a telme pipeline: flush
// thresholds and the list of sinks.
//
// Configuration is loaded from a single file specified by:
//   - TELME_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The file format is
// chosen by extension: .yaml and .yml are YAML; .json and .jsonc are
// JSON with comments and trailing commas allowed.
//
// String values in sink paths and addresses may use ${VAR} and
// ${VAR:-default}; ${HOME} is always available.
package config
