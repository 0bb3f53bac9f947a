// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// telme-pipe reads lines from stdin and exports them through a telme
// pipeline. Each line becomes a log signal; the whole input is
// bracketed by a checkpoint and a task ("stdin") so downstream
// consumers can correlate the lines.
//
// Flush thresholds and sinks come from the config file (--config or
// TELME_CONFIG). Without one, records go to a console sink on stdout
// with the default thresholds. At end of input every buffered record
// is flushed before exit; SIGINT and SIGTERM flush and exit
// immediately.
package main
