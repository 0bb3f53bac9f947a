// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// telme-collector receives batches from telme Collector sinks over a
// unix or tcp socket and writes them to local sinks: by default a
// console sink on stdout, or the sinks of a pipeline config file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telme/internal/cli"
	"github.com/bureau-foundation/telme/lib/collector"
	"github.com/bureau-foundation/telme/lib/config"
	"github.com/bureau-foundation/telme/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}

type options struct {
	network    string
	address    string
	configPath string
	verbose    bool
	help       bool
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	var parsed options
	flagSet := pflag.NewFlagSet("telme-collector", pflag.ContinueOnError)
	flagSet.StringVar(&parsed.network, "network", "unix", "listen network: unix or tcp")
	flagSet.StringVar(&parsed.address, "address", "", "socket path (unix) or host:port (tcp) to listen on (required)")
	flagSet.StringVar(&parsed.configPath, "config", "", "pipeline config whose sinks receive the batches (default: console on stdout)")
	flagSet.BoolVarP(&parsed.verbose, "verbose", "v", false, "log connections at debug level")
	flagSet.BoolVarP(&parsed.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			parsed.help = true
			return &parsed, flagSet, nil
		}
		return nil, flagSet, cli.Usage("%w", err)
	}
	if parsed.help {
		return &parsed, flagSet, nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, flagSet, cli.Usage("unexpected argument: %s", rest[0])
	}
	if parsed.network != "unix" && parsed.network != "tcp" {
		return nil, flagSet, cli.Usage("--network must be unix or tcp, got %q", parsed.network)
	}
	if parsed.address == "" {
		return nil, flagSet, cli.Usage("--address is required")
	}
	return &parsed, flagSet, nil
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "--version" {
		version.Print("telme-collector")
		return nil
	}

	parsed, flagSet, err := parseFlags(args)
	if err != nil {
		return err
	}
	if parsed.help {
		printHelp(flagSet)
		return nil
	}

	cfg := config.Default()
	if parsed.configPath != "" {
		cfg, err = config.LoadFile(parsed.configPath)
		if err != nil {
			return err
		}
	}

	level := slog.LevelInfo
	if parsed.verbose {
		level = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(level).With("command", "telme-collector")

	sinks, err := cfg.BuildSinks(os.Stdout, logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	server, err := collector.New(collector.Config{Sinks: sinks.List, Logger: logger})
	if err != nil {
		return err
	}
	listener, err := collector.Listen(parsed.network, parsed.address)
	if err != nil {
		return err
	}
	if parsed.network == "unix" {
		defer os.Remove(parsed.address)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, listener); err != nil {
		return err
	}
	logger.Info("collector stopped",
		"batches", server.Batches(),
		"rejected", server.Rejected(),
	)
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `telme-collector: receive signal batches from telme Collector sinks.

Usage:
  telme-collector --address <socket-or-host:port> [flags]

Examples:
  # Print batches arriving on a unix socket
  telme-collector --address /run/telme/collector.sock

  # Accept tcp streams and archive them to the sinks of a config file
  telme-collector --network tcp --address :7443 --config archive.yaml

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
