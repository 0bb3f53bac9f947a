// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telme/internal/cli"
	"github.com/bureau-foundation/telme/lib/clock"
	"github.com/bureau-foundation/telme/lib/config"
	"github.com/bureau-foundation/telme/lib/logsignal"
	"github.com/bureau-foundation/telme/lib/scheduler"
	telsignal "github.com/bureau-foundation/telme/lib/signal"
	"github.com/bureau-foundation/telme/lib/version"
)

// drainTimeout bounds the final flush at end of input.
const drainTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}

type flags struct {
	configPath string
	level      string
	checkpoint uint64
	taskName   string
	verbose    bool
}

func run() error {
	var options flags
	flagSet := pflag.NewFlagSet("telme-pipe", pflag.ContinueOnError)
	flagSet.StringVar(&options.configPath, "config", "", "pipeline config file (default: $TELME_CONFIG, else console output)")
	flagSet.StringVar(&options.level, "level", "info", "level assigned to every input line (debug, info, warn, error)")
	flagSet.Uint64Var(&options.checkpoint, "checkpoint", 1, "checkpoint the input is attributed to")
	flagSet.StringVar(&options.taskName, "task-name", "stdin", "name of the task that brackets the input")
	flagSet.BoolVarP(&options.verbose, "verbose", "v", false, "log scheduler activity at debug level")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("telme-pipe")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return cli.Usage("%w", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return cli.Usage("unexpected argument: %s", args[0])
	}

	var lineLevel slog.Level
	if err := lineLevel.UnmarshalText([]byte(options.level)); err != nil {
		return cli.Usage("--level: %w", err)
	}

	cfg, err := loadConfig(options.configPath)
	if err != nil {
		return err
	}
	flushConfig, err := cfg.FlushConfig()
	if err != nil {
		return err
	}
	bridgeLevel, err := cfg.SlogLevel()
	if err != nil {
		return err
	}

	diagnosticLevel := slog.LevelInfo
	if options.verbose {
		diagnosticLevel = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(diagnosticLevel).With("command", "telme-pipe")

	sinks, err := cfg.BuildSinks(os.Stdout, logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	realClock := clock.Real()
	sched, err := scheduler.New(scheduler.Config{Clock: realClock, Logger: logger})
	if err != nil {
		return err
	}
	for _, target := range sinks.List {
		sched.AddSink(target)
	}
	if err := sched.Setup(flushConfig); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go sched.Run(runCtx)

	logger.Info("telme-pipe running",
		"sinks", len(sinks.List),
		"max_record_count", flushConfig.MaxRecordCount,
		"flush_interval", flushConfig.FlushInterval,
	)

	checkpoint := telsignal.CheckpointID(options.checkpoint)
	annotator := logsignal.NewSequence(realClock, checkpoint)
	pipeDone := make(chan pipeResult, 1)
	go func() {
		lines, err := pipe(ctx, os.Stdin, sched, annotator, pipeOptions{
			LineLevel:   lineLevel,
			BridgeLevel: bridgeLevel,
			Checkpoint:  checkpoint,
			TaskName:    options.taskName,
		})
		pipeDone <- pipeResult{lines: lines, err: err}
	}()

	var pipeErr error
	select {
	case result := <-pipeDone:
		pipeErr = result.err
		drainCtx, cancelDrain := context.WithTimeout(ctx, drainTimeout)
		if err := sched.Drain(drainCtx); err != nil {
			logger.Warn("final flush incomplete", "error", err)
		}
		cancelDrain()
		logger.Info("end of input", "lines", result.lines)
	case <-ctx.Done():
		logger.Info("interrupted, flushing")
	}

	cancelRun()
	<-sched.Done()
	if dropped := sched.Dropped(); dropped > 0 {
		logger.Warn("signals dropped after shutdown", "dropped", dropped)
	}
	return pipeErr
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("TELME_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `telme-pipe: export stdin lines as log signals.

Every input line is ingested as a log signal attributed to one
checkpoint and one task, then batched and flushed to the configured
sinks.

Usage:
  telme-pipe [flags] < input

Examples:
  # Print build output as structured records
  make 2>&1 | telme-pipe

  # Ship warnings to a collector described in a config file
  tail -F app.log | telme-pipe --config telme.yaml --level warn

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
