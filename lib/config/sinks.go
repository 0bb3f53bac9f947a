// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/telme/lib/scheduler"
	"github.com/bureau-foundation/telme/lib/sink"
)

// Sinks are the sinks built from a configuration, in configuration
// order.
type Sinks struct {
	List    []scheduler.Sink
	closers []io.Closer
}

// Close closes every sink that holds a file or connection.
func (s *Sinks) Close() error {
	var errs []error
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// BuildSinks constructs the configured sinks. Console sinks write to
// console. If any sink fails to build, the ones already built are
// closed.
func (c *Config) BuildSinks(console io.Writer, logger *slog.Logger) (*Sinks, error) {
	source := c.Source
	if source == "" {
		if hostname, err := os.Hostname(); err == nil {
			source = hostname
		}
	}

	built := &Sinks{}
	for i, sinkConfig := range c.Sinks {
		target, closer, err := sinkConfig.build(console, source, logger)
		if err != nil {
			built.Close()
			return nil, fmt.Errorf("sinks[%d] (%s): %w", i, sinkConfig.Type, err)
		}
		built.List = append(built.List, target)
		if closer != nil {
			built.closers = append(built.closers, closer)
		}
	}
	return built, nil
}

func (s SinkConfig) build(console io.Writer, source string, logger *slog.Logger) (scheduler.Sink, io.Closer, error) {
	if err := s.validate(); err != nil {
		return nil, nil, err
	}

	switch s.Type {
	case SinkConsole:
		color, err := sink.ParseColorMode(s.Color)
		if err != nil {
			return nil, nil, err
		}
		return sink.NewConsole(console, sink.ConsoleOptions{
			Name:  s.Name,
			Plain: s.Plain,
			Color: color,
			Width: s.Width,
		}), nil, nil

	case SinkFile:
		compression, err := sink.ParseCompression(s.Compression)
		if err != nil {
			return nil, nil, err
		}
		file, err := sink.OpenFile(sink.FileOptions{
			Path:        s.Path,
			MaxBytes:    s.MaxBytes,
			Compression: compression,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return file, file, nil

	case SinkCollector:
		dialTimeout, _ := parseOptionalDuration(s.DialTimeout)
		writeTimeout, _ := parseOptionalDuration(s.WriteTimeout)
		collector, err := sink.NewCollector(sink.CollectorOptions{
			Network:      s.Network,
			Address:      s.Address,
			Source:       source,
			DialTimeout:  dialTimeout,
			WriteTimeout: writeTimeout,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return collector, collector, nil
	}
	return nil, nil, fmt.Errorf("unknown sink type %q", s.Type)
}
