// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/telme/lib/codec"
	"github.com/bureau-foundation/telme/lib/record"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// CollectorOptions configures a [Collector] sink.
type CollectorOptions struct {
	// Network is "unix" or "tcp".
	Network string
	Address string

	// Source identifies this process in every WireBatch. Defaults to
	// "telme".
	Source string

	// DialTimeout and WriteTimeout default to 5s and 10s.
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// Collector streams batches to a collector process. The connection is
// dialed on the first batch. When dialing or writing fails the batch
// is dropped, the connection is closed, and the next batch dials
// again.
type Collector struct {
	network      string
	address      string
	source       string
	dialTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewCollector validates options. It does not dial.
func NewCollector(options CollectorOptions) (*Collector, error) {
	switch options.Network {
	case "unix", "tcp":
	default:
		return nil, fmt.Errorf("collector sink: Network must be unix or tcp, got %q", options.Network)
	}
	if options.Address == "" {
		return nil, errors.New("collector sink: Address is required")
	}
	if options.Logger == nil {
		return nil, errors.New("collector sink: Logger is required")
	}
	if options.Source == "" {
		options.Source = "telme"
	}
	if options.DialTimeout <= 0 {
		options.DialTimeout = defaultDialTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaultWriteTimeout
	}
	return &Collector{
		network:      options.Network,
		address:      options.Address,
		source:       options.Source,
		dialTimeout:  options.DialTimeout,
		writeTimeout: options.WriteTimeout,
		logger:       options.Logger,
	}, nil
}

func (c *Collector) Name() string { return "collector:" + c.network + ":" + c.address }

func (c *Collector) WriteBatch(batch record.Batch) error {
	wire, err := EncodeBatch(c.source, batch)
	if err != nil {
		return fmt.Errorf("collector sink: %w", err)
	}
	data, err := codec.Marshal(wire)
	if err != nil {
		return fmt.Errorf("collector sink: encoding batch %d: %w", batch.Sequence, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := net.DialTimeout(c.network, c.address, c.dialTimeout)
		if err != nil {
			return fmt.Errorf("collector sink: dialing %s %s: %w", c.network, c.address, err)
		}
		c.logger.Info("connected to collector", "network", c.network, "address", c.address)
		c.conn = conn
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if _, err := c.conn.Write(data); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("collector sink: writing batch %d: %w", batch.Sequence, err)
	}
	return nil
}

// Close closes the connection if one is open. A later WriteBatch
// dials again.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
