// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"errors"
	"sync"

	"github.com/bureau-foundation/telme/lib/record"
)

// Callback adapts a function to the sink interface.
type Callback struct {
	name string
	fn   func(record.Batch) error
}

// NewCallback returns a sink that calls fn for every batch. fn runs on
// the scheduler's worker and must not retain or modify the batch's
// record slice.
func NewCallback(name string, fn func(record.Batch) error) *Callback {
	if name == "" {
		name = "callback"
	}
	return &Callback{name: name, fn: fn}
}

func (c *Callback) Name() string { return c.name }

func (c *Callback) WriteBatch(batch record.Batch) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(batch)
}

// ErrChannelSinkClosed is returned by WriteBatch after Close.
var ErrChannelSinkClosed = errors.New("channel sink closed")

// Channel delivers batches to a channel. WriteBatch blocks while the
// channel is full, which blocks the scheduler's worker; size the
// buffer for the expected consumer lag.
type Channel struct {
	name string

	mu     sync.RWMutex
	ch     chan record.Batch
	closed bool
	once   sync.Once
}

// NewChannel creates a channel sink with the given buffer size.
func NewChannel(name string, buffer int) *Channel {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Channel{name: name, ch: make(chan record.Batch, buffer)}
}

func (c *Channel) Name() string { return c.name }

// Batches returns the receive side. It is closed by Close.
func (c *Channel) Batches() <-chan record.Batch { return c.ch }

func (c *Channel) WriteBatch(batch record.Batch) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrChannelSinkClosed
	}
	records := make([]record.Record, len(batch.Records))
	copy(records, batch.Records)
	batch.Records = records
	c.ch <- batch
	return nil
}

// Close closes the channel. It waits for an in-flight WriteBatch to
// finish, so the consumer must keep receiving until Batches is closed.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.ch)
		c.mu.Unlock()
	})
}
