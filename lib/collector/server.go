// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/bureau-foundation/telme/lib/codec"
	"github.com/bureau-foundation/telme/lib/record"
	"github.com/bureau-foundation/telme/lib/scheduler"
	"github.com/bureau-foundation/telme/lib/sink"
)

// Config holds the dependencies of a Server.
type Config struct {
	// Sinks receive every batch, in this order. At least one is
	// required.
	Sinks []scheduler.Sink

	Logger *slog.Logger
}

// Server accepts collector streams and forwards their batches.
type Server struct {
	sinks  []scheduler.Sink
	logger *slog.Logger

	// deliverMu serializes delivery across connections.
	deliverMu sync.Mutex

	// activeConnections tracks connection handlers so Serve can wait
	// for them before returning.
	activeConnections sync.WaitGroup

	batches  atomic.Uint64
	rejected atomic.Uint64
}

// New validates config and returns a Server.
func New(config Config) (*Server, error) {
	if len(config.Sinks) == 0 {
		return nil, errors.New("collector: at least one sink is required")
	}
	for i, target := range config.Sinks {
		if target == nil {
			return nil, fmt.Errorf("collector: sink %d is nil", i)
		}
	}
	if config.Logger == nil {
		return nil, errors.New("collector: Logger is required")
	}
	return &Server{sinks: config.Sinks, logger: config.Logger}, nil
}

// Listen opens a listener for Serve. For unix sockets a stale socket
// file at address is removed first.
func Listen(network, address string) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale socket %s: %w", address, err)
		}
	}
	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s %s: %w", network, address, err)
	}
	return listener, nil
}

// Serve accepts connections on listener until ctx is cancelled, then
// closes the listener and every open connection and waits for their
// handlers to return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("collector listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// Batches returns the number of batches delivered to the sinks.
func (s *Server) Batches() uint64 { return s.batches.Load() }

// Rejected returns the number of well-formed CBOR items that could not
// be rebuilt into a batch.
func (s *Server) Rejected() uint64 { return s.rejected.Load() }

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-finished:
		}
	}()

	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		remote = addr.String()
	}
	s.logger.Debug("collector connection opened", "remote", remote)

	decoder := codec.NewDecoder(conn)
	for {
		var wire sink.WireBatch
		if err := decoder.Decode(&wire); err != nil {
			if isConnectionEnd(err) || ctx.Err() != nil {
				s.logger.Debug("collector connection closed", "remote", remote)
				return
			}
			// The stream cannot be resynchronized after a malformed
			// item.
			s.logger.Warn("dropping collector connection", "remote", remote, "error", err)
			return
		}

		batch, err := wire.Batch()
		if err != nil {
			s.rejected.Add(1)
			s.logger.Warn("rejected batch", "source", wire.Source, "sequence", wire.Sequence, "error", err)
			continue
		}
		s.deliver(wire.Source, batch)
	}
}

// isConnectionEnd reports whether a decode error is the peer going
// away (EOF, closed connection, reset) rather than a malformed stream.
func isConnectionEnd(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

func (s *Server) deliver(source string, batch record.Batch) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	for _, target := range s.sinks {
		if err := scheduler.Deliver(target, batch); err != nil {
			s.logger.Error("sink write failed",
				"sink", target.Name(),
				"source", source,
				"sequence", batch.Sequence,
				"records", batch.Len(),
				"error", err,
			)
		}
	}
	s.batches.Add(1)
}
