// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/telme/lib/codec"
	"github.com/bureau-foundation/telme/lib/record"
	"github.com/bureau-foundation/telme/lib/scheduler"
	"github.com/bureau-foundation/telme/lib/signal"
	"github.com/bureau-foundation/telme/lib/sink"
	"github.com/bureau-foundation/telme/lib/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type running struct {
	server  *Server
	address string
	output  *sink.Channel
	cancel  context.CancelFunc
	done    chan struct{}
}

func startServer(t *testing.T, extra ...scheduler.Sink) *running {
	t.Helper()
	output := sink.NewChannel("out", 16)
	server, err := New(Config{
		Sinks:  append([]scheduler.Sink{output}, extra...),
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	address := filepath.Join(testutil.SocketDir(t), "collector.sock")
	listener, err := Listen("unix", address)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ctx, listener); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, testutil.Timeout, "server shutdown")
	})
	return &running{server: server, address: address, output: output, cancel: cancel, done: done}
}

func taskBatch(sequence uint64, ids ...uint64) record.Batch {
	batch := record.Batch{Sequence: sequence, Reason: record.FlushInterval, FlushedAt: 99}
	for _, id := range ids {
		event := signal.TaskEvent{State: signal.TaskCompleted, TaskID: id, Checkpoint: 1}
		batch.Records = append(batch.Records, record.New(id, signal.Nanostamp(id*10), event, event.Annotate(id, 0)))
	}
	return batch
}

func TestServerForwardsBatchesFromCollectorSink(t *testing.T) {
	server := startServer(t)

	collector, err := sink.NewCollector(sink.CollectorOptions{
		Network: "unix",
		Address: server.address,
		Source:  "worker-1",
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer collector.Close()

	for sequence := uint64(0); sequence < 3; sequence++ {
		if err := collector.WriteBatch(taskBatch(sequence, sequence*2+1, sequence*2+2)); err != nil {
			t.Fatalf("WriteBatch %d: %v", sequence, err)
		}
	}

	for sequence := uint64(0); sequence < 3; sequence++ {
		batch := testutil.RequireReceive(t, server.output.Batches(), testutil.Timeout, "batch %d", sequence)
		if batch.Sequence != sequence || batch.Reason != record.FlushInterval {
			t.Errorf("batch %d header = seq %d reason %s", sequence, batch.Sequence, batch.Reason)
		}
		first, last := batch.IDRange()
		if first != sequence*2+1 || last != sequence*2+2 {
			t.Errorf("batch %d ids = %d..%d", sequence, first, last)
		}
		remote, ok := batch.Records[0].Payload.(sink.RemoteSignal)
		if !ok || remote.Source != "worker-1" || remote.Kind() != "task_completed" {
			t.Errorf("payload = %#v", batch.Records[0].Payload)
		}
	}
	if got := server.server.Batches(); got != 3 {
		t.Errorf("Batches() = %d, want 3", got)
	}
}

func TestServerRejectsUnbuildableBatchAndContinues(t *testing.T) {
	server := startServer(t)

	conn, err := net.Dial("unix", server.address)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	encoder := codec.NewEncoder(conn)
	if err := encoder.Encode(sink.WireBatch{Source: "bad", Sequence: 1, Reason: "sideways"}); err != nil {
		t.Fatal(err)
	}
	good, err := sink.EncodeBatch("good", taskBatch(2, 7))
	if err != nil {
		t.Fatal(err)
	}
	if err := encoder.Encode(good); err != nil {
		t.Fatal(err)
	}

	batch := testutil.RequireReceive(t, server.output.Batches(), testutil.Timeout, "valid batch after rejected one")
	if batch.Sequence != 2 {
		t.Errorf("received sequence %d, want 2", batch.Sequence)
	}
	if got := server.server.Rejected(); got != 1 {
		t.Errorf("Rejected() = %d, want 1", got)
	}
}

type intKeyedSignal struct{}

func (intKeyedSignal) Kind() string { return "int_keyed" }

func (intKeyedSignal) StructuredData() (any, error) { return map[int]string{1: "a"}, nil }

func TestServerDeliversBatchWithUndecodablePayload(t *testing.T) {
	server := startServer(t)

	collector, err := sink.NewCollector(sink.CollectorOptions{Network: "unix", Address: server.address, Logger: discardLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer collector.Close()

	batch := taskBatch(0, 1)
	batch.Records = append(batch.Records, record.New(2, 20, intKeyedSignal{}, signal.Annotation{}))
	batch.Records = append(batch.Records, taskBatch(0, 3).Records...)
	if err := collector.WriteBatch(batch); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	received := testutil.RequireReceive(t, server.output.Batches(), testutil.Timeout, "mixed batch")
	if received.Len() != 3 {
		t.Fatalf("received %d records, want 3", received.Len())
	}
	if remote := received.Records[1].Payload.(sink.RemoteSignal); !remote.Fallback {
		t.Errorf("record 2 = %#v, want a fallback", remote)
	}
	if got := server.server.Rejected(); got != 0 {
		t.Errorf("Rejected() = %d, want 0", got)
	}
}

func TestServerDropsMalformedConnectionOnly(t *testing.T) {
	server := startServer(t)

	garbage, err := net.Dial("unix", server.address)
	if err != nil {
		t.Fatal(err)
	}
	defer garbage.Close()
	// 0xff is a CBOR "break" with no open indefinite-length item.
	if _, err := garbage.Write([]byte{0xff, 0xff}); err != nil {
		t.Fatal(err)
	}

	collector, err := sink.NewCollector(sink.CollectorOptions{Network: "unix", Address: server.address, Logger: discardLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer collector.Close()
	if err := collector.WriteBatch(taskBatch(0, 1)); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	batch := testutil.RequireReceive(t, server.output.Batches(), testutil.Timeout, "batch from healthy connection")
	if batch.Len() != 1 {
		t.Errorf("batch = %+v", batch)
	}
}

func TestServerIsolatesFailingSinks(t *testing.T) {
	panicking := sink.NewCallback("panicking", func(record.Batch) error { panic("boom") })
	server := startServer(t, panicking)

	collector, err := sink.NewCollector(sink.CollectorOptions{Network: "unix", Address: server.address, Logger: discardLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer collector.Close()
	for sequence := uint64(0); sequence < 2; sequence++ {
		if err := collector.WriteBatch(taskBatch(sequence, sequence+1)); err != nil {
			t.Fatal(err)
		}
		testutil.RequireReceive(t, server.output.Batches(), testutil.Timeout, "batch %d", sequence)
	}
}

func TestServeReturnsOnCancelWithOpenConnections(t *testing.T) {
	server := startServer(t)
	conn, err := net.Dial("unix", server.address)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	server.cancel()
	testutil.RequireClosed(t, server.done, testutil.Timeout, "Serve should return while a client is idle")
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Logger: discardLogger()}); err == nil {
		t.Error("New accepted no sinks")
	}
	if _, err := New(Config{Sinks: []scheduler.Sink{nil}, Logger: discardLogger()}); err == nil {
		t.Error("New accepted a nil sink")
	}
	if _, err := New(Config{Sinks: []scheduler.Sink{sink.NewChannel("", 0)}}); err == nil {
		t.Error("New accepted a nil logger")
	}
}
