// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/bureau-foundation/telme/lib/record"
	"github.com/bureau-foundation/telme/lib/scheduler"
	"github.com/bureau-foundation/telme/lib/signal"
	"github.com/bureau-foundation/telme/lib/testutil"
)

var (
	_ scheduler.Sink = (*Console)(nil)
	_ scheduler.Sink = (*File)(nil)
	_ scheduler.Sink = (*Collector)(nil)
	_ scheduler.Sink = (*Callback)(nil)
	_ scheduler.Sink = (*Channel)(nil)
)

// brokenSignal cannot produce structured data.
type brokenSignal struct {
	Reason string
}

func (brokenSignal) Kind() string { return "Broken" }

func (s brokenSignal) StructuredData() (any, error) {
	return nil, errors.New(s.Reason)
}

// panickingSignal panics while producing structured data.
type panickingSignal struct{}

func (panickingSignal) Kind() string { return "panicking" }

func (panickingSignal) StructuredData() (any, error) { panic("no data") }

// marshalPanicSignal panics inside its own MarshalJSON.
type marshalPanicSignal struct{}

func (marshalPanicSignal) Kind() string { return "marshal_panic" }

func (marshalPanicSignal) MarshalJSON() ([]byte, error) { panic("boom") }

// intKeyedSignal has structured data with non-string map keys. JSON
// renders it; generic CBOR decoding on the collector side cannot.
type intKeyedSignal struct{}

func (intKeyedSignal) Kind() string { return "int_keyed" }

func (intKeyedSignal) StructuredData() (any, error) { return map[int]string{1: "a"}, nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func checkpointRecord(id uint64) record.Record {
	event := signal.CheckpointEvent{Action: signal.CheckpointCreated, Checkpoint: 3}
	return record.New(id, signal.Nanostamp(1500), event, event.Annotate(7, 100))
}

func taskRecord(id uint64) record.Record {
	event := signal.TaskEvent{State: signal.TaskStarted, TaskID: 9, Name: "index", Checkpoint: 3}
	return record.New(id, signal.Nanostamp(2500), event, event.Annotate(8, 200))
}

func brokenRecord(id uint64) record.Record {
	return record.New(id, 0, brokenSignal{Reason: "unrenderable"}, signal.Annotation{})
}

func marshalPanicRecord(id uint64) record.Record {
	return record.New(id, 0, marshalPanicSignal{}, signal.Annotation{})
}

func sampleBatch(records ...record.Record) record.Batch {
	return record.Batch{
		Sequence:  4,
		Reason:    record.FlushCount,
		FlushedAt: signal.Nanostamp(3000),
		Records:   records,
	}
}

func TestRenderJSONSortsKeys(t *testing.T) {
	rendered, err := RenderJSON(taskRecord(2), false)
	if err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	want := `{"annotation":{"checkpoint":3,"event_id":8,"task_id":9,"timestamp":200},` +
		`"correlation":{"checkpoint":3,"event_id":8,"task_id":9},"id":2,"kind":"task_started",` +
		`"payload":{"checkpoint":3,"name":"index","task_id":9},"timestamp":2500}`
	if string(rendered) != want {
		t.Errorf("RenderJSON:\n got %s\nwant %s", rendered, want)
	}
}

func TestRenderJSONIsDeterministic(t *testing.T) {
	message := signal.Message{
		Level: slog.LevelWarn,
		Text:  "disk nearly full",
		Attributes: map[string]any{
			"zone": "b", "mount": "/var", "percent": 93, "alpha": true,
		},
	}
	r := record.New(1, 10, message, signal.Annotation{EventID: 1})
	first, err := RenderJSON(r, true)
	if err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	for range 20 {
		again, err := RenderJSON(r, true)
		if err != nil {
			t.Fatalf("RenderJSON: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("rendering changed between calls:\n%s\n%s", first, again)
		}
	}
}

func TestRenderJSONFailures(t *testing.T) {
	if _, err := RenderJSON(brokenRecord(1), false); err == nil {
		t.Error("expected error for a payload whose StructuredData fails")
	}
	r := record.New(1, 0, panickingSignal{}, signal.Annotation{})
	if _, err := RenderJSON(r, false); err == nil {
		t.Error("expected error for a payload whose StructuredData panics")
	}
}

func TestRenderJSONRecoversMarshalPanic(t *testing.T) {
	if _, err := RenderJSON(marshalPanicRecord(1), true); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("RenderJSON err = %v, want recovered panic", err)
	}
}

func TestRenderPlain(t *testing.T) {
	got := RenderPlain(taskRecord(5))
	want := "#5 task_started cp-3 task=9 event=8 t=2.5µs payload={State:started TaskID:9 Name:index Checkpoint:cp-3}"
	if got != want {
		t.Errorf("RenderPlain:\n got %q\nwant %q", got, want)
	}

	multiline := record.New(6, 0, brokenSignal{Reason: "a\nb"}, signal.Annotation{})
	if plain := RenderPlain(multiline); plain != "#6 broken cp-0 event=0 t=0s payload={Reason:a\\nb}" {
		t.Errorf("RenderPlain did not escape newlines: %q", plain)
	}
}

func TestCallbackSink(t *testing.T) {
	var received []record.Batch
	callback := NewCallback("", func(batch record.Batch) error {
		received = append(received, batch)
		return nil
	})
	if callback.Name() != "callback" {
		t.Errorf("Name() = %q, want callback", callback.Name())
	}
	if err := callback.WriteBatch(sampleBatch(checkpointRecord(1))); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if len(received) != 1 || received[0].Sequence != 4 {
		t.Errorf("received = %+v", received)
	}

	failure := errors.New("rejected")
	failing := NewCallback("audit", func(record.Batch) error { return failure })
	if err := failing.WriteBatch(sampleBatch()); !errors.Is(err, failure) {
		t.Errorf("WriteBatch error = %v, want %v", err, failure)
	}

	if err := NewCallback("nil", nil).WriteBatch(sampleBatch()); err != nil {
		t.Errorf("nil callback: %v", err)
	}
}

func TestChannelSink(t *testing.T) {
	channel := NewChannel("tap", 1)
	records := []record.Record{checkpointRecord(1), taskRecord(2)}
	if err := channel.WriteBatch(sampleBatch(records...)); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	records[0] = brokenRecord(99)

	batch := testutil.RequireReceive(t, channel.Batches(), testutil.Timeout, "waiting for batch")
	if batch.Len() != 2 || batch.Records[0].ID != 1 {
		t.Errorf("received batch %+v; records slice must be copied", batch.Records)
	}

	channel.Close()
	channel.Close()
	if err := channel.WriteBatch(sampleBatch()); !errors.Is(err, ErrChannelSinkClosed) {
		t.Errorf("WriteBatch after Close = %v, want ErrChannelSinkClosed", err)
	}
	if _, open := <-channel.Batches(); open {
		t.Error("Batches() still open after Close")
	}
}
