// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"fmt"

	"github.com/bureau-foundation/telme/lib/codec"
	"github.com/bureau-foundation/telme/lib/record"
	"github.com/bureau-foundation/telme/lib/signal"
)

// WireBatch is the CBOR item a [Collector] writes for each batch. A
// collector stream is a sequence of these items with no other framing.
type WireBatch struct {
	// Source names the sending process.
	Source    string           `cbor:"source"`
	Sequence  uint64           `cbor:"sequence"`
	Reason    string           `cbor:"reason"`
	FlushedAt signal.Nanostamp `cbor:"flushed_at"`
	Records   []WireRecord     `cbor:"records"`
}

// WireRecord is one record inside a [WireBatch].
type WireRecord struct {
	ID          uint64             `cbor:"id"`
	Kind        string             `cbor:"kind"`
	Timestamp   signal.Nanostamp   `cbor:"timestamp"`
	Annotation  signal.Annotation  `cbor:"annotation"`
	Correlation record.Correlation `cbor:"correlation"`

	// Payload is the CBOR encoding of PayloadData, or of the
	// RenderPlain string when Fallback is set.
	Payload  codec.RawMessage `cbor:"payload"`
	Fallback bool             `cbor:"fallback,omitempty"`
}

// EncodeBatch converts batch to its wire form. Payloads that cannot
// be encoded are replaced by their plain rendering, one record at a
// time.
func EncodeBatch(source string, batch record.Batch) (WireBatch, error) {
	wire := WireBatch{
		Source:    source,
		Sequence:  batch.Sequence,
		Reason:    batch.Reason.String(),
		FlushedAt: batch.FlushedAt,
		Records:   make([]WireRecord, 0, len(batch.Records)),
	}
	for _, r := range batch.Records {
		item := WireRecord{
			ID:          r.ID,
			Kind:        r.Kind,
			Timestamp:   r.Timestamp,
			Annotation:  r.Annotation,
			Correlation: r.Correlation,
		}
		payload, err := encodePayload(r)
		if err != nil {
			payload, err = codec.Marshal(RenderPlain(r))
			if err != nil {
				return WireBatch{}, fmt.Errorf("encoding fallback for record %d: %w", r.ID, err)
			}
			item.Fallback = true
		}
		item.Payload = payload
		wire.Records = append(wire.Records, item)
	}
	return wire, nil
}

func encodePayload(r record.Record) (data []byte, err error) {
	payload, err := PayloadData(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("encoding %s payload panicked: %v", r.Kind, recovered)
		}
	}()
	return codec.Marshal(payload)
}

// Batch rebuilds a record batch from the wire form. Payloads become
// [RemoteSignal] values carrying the decoded data. A payload that does
// not decode into generic data (a map with non-string keys, say) is
// replaced by its CBOR diagnostic notation and marked as a fallback;
// the rest of the batch is unaffected.
func (w WireBatch) Batch() (record.Batch, error) {
	reason, err := record.ParseFlushReason(w.Reason)
	if err != nil {
		return record.Batch{}, fmt.Errorf("batch %d from %s: %w", w.Sequence, w.Source, err)
	}
	batch := record.Batch{
		Sequence:  w.Sequence,
		Reason:    reason,
		FlushedAt: w.FlushedAt,
		Records:   make([]record.Record, 0, len(w.Records)),
	}
	for _, item := range w.Records {
		data, fallback := decodePayload(item.Payload)
		payload := RemoteSignal{
			SignalKind: item.Kind,
			Data:       data,
			Source:     w.Source,
			Fallback:   item.Fallback || fallback,
		}
		batch.Records = append(batch.Records, record.Record{
			ID:          item.ID,
			Kind:        item.Kind,
			Timestamp:   item.Timestamp,
			Payload:     payload,
			Annotation:  item.Annotation.Clone(),
			Correlation: item.Correlation,
		})
	}
	return batch, nil
}

// decodePayload decodes one record's payload. When the payload cannot
// be decoded it returns the diagnostic notation, or the raw bytes in
// hex if even that fails, and reports a fallback.
func decodePayload(raw codec.RawMessage) (any, bool) {
	var data any
	if err := codec.Unmarshal(raw, &data); err == nil {
		return data, false
	}
	if diagnostic, err := codec.Diagnose(raw); err == nil {
		return diagnostic, true
	}
	return fmt.Sprintf("%x", []byte(raw)), true
}

// RemoteSignal is a payload received from another process. Its kind
// and data are whatever the sender encoded.
type RemoteSignal struct {
	SignalKind string
	Data       any
	Source     string

	// Fallback reports that Data is the sender's plain rendering
	// because the original payload could not be encoded.
	Fallback bool
}

func (s RemoteSignal) Kind() string { return s.SignalKind }

func (s RemoteSignal) StructuredData() (any, error) { return s.Data, nil }
