// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bureau-foundation/telme/lib/record"
	"github.com/bureau-foundation/telme/lib/signal"
)

// PayloadData returns the value sinks serialize for a record's
// payload: the result of StructuredData for signals implementing
// [signal.Structured], otherwise the signal itself. A panic inside
// StructuredData is returned as an error.
func PayloadData(r record.Record) (data any, err error) {
	structured, ok := r.Payload.(signal.Structured)
	if !ok {
		return r.Payload, nil
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("structured data for %s panicked: %v", r.Kind, recovered)
		}
	}()
	return structured.StructuredData()
}

// RenderJSON renders r as a JSON object whose keys are sorted at every
// nesting level, so the same record always produces the same bytes.
// With indent set the object spans multiple lines indented by two
// spaces; otherwise it is a single line. A panic from the payload's
// own marshaling is returned as an error.
func RenderJSON(r record.Record, indent bool) (rendered []byte, err error) {
	payload, err := PayloadData(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			rendered, err = nil, fmt.Errorf("rendering %s payload panicked: %v", r.Kind, recovered)
		}
	}()
	normalized, err := normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("rendering %s payload: %w", r.Kind, err)
	}

	document := map[string]any{
		"id":          r.ID,
		"kind":        r.Kind,
		"timestamp":   uint64(r.Timestamp),
		"annotation":  annotationFields(r.Annotation),
		"correlation": correlationFields(r.Correlation),
		"payload":     normalized,
	}
	if indent {
		return json.MarshalIndent(document, "", "  ")
	}
	return json.Marshal(document)
}

// RenderPlain renders r as one line of text. It cannot fail: the
// payload is formatted with %+v. Sinks use it when RenderJSON fails.
func RenderPlain(r record.Record) string {
	var builder strings.Builder
	builder.WriteString(r.String())
	fmt.Fprintf(&builder, " event=%d t=%s payload=%+v", r.Correlation.EventID, r.Timestamp, r.Payload)
	return strings.ReplaceAll(builder.String(), "\n", `\n`)
}

// normalize round-trips v through JSON into generic maps and slices so
// that struct fields are re-marshaled in sorted key order. Numbers stay
// json.Number to keep integer precision.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, err
	}
	return generic, nil
}

func annotationFields(a signal.Annotation) map[string]any {
	fields := map[string]any{
		"event_id":   a.EventID,
		"timestamp":  uint64(a.Timestamp),
		"checkpoint": uint64(a.Checkpoint),
	}
	if a.TaskID != nil {
		fields["task_id"] = *a.TaskID
	}
	return fields
}

func correlationFields(c record.Correlation) map[string]any {
	fields := map[string]any{
		"event_id":   c.EventID,
		"checkpoint": uint64(c.Checkpoint),
	}
	if c.TaskID != nil {
		fields["task_id"] = *c.TaskID
	}
	return fields
}
