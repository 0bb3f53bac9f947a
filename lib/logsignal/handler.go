// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logsignal

import (
	"context"
	"log/slog"
	"slices"

	"github.com/bureau-foundation/telme/lib/clock"
	"github.com/bureau-foundation/telme/lib/signal"
)

// Ingester accepts signals. *scheduler.Scheduler satisfies it.
type Ingester interface {
	Ingest(payload signal.Signal, annotation signal.Annotation)
}

// Options configures a Handler.
type Options struct {
	// Level is the minimum level ingested. Defaults to slog.LevelInfo.
	Level slog.Leveler

	// Annotator defaults to NewSequence(clock.Real(), 0).
	Annotator Annotator
}

// Handler is a slog.Handler that ingests log records as
// signal.Message values.
type Handler struct {
	target    Ingester
	level     slog.Leveler
	annotator Annotator

	// attrs are attributes added with WithAttrs, each under the
	// groups open at the time.
	attrs  []groupedAttr
	groups []string
}

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// NewHandler returns a Handler ingesting into target.
func NewHandler(target Ingester, options Options) *Handler {
	level := options.Level
	if level == nil {
		level = slog.LevelInfo
	}
	annotator := options.Annotator
	if annotator == nil {
		annotator = NewSequence(clock.Real(), 0)
	}
	return &Handler{target: target, level: level, annotator: annotator}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle ingests the record. It never returns an error: delivery
// failures belong to the sinks.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	attributes := make(map[string]any)
	for _, grouped := range h.attrs {
		addAttr(attributes, grouped.groups, grouped.attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		addAttr(attributes, h.groups, attr)
		return true
	})
	if len(attributes) == 0 {
		attributes = nil
	}

	message := signal.Message{
		Level:      record.Level,
		Text:       record.Message,
		Attributes: attributes,
	}
	h.target.Ingest(message, h.annotator.Annotate(ctx, record))
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = slices.Clip(h.attrs)
	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, groupedAttr{groups: h.groups, attr: attr})
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

// addAttr stores attr in root under the nested maps named by groups.
// Empty keys and empty groups are dropped, as slog's built-in handlers
// do.
func addAttr(root map[string]any, groups []string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		if len(members) == 0 {
			return
		}
		nested := groups
		if attr.Key != "" {
			nested = append(slices.Clip(groups), attr.Key)
		}
		for _, member := range members {
			addAttr(root, nested, member)
		}
		return
	}
	if attr.Key == "" {
		return
	}

	target := root
	for _, group := range groups {
		child, ok := target[group].(map[string]any)
		if !ok {
			child = make(map[string]any)
			target[group] = child
		}
		target = child
	}
	target[attr.Key] = attrValue(attr.Value)
}

func attrValue(value slog.Value) any {
	switch value.Kind() {
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return err.Error()
		}
		return value.Any()
	default:
		return value.Any()
	}
}
