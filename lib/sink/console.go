// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/telme/lib/record"
)

// ColorMode selects whether the console sink emits ANSI styling.
type ColorMode uint8

const (
	// ColorAuto enables color when the writer is a terminal that
	// supports it and the environment (NO_COLOR, CLICOLOR_FORCE) does
	// not say otherwise.
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

func (mode ColorMode) String() string {
	switch mode {
	case ColorAuto:
		return "auto"
	case ColorAlways:
		return "always"
	case ColorNever:
		return "never"
	default:
		return fmt.Sprintf("unknown(%d)", mode)
	}
}

// ParseColorMode parses "auto", "always" or "never". The empty string
// is ColorAuto.
func ParseColorMode(name string) (ColorMode, error) {
	switch name {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return 0, fmt.Errorf("unknown color mode %q (want auto, always or never)", name)
	}
}

// ConsoleOptions configures a [Console] sink.
type ConsoleOptions struct {
	// Name overrides the sink name used in logs. Defaults to "console".
	Name string

	// Plain writes every record as a single RenderPlain line instead
	// of structured JSON.
	Plain bool

	Color ColorMode

	// Width truncates every output line to this many terminal cells.
	// Zero leaves lines untouched.
	Width int
}

// Console writes human-readable records to a writer. Structured mode
// writes each record as indented, key-sorted JSON; when that fails for
// a record the plain line is written in its place.
type Console struct {
	name   string
	writer io.Writer
	plain  bool
	width  int
	color  bool

	batchStyle    lipgloss.Style
	fallbackStyle lipgloss.Style

	// mu serializes writes when the same Console is registered with
	// more than one scheduler.
	mu sync.Mutex
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer, options ConsoleOptions) *Console {
	name := options.Name
	if name == "" {
		name = "console"
	}

	profile := termenv.Ascii
	switch options.Color {
	case ColorAlways:
		profile = termenv.ANSI256
	case ColorAuto:
		profile = termenv.NewOutput(w).EnvColorProfile()
	}

	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	return &Console{
		name:   name,
		writer: w,
		plain:  options.Plain,
		width:  options.Width,
		color:  profile != termenv.Ascii,
		batchStyle: renderer.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		fallbackStyle: renderer.NewStyle().
			Foreground(lipgloss.Color("214")),
	}
}

func (c *Console) Name() string { return c.name }

// WriteBatch renders the whole batch into memory and writes it with a
// single Write call.
func (c *Console) WriteBatch(batch record.Batch) error {
	var buffer bytes.Buffer
	if c.color {
		first, last := batch.IDRange()
		header := fmt.Sprintf("batch %d (%s) records %d..%d", batch.Sequence, batch.Reason, first, last)
		c.writeLine(&buffer, c.batchStyle.Render(header))
	}
	for _, r := range batch.Records {
		c.writeRecord(&buffer, r)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.writer.Write(buffer.Bytes()); err != nil {
		return fmt.Errorf("console: writing batch %d: %w", batch.Sequence, err)
	}
	return nil
}

func (c *Console) writeRecord(buffer *bytes.Buffer, r record.Record) {
	if !c.plain {
		if rendered, err := RenderJSON(r, true); err == nil {
			c.writeBlock(buffer, c.highlight(string(rendered)))
			return
		}
	}

	line := RenderPlain(r)
	if c.color && !c.plain {
		line = c.fallbackStyle.Render(line)
	}
	c.writeLine(buffer, line)
}

func (c *Console) highlight(source string) string {
	if !c.color {
		return source
	}
	var highlighted strings.Builder
	if err := quick.Highlight(&highlighted, source, "json", "terminal256", "monokai"); err != nil {
		return source
	}
	return strings.TrimRight(highlighted.String(), "\n")
}

func (c *Console) writeBlock(buffer *bytes.Buffer, block string) {
	for _, line := range strings.Split(block, "\n") {
		c.writeLine(buffer, line)
	}
}

func (c *Console) writeLine(buffer *bytes.Buffer, line string) {
	if c.width > 0 && ansi.StringWidth(line) > c.width {
		line = ansi.Truncate(line, c.width, "…")
	}
	buffer.WriteString(line)
	buffer.WriteByte('\n')
}
