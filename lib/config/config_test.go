// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/telme/lib/scheduler"
	"github.com/bureau-foundation/telme/lib/sink"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != SinkConsole {
		t.Errorf("expected a single console sink, got %+v", cfg.Sinks)
	}
	flush, err := cfg.FlushConfig()
	if err != nil {
		t.Fatalf("FlushConfig: %v", err)
	}
	if flush != scheduler.DefaultFlushConfig() {
		t.Errorf("expected default flush config, got %+v", flush)
	}
}

func TestLoad_RequiresTelmeConfig(t *testing.T) {
	t.Setenv("TELME_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when TELME_CONFIG not set, got nil")
	}
	expectedMsg := "TELME_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithTelmeConfig(t *testing.T) {
	configPath := writeConfig(t, "telme.yaml", `
source: worker-7
log_level: warn
flush:
  max_record_count: 250
  check_interval: 500ms
  flush_interval: never
sinks:
  - type: console
    color: never
    width: 120
  - type: file
    path: /var/log/telme/signals.jsonl
    max_bytes: 67108864
    compression: zstd
  - type: collector
    network: unix
    address: /run/telme/collector.sock
    dial_timeout: 2s
`)
	t.Setenv("TELME_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Source != "worker-7" {
		t.Errorf("expected source=worker-7, got %s", cfg.Source)
	}
	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, %v; want WARN", level, err)
	}

	flush, err := cfg.FlushConfig()
	if err != nil {
		t.Fatalf("FlushConfig: %v", err)
	}
	want := scheduler.FlushConfig{MaxRecordCount: 250, CheckInterval: 500 * time.Millisecond, FlushInterval: scheduler.Never}
	if flush != want {
		t.Errorf("FlushConfig() = %+v, want %+v", flush, want)
	}

	if len(cfg.Sinks) != 3 {
		t.Fatalf("expected 3 sinks, got %d", len(cfg.Sinks))
	}
	if cfg.Sinks[0].Width != 120 || cfg.Sinks[0].Color != "never" {
		t.Errorf("console sink = %+v", cfg.Sinks[0])
	}
	if cfg.Sinks[1].MaxBytes != 64<<20 || cfg.Sinks[1].Compression != "zstd" {
		t.Errorf("file sink = %+v", cfg.Sinks[1])
	}
	if cfg.Sinks[2].Address != "/run/telme/collector.sock" || cfg.Sinks[2].DialTimeout != "2s" {
		t.Errorf("collector sink = %+v", cfg.Sinks[2])
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	configPath := writeConfig(t, "telme.jsonc", `{
  // Flush every 10 records or every second.
  "flush": {
    "max_record_count": 10,
    "flush_interval": "1s",
  },
  "sinks": [
    {"type": "console", "plain": true}, /* no color */
  ],
}`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	flush, err := cfg.FlushConfig()
	if err != nil {
		t.Fatalf("FlushConfig: %v", err)
	}
	if flush.MaxRecordCount != 10 || flush.FlushInterval != time.Second {
		t.Errorf("FlushConfig() = %+v", flush)
	}
	if flush.CheckInterval != scheduler.DefaultCheckInterval {
		t.Errorf("absent check_interval should default, got %v", flush.CheckInterval)
	}
	if len(cfg.Sinks) != 1 || !cfg.Sinks[0].Plain {
		t.Errorf("sinks = %+v", cfg.Sinks)
	}
}

func TestParse_ZeroMaxRecordCountDisablesCountTrigger(t *testing.T) {
	cfg, err := Parse([]byte("flush:\n  max_record_count: 0\n"), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	flush, err := cfg.FlushConfig()
	if err != nil {
		t.Fatal(err)
	}
	if flush.MaxRecordCount != 0 {
		t.Errorf("explicit zero must be kept, got %d", flush.MaxRecordCount)
	}
}

func TestParse_OmittedSinksUseDefault(t *testing.T) {
	cfg, err := Parse([]byte("log_level: debug\n"), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != SinkConsole {
		t.Errorf("sinks = %+v, want default console", cfg.Sinks)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad check interval", "flush:\n  check_interval: soon\n", "flush.check_interval"},
		{"zero check interval", "flush:\n  check_interval: 0s\n", "CheckInterval must be positive"},
		{"bad flush interval", "flush:\n  flush_interval: -3s\n", "FlushInterval"},
		{"unknown sink", "sinks:\n  - type: kafka\n", `sinks[0]: unknown sink type "kafka"`},
		{"missing type", "sinks:\n  - path: /x\n", "sinks[0]: type is required"},
		{"file without path", "sinks:\n  - type: console\n  - type: file\n", "sinks[1]: file sink requires path"},
		{"bad compression", "sinks:\n  - type: file\n    path: /x\n    compression: gzip\n", `unknown compression "gzip"`},
		{"bad color", "sinks:\n  - type: console\n    color: pink\n", `unknown color mode "pink"`},
		{"collector network", "sinks:\n  - type: collector\n    network: udp\n    address: x\n", "must be unix or tcp"},
		{"collector timeout", "sinks:\n  - type: collector\n    network: tcp\n    address: x:1\n    write_timeout: forever\n", "write_timeout"},
		{"log level", "log_level: loud\n", "log_level"},
		{"yaml syntax", "flush: [\n", "parsing YAML"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.content), FormatYAML)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not contain %q", err, test.wantErr)
			}
		})
	}
}

func TestValidate_RequiresSink(t *testing.T) {
	err := (&Config{}).Validate()
	if err == nil || !strings.Contains(err.Error(), "at least one sink") {
		t.Errorf("Validate() = %v, want missing sink error", err)
	}
}

func TestParse_ReportsAllErrors(t *testing.T) {
	_, err := Parse([]byte("sinks:\n  - type: file\n  - type: collector\n"), FormatYAML)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"sinks[0]", "sinks[1]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestFormatForPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.yaml":  FormatYAML,
		"a.YML":   FormatYAML,
		"a.json":  FormatJSONC,
		"a.jsonc": FormatJSONC,
	} {
		got, err := FormatForPath(path)
		if err != nil || got != want {
			t.Errorf("FormatForPath(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatForPath("telme.toml"); err == nil {
		t.Error("expected error for .toml")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("TELME_TEST_DIR", "/srv/telme")
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/signals", map[string]string{"HOME": "/home/user"}, "/home/user/signals"},
		{"${TELME_TEST_DIR}/out.jsonl", map[string]string{}, "/srv/telme/out.jsonl"},
		{"${MISSING:-/tmp}/out.jsonl", map[string]string{}, "/tmp/out.jsonl"},
		{"${MISSING}/out.jsonl", map[string]string{}, "/out.jsonl"},
		{"/plain/path", map[string]string{}, "/plain/path"},
	}
	for _, test := range tests {
		result := expandVars(test.input, test.vars)
		if result != test.expected {
			t.Errorf("expandVars(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestParse_ExpandsSinkPaths(t *testing.T) {
	t.Setenv("TELME_TEST_DIR", "/srv/telme")
	cfg, err := Parse([]byte(`
sinks:
  - type: file
    path: ${TELME_TEST_DIR}/signals.jsonl
  - type: collector
    network: unix
    address: ${TELME_SOCKET_DIR:-/run/telme}/collector.sock
`), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Sinks[0].Path != "/srv/telme/signals.jsonl" {
		t.Errorf("path = %q", cfg.Sinks[0].Path)
	}
	if cfg.Sinks[1].Address != "/run/telme/collector.sock" {
		t.Errorf("address = %q", cfg.Sinks[1].Address)
	}
}

func TestBuildSinks(t *testing.T) {
	directory := t.TempDir()
	cfg, err := Parse([]byte(`
source: builder
sinks:
  - type: console
    name: stdout
    color: never
  - type: file
    path: `+filepath.Join(directory, "signals.jsonl")+`
    compression: lz4
  - type: collector
    network: tcp
    address: 127.0.0.1:1
`), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var console bytes.Buffer
	built, err := cfg.BuildSinks(&console, discardLogger())
	if err != nil {
		t.Fatalf("BuildSinks: %v", err)
	}
	defer built.Close()

	if len(built.List) != 3 {
		t.Fatalf("built %d sinks, want 3", len(built.List))
	}
	if _, ok := built.List[0].(*sink.Console); !ok || built.List[0].Name() != "stdout" {
		t.Errorf("sink 0 = %T %q", built.List[0], built.List[0].Name())
	}
	if _, ok := built.List[1].(*sink.File); !ok {
		t.Errorf("sink 1 = %T", built.List[1])
	}
	if got := built.List[2].Name(); got != "collector:tcp:127.0.0.1:1" {
		t.Errorf("sink 2 name = %q", got)
	}

	if err := built.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	// Closing released the file lock.
	reopened, err := sink.OpenFile(sink.FileOptions{Path: filepath.Join(directory, "signals.jsonl"), Logger: discardLogger()})
	if err != nil {
		t.Fatalf("reopening after Close: %v", err)
	}
	reopened.Close()
}

func TestBuildSinks_ClosesOnFailure(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "signals.jsonl")
	cfg := &Config{Sinks: []SinkConfig{
		{Type: SinkFile, Path: path},
		{Type: SinkFile, Path: filepath.Join(directory, "missing", "dir", "signals.jsonl")},
	}}

	if _, err := cfg.BuildSinks(io.Discard, discardLogger()); err == nil || !strings.Contains(err.Error(), "sinks[1]") {
		t.Fatalf("BuildSinks error = %v, want failure naming sinks[1]", err)
	}
	reopened, err := sink.OpenFile(sink.FileOptions{Path: path, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("first file sink was left open: %v", err)
	}
	reopened.Close()
}
