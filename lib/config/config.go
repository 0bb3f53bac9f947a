// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/telme/lib/scheduler"
	"github.com/bureau-foundation/telme/lib/sink"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSONC Format = "jsonc"
)

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("config %s: unknown extension (want .yaml, .yml, .json or .jsonc)", path)
	}
}

// Config is the configuration of one pipeline.
type Config struct {
	// Source names this process in collector streams. Defaults to
	// the host name.
	Source string `yaml:"source" json:"source"`

	// LogLevel is the minimum slog level bridged into the pipeline:
	// debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Flush FlushSection `yaml:"flush" json:"flush"`

	Sinks []SinkConfig `yaml:"sinks" json:"sinks"`
}

// FlushSection holds the flush thresholds as written in the file.
// Durations use time.ParseDuration syntax; flush_interval also accepts
// "never".
type FlushSection struct {
	MaxRecordCount *uint  `yaml:"max_record_count" json:"max_record_count"`
	CheckInterval  string `yaml:"check_interval" json:"check_interval"`
	FlushInterval  string `yaml:"flush_interval" json:"flush_interval"`
}

// Sink types.
const (
	SinkConsole   = "console"
	SinkFile      = "file"
	SinkCollector = "collector"
)

// SinkConfig describes one sink. Type selects which of the remaining
// fields apply.
type SinkConfig struct {
	Type string `yaml:"type" json:"type"`
	Name string `yaml:"name" json:"name"`

	// Console.
	Color string `yaml:"color" json:"color"`
	Width int    `yaml:"width" json:"width"`
	Plain bool   `yaml:"plain" json:"plain"`

	// File.
	Path        string `yaml:"path" json:"path"`
	MaxBytes    int64  `yaml:"max_bytes" json:"max_bytes"`
	Compression string `yaml:"compression" json:"compression"`

	// Collector.
	Network      string `yaml:"network" json:"network"`
	Address      string `yaml:"address" json:"address"`
	DialTimeout  string `yaml:"dial_timeout" json:"dial_timeout"`
	WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
}

// Default returns a configuration with the default flush thresholds
// and a single console sink.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Sinks:    []SinkConfig{{Type: SinkConsole, Color: "auto"}},
	}
}

// Load loads configuration from the TELME_CONFIG environment variable.
func Load() (*Config, error) {
	configPath := os.Getenv("TELME_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("TELME_CONFIG environment variable not set; " +
			"set it to the path of your pipeline config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the given format, expands variables, and
// validates the result. Fields absent from data keep their Default
// values, except that a sinks list replaces the default list.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Default()
	cfg.Sinks = nil

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	case FormatJSONC:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing JSONC: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}

	if cfg.Sinks == nil {
		cfg.Sinks = Default().Sinks
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FlushConfig converts the flush section, filling defaults for absent
// values.
func (c *Config) FlushConfig() (scheduler.FlushConfig, error) {
	flush := scheduler.DefaultFlushConfig()
	if c.Flush.MaxRecordCount != nil {
		flush.MaxRecordCount = *c.Flush.MaxRecordCount
	}
	if c.Flush.CheckInterval != "" {
		interval, err := time.ParseDuration(c.Flush.CheckInterval)
		if err != nil {
			return scheduler.FlushConfig{}, fmt.Errorf("flush.check_interval: %w", err)
		}
		flush.CheckInterval = interval
	}
	if c.Flush.FlushInterval != "" {
		interval, err := parseFlushInterval(c.Flush.FlushInterval)
		if err != nil {
			return scheduler.FlushConfig{}, fmt.Errorf("flush.flush_interval: %w", err)
		}
		flush.FlushInterval = interval
	}
	if err := flush.Validate(); err != nil {
		return scheduler.FlushConfig{}, err
	}
	return flush, nil
}

func parseFlushInterval(value string) (time.Duration, error) {
	if strings.EqualFold(value, "never") {
		return scheduler.Never, nil
	}
	return time.ParseDuration(value)
}

// SlogLevel parses LogLevel. An empty value is info.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.FlushConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Sinks) == 0 {
		errs = append(errs, errors.New("sinks: at least one sink is required"))
	}
	for i, sinkConfig := range c.Sinks {
		if err := sinkConfig.validate(); err != nil {
			errs = append(errs, fmt.Errorf("sinks[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func (s SinkConfig) validate() error {
	switch s.Type {
	case SinkConsole:
		if s.Width < 0 {
			return fmt.Errorf("width must not be negative, got %d", s.Width)
		}
		if _, err := sink.ParseColorMode(s.Color); err != nil {
			return err
		}
	case SinkFile:
		if s.Path == "" {
			return errors.New("file sink requires path")
		}
		if s.MaxBytes < 0 {
			return fmt.Errorf("max_bytes must not be negative, got %d", s.MaxBytes)
		}
		if _, err := sink.ParseCompression(s.Compression); err != nil {
			return err
		}
	case SinkCollector:
		if s.Network != "unix" && s.Network != "tcp" {
			return fmt.Errorf("collector network must be unix or tcp, got %q", s.Network)
		}
		if s.Address == "" {
			return errors.New("collector sink requires address")
		}
		if _, err := parseOptionalDuration(s.DialTimeout); err != nil {
			return fmt.Errorf("dial_timeout: %w", err)
		}
		if _, err := parseOptionalDuration(s.WriteTimeout); err != nil {
			return fmt.Errorf("write_timeout: %w", err)
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown sink type %q (want console, file or collector)", s.Type)
	}
	return nil
}

func parseOptionalDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths and addresses.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Source = expandVars(c.Source, vars)
	for i := range c.Sinks {
		c.Sinks[i].Path = expandVars(c.Sinks[i].Path, vars)
		c.Sinks[i].Address = expandVars(c.Sinks[i].Address, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
