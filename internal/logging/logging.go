// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across toolshop and renders the
// per-tool-call log block (header, parameters, result, footer).
package logging

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerName is the name attached to every toolshop logger.
const LoggerName = "toolshop"

// Preset selects a predefined log format.
type Preset string

const (
	// PresetMinimalVerbose logs the bare message at INFO.
	PresetMinimalVerbose Preset = "minimal_verbose"

	// PresetClassicVerbose logs "time - LEVEL - toolshop - message" at INFO.
	PresetClassicVerbose Preset = "classic_verbose"
)

// Options configures New.
type Options struct {
	Preset Preset
	Level  string // debug, info, warn, error; empty uses the preset's level
	File   string // empty logs to stderr
}

// ParsePreset validates a preset name. Empty selects minimal_verbose.
func ParsePreset(s string) (Preset, error) {
	switch Preset(strings.ToLower(strings.TrimSpace(s))) {
	case "", PresetMinimalVerbose:
		return PresetMinimalVerbose, nil
	case PresetClassicVerbose:
		return PresetClassicVerbose, nil
	default:
		return "", fmt.Errorf("unknown log preset %q, must be one of: %s, %s",
			s, PresetMinimalVerbose, PresetClassicVerbose)
	}
}

// EncoderConfig returns the encoder configuration of a preset.
func EncoderConfig(p Preset) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if p == PresetClassicVerbose {
		cfg.TimeKey = "time"
		cfg.LevelKey = "level"
		cfg.NameKey = "logger"
		cfg.ConsoleSeparator = " - "
	}
	return cfg
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	preset, err := ParsePreset(string(opts.Preset))
	if err != nil {
		return nil, err
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	sink := zapcore.Lock(os.Stderr)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sink = zapcore.Lock(f)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(EncoderConfig(preset)), sink, level)
	return zap.New(core).Named(LoggerName), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// =============================================================================
// TOOL CALL BLOCK
// =============================================================================

// Header returns the "=== name() ===" banner of a tool call.
func Header(name string) string {
	return fmt.Sprintf("=== %s() ===", name)
}

// LogHeader logs the banner that opens a tool call.
func LogHeader(l *zap.Logger, name string) {
	l.Info(Header(name))
}

// LogParams logs each parameter, shortest value first. Multi-line string
// values are printed on their own lines below the name.
func LogParams(l *zap.Logger, params map[string]interface{}) {
	type kv struct {
		key string
		val string
	}
	items := make([]kv, 0, len(params))
	for k, v := range params {
		items = append(items, kv{k, fmt.Sprint(v)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if len(items[i].val) != len(items[j].val) {
			return len(items[i].val) < len(items[j].val)
		}
		return items[i].key < items[j].key
	})

	for _, it := range items {
		if _, isString := params[it.key].(string); isString && strings.Contains(it.val, "\n") {
			l.Info(it.key + ":\n" + it.val)
		} else {
			l.Info(it.key + ": " + it.val)
		}
	}
}

// LogResult logs a tool's result.
func LogResult(l *zap.Logger, result string) {
	l.Info("\nresult:\n" + result)
}

// LogFooter logs the rule that closes a tool call.
func LogFooter(l *zap.Logger, name string) {
	l.Info(strings.Repeat("=", len(Header(name))))
}
