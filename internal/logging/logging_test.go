// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParsePreset(t *testing.T) {
	p, err := ParsePreset("")
	require.NoError(t, err)
	assert.Equal(t, PresetMinimalVerbose, p)

	p, err = ParsePreset("Classic_Verbose")
	require.NoError(t, err)
	assert.Equal(t, PresetClassicVerbose, p)

	_, err = ParsePreset("loud")
	assert.Error(t, err)
}

func encode(t *testing.T, p Preset, msg string) string {
	t.Helper()
	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(EncoderConfig(p)), zapcore.AddSync(&buf), zapcore.InfoLevel)
	zap.New(core).Named(LoggerName).Info(msg)
	return buf.String()
}

func TestEncoderConfig_Minimal(t *testing.T) {
	assert.Equal(t, "hello\n", encode(t, PresetMinimalVerbose, "hello"))
}

func TestEncoderConfig_Classic(t *testing.T) {
	out := encode(t, PresetClassicVerbose, "hello")
	assert.True(t, strings.HasSuffix(out, " - INFO - toolshop - hello\n"), out)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolshop.log")
	l, err := New(Options{Preset: PresetMinimalVerbose, File: path})
	require.NoError(t, err)

	l.Info("to file")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "to file\n", string(data))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestToolCallBlock(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	LogHeader(l, "replace_lines")
	LogParams(l, map[string]interface{}{
		"path":       "/a.txt",
		"text":       "one\ntwo\n",
		"start_line": 1,
	})
	LogResult(l, "done")
	LogFooter(l, "replace_lines")

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}

	assert.Equal(t, []string{
		"=== replace_lines() ===",
		"start_line: 1",
		"path: /a.txt",
		"text:\none\ntwo\n",
		"\nresult:\ndone",
		strings.Repeat("=", len("=== replace_lines() ===")),
	}, msgs)
}
