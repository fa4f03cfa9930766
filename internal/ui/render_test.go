// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/toolshop-ai/toolshop/internal/tools"
)

func TestToolTable(t *testing.T) {
	plainOutput(t)

	out := ToolTable([]*tools.Tool{tools.HistogramTool(), tools.ResultToFileTool(nil)}, 100)
	assert.Contains(t, out, "TOOL")
	assert.Contains(t, out, "DESCRIPTION")
	assert.Contains(t, out, tools.NameHistogram)
	assert.Contains(t, out, tools.NameResultToFile)
	assert.Contains(t, out, "Draws an ascii histogram")

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), 100, line)
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Reads a file.", firstLine("Reads a file. Then\nmore text."))
	assert.Equal(t, "One sentence only", firstLine("One sentence\n   only"))
}

func TestToolMarkdown(t *testing.T) {
	md := ToolMarkdown(tools.HistogramTool())

	assert.True(t, strings.HasPrefix(md, "# histogram\n\n"))
	assert.Contains(t, md, "## Arguments")
	assert.Contains(t, md, "- `title` (string")
	assert.Contains(t, md, "## Usage")
	assert.Contains(t, md, "histogram(title=")
}

func TestRenderMarkdown_Plain(t *testing.T) {
	plainOutput(t)

	src := "# Title\n\nbody\n"
	assert.Equal(t, src, RenderMarkdown(src, 80))
}

func TestHighlight(t *testing.T) {
	code := "package main\n\nfunc main() {}\n"

	plainOutput(t)
	assert.Equal(t, code, Highlight(code, "main.go"))

	ForceColorsEnabled(true)
	defer ForceColorsEnabled(false)
	colored := Highlight(code, "main.go")
	assert.Contains(t, colored, "\x1b[")
	assert.Contains(t, colored, "package")

	// No filename falls back to content analysis or plain text.
	assert.Contains(t, Highlight("just words", ""), "just words")
}

func TestStatusLines(t *testing.T) {
	plainOutput(t)

	assert.Equal(t, "[OK] done", SuccessLine("done"))
	assert.Equal(t, "[X] failed", ErrorLine("failed"))
	assert.Equal(t, "[!] careful", WarningLine("careful"))
	assert.Equal(t, "[i] note", InfoLine("note"))
}
