// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/toolshop-ai/toolshop/internal/tools"
	"github.com/toolshop-ai/toolshop/internal/ui/styles"
	"github.com/toolshop-ai/toolshop/internal/util"
)

// =============================================================================
// TOOL TABLE
// =============================================================================

// ToolTable renders one row per tool: name, flags and the first line of the
// description truncated to fit width.
func ToolTable(ts []*tools.Tool, width int) string {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	descWidth := max(width-48, 20)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.TextMuted)).
		Headers("TOOL", "CONFIRM", "RETURNS", "DESCRIPTION").
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return base.Foreground(styles.TextSecondary).Bold(true)
			case col == 0:
				return base.Foreground(styles.Cyan)
			}
			return base
		})

	for _, tool := range ts {
		t.Row(
			tool.Name,
			yesNo(tool.RequireConfirmation),
			yesNo(tool.ReturnResult),
			util.TruncateWidth(firstLine(tool.Description), descWidth),
		)
	}
	return t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// firstLine returns the first sentence-ish line of a wrapped description.
func firstLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}

// =============================================================================
// TOOL DOCUMENTATION
// =============================================================================

// ToolMarkdown renders a tool's documentation as markdown.
func ToolMarkdown(tool *tools.Tool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", tool.Name)
	b.WriteString(strings.Join(strings.Fields(tool.Description), " "))
	b.WriteString("\n")

	if len(tool.Schema.Parameters) > 0 {
		b.WriteString("\n## Arguments\n\n")
		for _, p := range tool.Schema.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "- `%s` (%s, %s): %s", p.Name, p.Type, req, p.Description)
			if p.Default != nil {
				fmt.Fprintf(&b, " Default `%v`.", p.Default)
			}
			b.WriteString("\n")
		}
	}

	var flags []string
	if tool.RequireConfirmation {
		flags = append(flags, "requires confirmation")
	}
	if !tool.ReturnResult {
		flags = append(flags, "result is not returned")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "\n_%s_\n", strings.Join(flags, ", "))
	}

	if tool.Usage != "" {
		fmt.Fprintf(&b, "\n## Usage\n\n```\n%s\n```\n", strings.TrimSpace(tool.Usage))
	}
	return b.String()
}

// RenderMarkdown renders markdown for the terminal. Without colors, or if
// rendering fails, the source is returned unchanged.
func RenderMarkdown(source string, width int) string {
	if !ColorsEnabled() {
		return source
	}
	if width <= 0 {
		width = TerminalWidth()
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		return source
	}
	out, err := r.Render(source)
	if err != nil {
		return source
	}
	return out
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// Highlight colors code for the terminal, picking the lexer from filename
// and falling back to content analysis. Without colors the code is returned
// unchanged.
func Highlight(code, filename string) string {
	if !ColorsEnabled() {
		return code
	}

	var lexer chroma.Lexer
	if filename != "" {
		lexer = lexers.Match(filepath.Base(filename))
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// =============================================================================
// STATUS LINES
// =============================================================================

// SuccessLine renders msg with the success marker.
func SuccessLine(msg string) string {
	return styles.Success.Render(styles.StatusIndicators.Success) + " " + msg
}

// ErrorLine renders msg with the error marker.
func ErrorLine(msg string) string {
	return styles.Error.Render(styles.StatusIndicators.Error) + " " + msg
}

// WarningLine renders msg with the warning marker.
func WarningLine(msg string) string {
	return styles.Warning.Render(styles.StatusIndicators.Warning) + " " + msg
}

// InfoLine renders msg with the info marker.
func InfoLine(msg string) string {
	return styles.Label.Render(styles.StatusIndicators.Info) + " " + msg
}
