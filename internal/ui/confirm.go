// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/tools"
	"github.com/toolshop-ai/toolshop/internal/ui/styles"
	"github.com/toolshop-ai/toolshop/internal/util"
)

// ConfirmAnswer is the word that approves a tool call.
const ConfirmAnswer = "yes"

// maxParamValueRunes bounds each parameter value shown in the dialog.
const maxParamValueRunes = 100

// =============================================================================
// CONFIRMATION MODEL
// =============================================================================

// ConfirmModel is a bubbletea model asking the user to approve one tool call
// by typing "yes".
type ConfirmModel struct {
	tool   *tools.Tool
	params map[string]interface{}
	input  textinput.Model
	width  int

	done     bool
	approved bool
}

// NewConfirmModel returns a focused prompt for tool called with params.
func NewConfirmModel(tool *tools.Tool, params map[string]interface{}) ConfirmModel {
	ti := textinput.New()
	ti.Placeholder = ConfirmAnswer
	ti.CharLimit = 16
	ti.Width = 16
	ti.Prompt = "> "
	ti.Focus()

	return ConfirmModel{tool: tool, params: params, input: ti}
}

// Approved reports whether the user typed the confirmation answer.
func (m ConfirmModel) Approved() bool {
	return m.approved
}

// Done reports whether the prompt has been answered or abandoned.
func (m ConfirmModel) Done() bool {
	return m.done
}

// Init starts the cursor blinking.
func (m ConfirmModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key events. Enter submits, Esc and Ctrl+C deny.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			m.approved = strings.EqualFold(strings.TrimSpace(m.input.Value()), ConfirmAnswer)
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.done = true
			m.approved = false
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the dialog.
func (m ConfirmModel) View() string {
	if m.done {
		return ""
	}

	var content strings.Builder
	content.WriteString(styles.Warning.Render("Confirmation required"))
	content.WriteString("\n\n")
	content.WriteString(styles.ToolName.Render(m.tool.Name))
	content.WriteString(" wants to run")
	if len(m.params) > 0 {
		content.WriteString(" with:\n\n")
		content.WriteString(styles.ParamsBox.Render(FormatParams(m.tool, m.params)))
	}
	content.WriteString("\n\n")
	content.WriteString(fmt.Sprintf("Type '%s' to allow: ", ConfirmAnswer))
	content.WriteString(m.input.View())
	content.WriteString("\n\n")
	content.WriteString(styles.Hint.Render("Enter=Submit  Esc=Deny"))

	box := styles.Dialog
	if m.width > 0 {
		box = box.MaxWidth(m.width)
	}
	return box.Render(content.String()) + "\n"
}

// FormatParams lists parameters as "name: value" lines, schema order first
// and any extra parameters after in name order.
func FormatParams(tool *tools.Tool, params map[string]interface{}) string {
	var lines []string
	seen := make(map[string]bool, len(params))

	add := func(name string, val interface{}) {
		seen[name] = true
		lines = append(lines, styles.Label.Render(name+": ")+
			styles.Value.Render(util.TruncateRunes(formatParamValue(val), maxParamValueRunes)))
	}

	if tool != nil {
		for _, p := range tool.Schema.Parameters {
			if val, ok := params[p.Name]; ok {
				add(p.Name, val)
			}
		}
	}

	var rest []string
	for name := range params {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		add(name, params[name])
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// formatParamValue renders one parameter value on a single line.
func formatParamValue(val interface{}) string {
	switch v := val.(type) {
	case string:
		return strings.ReplaceAll(v, "\n", "\\n")
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int:
		return util.IntToString(v)
	case float64:
		return util.FloatToString(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// =============================================================================
// PERMISSION CALLBACKS
// =============================================================================

// Confirm runs the dialog on in/out and returns whether the call was
// approved.
func Confirm(tool *tools.Tool, params map[string]interface{}, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(NewConfirmModel(tool, params), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	m, ok := final.(ConfirmModel)
	return ok && m.Approved(), nil
}

// PromptCallback returns a permission callback for the CLI. With autoApprove
// every call is allowed; otherwise the dialog is shown on stderr when stdin
// is a terminal, and the call is denied when it is not.
func PromptCallback(autoApprove bool, logger *zap.Logger) tools.PermissionCallback {
	if autoApprove {
		return tools.AllowAllCallback()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return func(tool *tools.Tool, params map[string]interface{}) bool {
		if !IsTTY() {
			logger.Warn("confirmation required but stdin is not a terminal; denying",
				zap.String("tool", tool.Name))
			return false
		}
		approved, err := Confirm(tool, params, os.Stdin, os.Stderr)
		if err != nil {
			logger.Error("confirmation prompt failed", zap.Error(err))
			return false
		}
		return approved
	}
}
