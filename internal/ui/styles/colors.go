// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the toolshop terminal palette. Every color is a Lip
// Gloss AdaptiveColor so light and dark terminals both read well.
package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Purple - selections and the focused prompt
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Cyan - tool names and headings
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald - success
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose - errors and denials
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - warnings and tools that need confirmation
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// =============================================================================
// SURFACE AND TEXT COLORS
// =============================================================================

var (
	SurfaceDim    = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	Overlay       = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// StatusIndicatorSet pairs every status with an ASCII marker so output stays
// readable without color.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
}

// StatusIndicators are the markers used in CLI output.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
}

// =============================================================================
// STYLES
// =============================================================================

var (
	// Title is used for section headings.
	Title = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	// ToolName highlights a tool's declared name.
	ToolName = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	// Label is used for parameter names and table headers.
	Label = lipgloss.NewStyle().Foreground(TextSecondary)

	// Value is used for parameter values.
	Value = lipgloss.NewStyle().Foreground(TextPrimary)

	// Hint is used for keyboard hints and secondary notes.
	Hint = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	// Success, Error and Warning color status lines.
	Success = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	Error   = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	Warning = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	// Prompt is the REPL prompt.
	Prompt = lipgloss.NewStyle().Foreground(Purple).Bold(true)

	// Dialog frames the confirmation prompt.
	Dialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(1, 2)

	// ParamsBox frames the parameters inside the dialog.
	ParamsBox = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextPrimary).
		Padding(0, 1)
)
