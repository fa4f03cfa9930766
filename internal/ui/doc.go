// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui renders toolshop output for the terminal.
//
// It holds the bubbletea confirmation dialog used to approve tool calls,
// lipgloss tables and glamour markdown for tool listings, chroma syntax
// highlighting for file contents, and TTY and color detection. Everything
// degrades to plain text when NO_COLOR is set or stdout is not a terminal.
package ui
