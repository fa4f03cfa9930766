// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the toolshop command line.
//
// # Commands
//
//	toolshop tools [--format table|json|yaml]   List registered tools
//	toolshop describe <tool>                    Show a tool's documentation
//	toolshop run <tool> [--arg k=v]... [--json '{...}']
//	toolshop repl                               Interactive tool calls
//	toolshop serve [--addr host:port]           HTTP API
//	toolshop mcp                                MCP server on stdio
//	toolshop session show|reset                 Inspect stored sessions
//	toolshop version
//
// Global flags: --config, --log-preset, --yes, --session.
//
// Tools that require confirmation prompt on the terminal ("Type 'yes' to
// allow"). With --yes every call is approved; without a terminal, or under
// serve and mcp, calls are denied unless --yes was given.
package cli
