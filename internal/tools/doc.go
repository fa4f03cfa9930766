// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools exposes local capabilities as named, self-documenting tools
// for an LLM agent.
//
// # Key Types
//
//   - Tool: declared name, description, parameter schema and flags
//   - Registry: tools by name
//   - Executor: runs a ToolCall through validation, confirmation, rate
//     limiting, timeout, logging and the result redirect
//   - Toolset: the configured registry and executor sharing one session
//
// # Available Tools
//
// File Tools (shared session state):
//   - read_file, read_directory, create_file
//   - insert_lines, delete_lines, replace_lines (require a fresh read)
//
// Terminal Tools:
//   - shell, python_exec, browse
//
// Data Tools:
//   - sql, histogram
//
// GCP Tools:
//   - get_big_query_table_schema, authenticate_to_gcp
//
// Meta Tools:
//   - enable_result_to_file
//
// File edits are not thread-safe. Callers must perform modifications of a
// given file sequentially.
package tools
