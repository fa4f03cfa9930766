// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the tool registry over HTTP.
//
// # Endpoints
//
//   - GET  /healthz       - Health check
//   - GET  /tools         - Manifest of every registered tool
//   - GET  /tools/{name}  - Manifest entry of one tool
//   - POST /tools/{name}  - Run a tool; the body is a JSON object of parameters
//
// Calls return {"output": ..., "error": ...}. Failed calls map the error kind
// to a status code: not found 404, already exists 409, format 422,
// precondition 412, confirmation denied 403, invalid argument 400, anything
// else 500.
//
// Calls go through the same Executor as the CLI, so tools that require
// confirmation are denied unless the server was started with --yes.
package server
