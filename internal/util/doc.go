// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across packages: crash-safe file
// writes, number formatting and width-aware truncation for terminal output.
//
//	display := util.TruncateWidth(description, 60)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
