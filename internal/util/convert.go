// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strconv"

// IntToString converts an int to string.
func IntToString(i int) string {
	return strconv.Itoa(i)
}

// FloatToString formats f with the fewest digits that round-trip, so 1.5
// prints as "1.5" and 2 as "2".
func FloatToString(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
