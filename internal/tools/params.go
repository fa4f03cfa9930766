// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// =============================================================================
// PARAMETER HELPERS
// =============================================================================

// getIntParam gets an integer parameter with a default value.
func getIntParam(params map[string]interface{}, name string, defaultVal int) int {
	if val, ok := params[name]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
		}
	}
	return defaultVal
}

// getStringParam gets a string parameter with a default value.
func getStringParam(params map[string]interface{}, name string, defaultVal string) string {
	if val, ok := params[name]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// getBoolParam gets a boolean parameter with a default value.
func getBoolParam(params map[string]interface{}, name string, defaultVal bool) bool {
	if val, ok := params[name]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// getStringListParam gets a list of strings. A nil or missing value yields
// nil; a single string is treated as a one-element list.
func getStringListParam(params map[string]interface{}, name string) []string {
	val, ok := params[name]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// hasParam reports whether name was supplied with a non-nil value.
func hasParam(params map[string]interface{}, name string) bool {
	val, ok := params[name]
	return ok && val != nil
}

// =============================================================================
// COERCION
// =============================================================================

// CoerceParams converts string values to the types declared in the schema.
// CLI flags and query strings arrive as strings; JSON bodies arrive typed and
// pass through untouched.
func CoerceParams(schema Schema, params map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}

	for _, p := range schema.Parameters {
		raw, ok := out[p.Name].(string)
		if !ok {
			continue
		}
		switch p.Type {
		case "integer":
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, &ValidationError{Param: p.Name, Message: fmt.Sprintf("expected integer, got %q", raw)}
			}
			out[p.Name] = n
		case "number":
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, &ValidationError{Param: p.Name, Message: fmt.Sprintf("expected number, got %q", raw)}
			}
			out[p.Name] = f
		case "boolean":
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return nil, &ValidationError{Param: p.Name, Message: fmt.Sprintf("expected boolean, got %q", raw)}
			}
			out[p.Name] = b
		case "array":
			trimmed := strings.TrimSpace(raw)
			if strings.HasPrefix(trimmed, "[") {
				if !gjson.Valid(trimmed) {
					return nil, &ValidationError{Param: p.Name, Message: "invalid JSON array"}
				}
				out[p.Name] = gjson.Parse(trimmed).Value()
				continue
			}
			var items []interface{}
			for _, item := range strings.Split(raw, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			out[p.Name] = items
		}
	}
	return out, nil
}

// isWholeNumber reports whether v is an integer-valued number.
func isWholeNumber(v interface{}) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

// fitsInt reports whether a whole number converts to int without wrapping.
func fitsInt(v interface{}) bool {
	switch n := v.(type) {
	case int, int32:
		return true
	case int64:
		return n >= math.MinInt && n <= math.MaxInt
	case float64:
		// float64(math.MaxInt) rounds up to 2^63, hence the strict bound.
		return n >= math.MinInt && n < math.MaxInt
	case json.Number:
		i, err := n.Int64()
		return err == nil && i >= math.MinInt && i <= math.MaxInt
	}
	return false
}
