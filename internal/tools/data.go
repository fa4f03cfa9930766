// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	_ "modernc.org/sqlite"

	"github.com/toolshop-ai/toolshop/internal/linestore"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
	"github.com/toolshop-ai/toolshop/internal/util"
)

// =============================================================================
// SQL
// =============================================================================

// SQLExecutor runs a query and renders the result set as CSV.
type SQLExecutor struct {
	// DefaultDriver is used for database URIs without a scheme
	DefaultDriver string

	// MaxRows caps the rows returned (0 = unlimited)
	MaxRows int
}

// SQLTool returns the sql tool.
func SQLTool(executor *SQLExecutor) *Tool {
	return &Tool{
		Name: NameSQL,
		Description: `Runs the sql query and returns the result set as a CSV string. Always try
this tool for running sql queries first before trying other methods.`,
		Usage: `sql(sql_query="select name, total from orders limit 5", database_uri="sqlite:///orders.db")`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "sql_query", Type: "string", Required: true, Description: "The sql query to run"},
			{Name: "database_uri", Type: "string", Required: true, Description: `The database connection string, "driver://dsn" (e.g. "sqlite:///data.db") or a path to a SQLite file.`},
		}},
		ReturnResult: true,
		Executor:     executor,
	}
}

// ParseDatabaseURI splits a database URI into a database/sql driver name and
// DSN. "sqlite:///rel.db" and "sqlite:////abs.db" follow the usual URL form;
// an empty sqlite path is an in-memory database and a bare path uses
// defaultDriver.
func ParseDatabaseURI(uri, defaultDriver string) (string, string) {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		if defaultDriver == "" {
			defaultDriver = "sqlite"
		}
		return defaultDriver, linestore.ExpandHome(uri)
	}

	driver := strings.ToLower(scheme)
	if i := strings.IndexByte(driver, '+'); i >= 0 {
		driver = driver[:i]
	}
	if driver == "sqlite" || driver == "sqlite3" {
		path := strings.TrimPrefix(rest, "/")
		if path == "" {
			return "sqlite", ":memory:"
		}
		return "sqlite", linestore.ExpandHome(path)
	}
	return driver, rest
}

// ValidateArgs checks the driver is registered.
func (e *SQLExecutor) ValidateArgs(params map[string]interface{}) error {
	driver, _ := ParseDatabaseURI(getStringParam(params, "database_uri", ""), e.DefaultDriver)
	for _, d := range sql.Drivers() {
		if d == driver {
			return nil
		}
	}
	return toolerr.New(toolerr.ErrInvalidArgument, NameSQL, "",
		"unsupported database driver %q (available: %s)", driver, strings.Join(sql.Drivers(), ", "))
}

// Execute runs the query.
func (e *SQLExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	query := getStringParam(params, "sql_query", "")
	driver, dsn := ParseDatabaseURI(getStringParam(params, "database_uri", ""), e.DefaultDriver)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	output, count, truncated, err := renderCSV(rows, e.MaxRows)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: output, LinesCount: count, Truncated: truncated}, nil
}

// renderCSV writes the column names joined by "," and then one line per
// row. NULL renders as an empty field.
func renderCSV(rows *sql.Rows, maxRows int) (string, int, bool, error) {
	columns, err := rows.Columns()
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to read columns: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, ","))

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	truncated := false
	for rows.Next() {
		if maxRows > 0 && count >= maxRows {
			truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", 0, false, fmt.Errorf("failed to scan row: %w", err)
		}
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = formatSQLValue(v)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(fields, ","))
		count++
	}
	if err := rows.Err(); err != nil {
		return "", 0, false, fmt.Errorf("row iteration failed: %w", err)
	}
	return b.String(), count, truncated, nil
}

func formatSQLValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// =============================================================================
// HISTOGRAM
// =============================================================================

// HistogramBarWidth is the width of the longest bar.
const HistogramBarWidth = 50

// histogramBar is the glyph bars are drawn with.
const histogramBar = "█"

// Bucket is one labelled histogram value.
type Bucket struct {
	Label string
	Value float64
}

// HistogramTool returns the histogram tool.
func HistogramTool() *Tool {
	return &Tool{
		Name: NameHistogram,
		Description: `Draws an ascii histogram of the data. Accepts a list of pairs representing
histogram bucket values. The first value of each pair is the bucket name and
the second value is the histogram value of the bucket. When user asks for a
histogram, always use this tool.`,
		Usage: `histogram(title="Chart Title", data=[["p0", 0], ["p25", 100], ["p50", 200], ["p75", 300]])`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "title", Type: "string", Required: true, Description: "The chart title."},
			{Name: "data", Type: "array", Items: "array", Required: true, Description: "List of [bucket name, value] pairs."},
			{Name: "sort", Type: "boolean", Description: "Order buckets by descending value. Defaults to False.", Default: false},
		}},
		ReturnResult: true,
		Executor:     histogramExecutor{},
	}
}

type histogramExecutor struct{}

func (histogramExecutor) ValidateArgs(params map[string]interface{}) error {
	_, err := parseBuckets(params["data"])
	return err
}

func (histogramExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	buckets, err := parseBuckets(params["data"])
	if err != nil {
		return Result{}, err
	}
	if getBoolParam(params, "sort", false) {
		SortBuckets(buckets)
	}
	output := RenderHistogram(getStringParam(params, "title", ""), buckets)
	return Result{Output: output, LinesCount: len(buckets) + 2}, nil
}

// RenderHistogram draws the title, a "#" underline of the same display
// width, and one line per bucket: the label padded to the widest label, a
// bar scaled to the largest value and the value itself.
func RenderHistogram(title string, buckets []Bucket) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("#", util.StringWidth(title)))
	b.WriteString("\n")

	labelWidth, valueWidth := 0, 0
	maxValue := 0.0
	for _, bucket := range buckets {
		labelWidth = max(labelWidth, util.StringWidth(bucket.Label))
		valueWidth = max(valueWidth, len(formatBucketValue(bucket.Value)))
		maxValue = math.Max(maxValue, bucket.Value)
	}

	for _, bucket := range buckets {
		length := 0
		if maxValue > 0 && bucket.Value > 0 {
			length = int(math.Round(bucket.Value / maxValue * HistogramBarWidth))
		}
		bar := strings.Repeat(histogramBar, length) + strings.Repeat(" ", HistogramBarWidth-length)

		fmt.Fprintf(&b, "%s  %s  %*s\n",
			runewidth.FillRight(bucket.Label, labelWidth),
			bar,
			valueWidth, formatBucketValue(bucket.Value))
	}
	return b.String()
}

func formatBucketValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseBuckets accepts [[label, value], ...] or [{"label":..., "value":...}, ...].
func parseBuckets(raw interface{}) ([]Bucket, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, toolerr.New(toolerr.ErrInvalidArgument, NameHistogram, "", "data must be a list of [label, value] pairs")
	}

	buckets := make([]Bucket, 0, len(items))
	for i, item := range items {
		var label, value interface{}
		switch v := item.(type) {
		case []interface{}:
			if len(v) != 2 {
				return nil, toolerr.New(toolerr.ErrInvalidArgument, NameHistogram, "", "data[%d] must have exactly two elements", i)
			}
			label, value = v[0], v[1]
		case map[string]interface{}:
			label, value = v["label"], v["value"]
		default:
			return nil, toolerr.New(toolerr.ErrInvalidArgument, NameHistogram, "", "data[%d] must be a [label, value] pair", i)
		}

		num, err := toFloat(value)
		if err != nil {
			return nil, toolerr.New(toolerr.ErrInvalidArgument, NameHistogram, "", "data[%d] value: %v", i, err)
		}
		buckets = append(buckets, Bucket{Label: fmt.Sprint(label), Value: num})
	}
	return buckets, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

// SortBuckets orders buckets by descending value, keeping ties stable.
func SortBuckets(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Value > buckets[j].Value })
}
