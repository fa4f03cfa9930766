// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "Echoes its message.",
		Schema: Schema{Parameters: []Parameter{
			{Name: "message", Type: "string", Required: true, Description: "Text to echo."},
			{Name: "times", Type: "integer", Description: "Repeat count.", Default: 1},
		}},
		ReturnResult: true,
		Executor: ExecutorFunc(func(ctx context.Context, params map[string]interface{}) (Result, error) {
			msg := getStringParam(params, "message", "")
			return Result{Output: strings.Repeat(msg, getIntParam(params, "times", 1))}, nil
		}),
	}
}

func newTestExecutor(t *testing.T, tools []*Tool, opts ...ExecutorOption) *Executor {
	t.Helper()
	reg := NewRegistry()
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	return NewExecutor(reg, opts...)
}

// =============================================================================
// PIPELINE
// =============================================================================

func TestExecute_Success(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")})

	res := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: map[string]interface{}{"message": "hi"}})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hi", res.Output)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.Suppressed)
}

func TestExecute_DefaultsAndCoercion(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")})

	res := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: map[string]interface{}{"message": "ab", "times": "3"}})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "ababab", res.Output)

	history := exec.History()
	require.Len(t, history, 1)
	assert.Equal(t, 3, history[0].Params["times"])
}

func TestExecute_UnknownTool(t *testing.T) {
	exec := newTestExecutor(t, nil)

	res := exec.Execute(context.Background(), ToolCall{Name: "nope"})
	assert.False(t, res.Success)
	assert.True(t, res.IsKind(toolerr.ErrInvalidArgument))
	assert.Contains(t, res.Error, "unknown tool: nope")
}

func TestExecute_ArgumentErrors(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")})

	tests := []struct {
		name   string
		params map[string]interface{}
		want   string
	}{
		{"missing", map[string]interface{}{}, "message: missing required argument"},
		{"unexpected", map[string]interface{}{"message": "x", "color": "red"}, "color: unexpected argument"},
		{"wrong type", map[string]interface{}{"message": 5}, "message: expected string type"},
		{"bad coercion", map[string]interface{}{"message": "x", "times": "many"}, "expected integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: tt.params})
			assert.True(t, res.IsKind(toolerr.ErrInvalidArgument))
			assert.Contains(t, res.Error, tt.want)
		})
	}
}

func TestExecute_ToolErrorKeepsKind(t *testing.T) {
	tool := echoTool("fail")
	tool.Executor = ExecutorFunc(func(ctx context.Context, params map[string]interface{}) (Result, error) {
		return Result{}, toolerr.New(toolerr.ErrNotFound, "fail", "/x", "gone")
	})
	exec := newTestExecutor(t, []*Tool{tool})

	res := exec.Execute(context.Background(), ToolCall{Name: "fail", Params: map[string]interface{}{"message": "x"}})
	assert.False(t, res.Success)
	assert.True(t, res.IsKind(toolerr.ErrNotFound))
	assert.Equal(t, "fail: gone", res.Error)
}

// =============================================================================
// CONFIRMATION
// =============================================================================

func TestExecute_ConfirmationDeniedByDefault(t *testing.T) {
	ran := false
	tool := echoTool("danger")
	tool.RequireConfirmation = true
	tool.Executor = ExecutorFunc(func(ctx context.Context, params map[string]interface{}) (Result, error) {
		ran = true
		return Result{Output: "done"}, nil
	})
	exec := newTestExecutor(t, []*Tool{tool})

	res := exec.Execute(context.Background(), ToolCall{Name: "danger", Params: map[string]interface{}{"message": "x"}})
	assert.False(t, ran)
	assert.True(t, res.IsKind(toolerr.ErrConfirmationDenied))
	assert.Equal(t, "danger: Request to run danger was denied by the user.", res.Error)

	history := exec.History()
	require.Len(t, history, 1)
	assert.False(t, history[0].Approved)
	assert.Equal(t, 1, exec.Stats().Denied)
}

func TestExecute_ConfirmationApproved(t *testing.T) {
	tool := echoTool("danger")
	tool.RequireConfirmation = true

	var asked *Tool
	exec := newTestExecutor(t, []*Tool{tool}, WithPermissionCallback(func(tl *Tool, params map[string]interface{}) bool {
		asked = tl
		return params["message"] == "ok"
	}))

	res := exec.Execute(context.Background(), ToolCall{Name: "danger", Params: map[string]interface{}{"message": "ok"}})
	require.True(t, res.Success, res.Error)
	require.NotNil(t, asked)
	assert.Equal(t, "danger", asked.Name)

	res = exec.Execute(context.Background(), ToolCall{Name: "danger", Params: map[string]interface{}{"message": "no"}})
	assert.True(t, res.IsKind(toolerr.ErrConfirmationDenied))

	exec.SetPermissionCallback(AllowAllCallback())
	res = exec.Execute(context.Background(), ToolCall{Name: "danger", Params: map[string]interface{}{"message": "no"}})
	assert.True(t, res.Success)
}

func TestExecute_NoConfirmationNeeded(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")}, WithPermissionCallback(DenyAllCallback()))

	res := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: map[string]interface{}{"message": "x"}})
	assert.True(t, res.Success)
}

// =============================================================================
// RESULT HANDLING
// =============================================================================

func TestExecute_ReturnResultFalse(t *testing.T) {
	tool := echoTool("quiet")
	tool.ReturnResult = false

	core, logs := observer.New(zap.DebugLevel)
	exec := newTestExecutor(t, []*Tool{tool}, WithLogger(zap.New(core)))

	res := exec.Execute(context.Background(), ToolCall{Name: "quiet", Params: map[string]interface{}{"message": "secret"}})
	require.True(t, res.Success)
	assert.Empty(t, res.Output)
	assert.True(t, res.Suppressed)

	// The result is still logged.
	found := false
	for _, entry := range logs.All() {
		if strings.Contains(entry.Message, "secret") {
			found = true
		}
	}
	assert.True(t, found, "suppressed output should still be logged")
}

func TestExecute_Truncation(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")}, WithMaxOutputSize(4))

	res := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: map[string]interface{}{"message": "abcdefgh"}})
	require.True(t, res.Success)
	assert.Equal(t, "abcd", res.Output)
	assert.True(t, res.Truncated)
}

func TestExecute_TruncationKeepsRunesWhole(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")}, WithMaxOutputSize(5))

	// "日本語" is three 3-byte runes; 5 bytes falls inside the second.
	res := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: map[string]interface{}{"message": "日本語"}})
	require.True(t, res.Success)
	assert.Equal(t, "日", res.Output)
	assert.True(t, utf8.ValidString(res.Output))
	assert.True(t, res.Truncated)
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abcdef", 3, "abc"},
		{"abc", 10, "abc"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本語", 6, "日本"},
		{"日本語", 2, ""},
		{"", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateUTF8(tt.in, tt.n), "%q[:%d]", tt.in, tt.n)
	}
}

func TestExecute_Timeout(t *testing.T) {
	tool := echoTool("slow")
	tool.Executor = ExecutorFunc(func(ctx context.Context, params map[string]interface{}) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	exec := newTestExecutor(t, []*Tool{tool}, WithTimeout(20*time.Millisecond))

	res := exec.Execute(context.Background(), ToolCall{Name: "slow", Params: map[string]interface{}{"message": "x"}})
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, context.DeadlineExceeded))
}

func TestExecute_RateLimitCancelled(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")}, WithRateLimit(0.001, 1))

	first := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: map[string]interface{}{"message": "x"}})
	require.True(t, first.Success)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	second := exec.Execute(ctx, ToolCall{Name: "echo", Params: map[string]interface{}{"message": "x"}})
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "rate limit")
}

// =============================================================================
// RESULT REDIRECT
// =============================================================================

func TestExecute_ResultToFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := session.New()
	exec := newTestExecutor(t, []*Tool{echoTool("echo"), ResultToFileTool(st)}, WithState(st), WithFs(fs))
	ctx := context.Background()

	arm := exec.Execute(ctx, ToolCall{Name: NameResultToFile, Params: map[string]interface{}{"path": "/out/result.txt"}})
	require.True(t, arm.Success, arm.Error)
	assert.Empty(t, arm.RedirectedTo, "the arming call itself is not redirected")
	assert.Equal(t, "/out/result.txt", st.ResultToFile())

	first := exec.Execute(ctx, ToolCall{Name: "echo", Params: map[string]interface{}{"message": "payload"}})
	require.True(t, first.Success)
	assert.Equal(t, "payload", first.Output)
	assert.Equal(t, "/out/result.txt", first.RedirectedTo)

	data, err := afero.ReadFile(fs, "/out/result.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Empty(t, st.ResultToFile())

	second := exec.Execute(ctx, ToolCall{Name: "echo", Params: map[string]interface{}{"message": "again"}})
	require.True(t, second.Success)
	assert.Empty(t, second.RedirectedTo)

	data, err = afero.ReadFile(fs, "/out/result.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestExecute_ResultToFileSkipsFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := session.New()
	exec := newTestExecutor(t, []*Tool{echoTool("echo"), ResultToFileTool(st)}, WithState(st), WithFs(fs))
	ctx := context.Background()

	require.True(t, exec.Execute(ctx, ToolCall{Name: NameResultToFile, Params: map[string]interface{}{"path": "/r.txt"}}).Success)

	failed := exec.Execute(ctx, ToolCall{Name: "echo", Params: map[string]interface{}{}})
	assert.False(t, failed.Success)
	assert.Equal(t, "/r.txt", st.ResultToFile())

	ok := exec.Execute(ctx, ToolCall{Name: "echo", Params: map[string]interface{}{"message": "z"}})
	assert.Equal(t, "/r.txt", ok.RedirectedTo)
}

func TestExecute_ResultToFileWithoutState(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{ResultToFileTool(nil)})

	res := exec.Execute(context.Background(), ToolCall{Name: NameResultToFile, Params: map[string]interface{}{"path": "/r.txt"}})
	require.True(t, res.Success)
	assert.Contains(t, res.Output, "not available")
}

func TestExecute_RedirectsSuppressedResult(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := session.New()
	quiet := echoTool("quiet")
	quiet.ReturnResult = false
	exec := newTestExecutor(t, []*Tool{quiet, ResultToFileTool(st)}, WithState(st), WithFs(fs))
	ctx := context.Background()

	require.True(t, exec.Execute(ctx, ToolCall{Name: NameResultToFile, Params: map[string]interface{}{"path": "/q.txt"}}).Success)
	res := exec.Execute(ctx, ToolCall{Name: "quiet", Params: map[string]interface{}{"message": "hidden"}})
	require.True(t, res.Success)
	assert.Empty(t, res.Output)

	data, err := afero.ReadFile(fs, "/q.txt")
	require.NoError(t, err)
	assert.Equal(t, "hidden", string(data))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestExecutor_HistoryAndStats(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")})
	ctx := context.Background()

	results := exec.ExecuteBatch(ctx, []ToolCall{
		{Name: "echo", Params: map[string]interface{}{"message": "a"}},
		{Name: "echo", Params: map[string]interface{}{}},
		{Name: "missing"},
	})
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.False(t, results[2].Success)

	stats := exec.Stats()
	assert.Equal(t, 3, stats.TotalExecutions)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 2, stats.Failed)

	exec.ClearHistory()
	assert.Empty(t, exec.History())
	assert.Equal(t, ExecutionStats{}, exec.Stats())
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name string
		data string
		want ToolCall
	}{
		{
			"parameters",
			`{"name": "read_file", "parameters": {"path": "a.txt"}}`,
			ToolCall{Name: "read_file", Params: map[string]interface{}{"path": "a.txt"}},
		},
		{
			"arguments string",
			`{"name": "read_file", "arguments": "{\"path\": \"b.txt\"}"}`,
			ToolCall{Name: "read_file", Params: map[string]interface{}{"path": "b.txt"}},
		},
		{
			"function form",
			`{"function": {"name": "shell", "arguments": {"command": "ls"}}}`,
			ToolCall{Name: "shell", Params: map[string]interface{}{"command": "ls"}},
		},
		{
			"input",
			`{"name": "histogram", "input": {"title": "t"}}`,
			ToolCall{Name: "histogram", Params: map[string]interface{}{"title": "t"}},
		},
		{
			"no arguments",
			`{"name": "authenticate_to_gcp"}`,
			ToolCall{Name: "authenticate_to_gcp", Params: map[string]interface{}{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToolCall(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseToolCall_Errors(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`[1, 2]`,
		`{"parameters": {}}`,
		`{"name": "x", "arguments": [1]}`,
		`{"name": "x", "arguments": "not json"}`,
	} {
		_, err := ParseToolCall(data)
		assert.ErrorIs(t, err, toolerr.ErrInvalidArgument, data)
	}
}

func TestParseToolCalls(t *testing.T) {
	calls, err := ParseToolCalls(`[{"name": "a"}, {"name": "b", "parameters": {"n": 1}}]`)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Name)
	assert.Equal(t, float64(1), calls[1].Params["n"])

	calls, err = ParseToolCalls(`{"name": "single"}`)
	require.NoError(t, err)
	require.Len(t, calls, 1)

	_, err = ParseToolCalls(`[{"name": "a"}, {"nope": true}]`)
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams("")
	require.NoError(t, err)
	assert.Empty(t, params)

	params, err = ParseParams(`{"data": [["a", 1]], "flag": true}`)
	require.NoError(t, err)
	assert.Equal(t, true, params["flag"])
	assert.Equal(t, []interface{}{[]interface{}{"a", float64(1)}}, params["data"])

	_, err = ParseParams(`"string"`)
	assert.ErrorIs(t, err, toolerr.ErrInvalidArgument)
}

func TestCoerceParams(t *testing.T) {
	schema := Schema{Parameters: []Parameter{
		{Name: "n", Type: "integer"},
		{Name: "f", Type: "number"},
		{Name: "b", Type: "boolean"},
		{Name: "list", Type: "array"},
		{Name: "json", Type: "array"},
		{Name: "s", Type: "string"},
	}}

	out, err := CoerceParams(schema, map[string]interface{}{
		"n":    " 42 ",
		"f":    "2.5",
		"b":    "true",
		"list": "a, b,,c",
		"json": `[["x", 1]]`,
		"s":    "7",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out["n"])
	assert.Equal(t, 2.5, out["f"])
	assert.Equal(t, true, out["b"])
	assert.Equal(t, []interface{}{"a", "b", "c"}, out["list"])
	assert.Equal(t, []interface{}{[]interface{}{"x", float64(1)}}, out["json"])
	assert.Equal(t, "7", out["s"])

	_, err = CoerceParams(schema, map[string]interface{}{"b": "maybe"})
	assert.Error(t, err)
	_, err = CoerceParams(schema, map[string]interface{}{"json": "[unclosed"})
	assert.Error(t, err)
}

func TestExecute_IntegerOutOfRange(t *testing.T) {
	exec := newTestExecutor(t, []*Tool{echoTool("echo")})

	for _, times := range []interface{}{1e300, -1e300, float64(math.MaxInt64), json.Number("9223372036854775807000")} {
		res := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: map[string]interface{}{
			"message": "x", "times": times,
		}})
		assert.True(t, res.IsKind(toolerr.ErrInvalidArgument), "%v", times)
		assert.NotContains(t, res.Error, "-9223372036854775808")
	}

	res := exec.Execute(context.Background(), ToolCall{Name: "echo", Params: map[string]interface{}{
		"message": "x", "times": 1e300,
	}})
	assert.Contains(t, res.Error, "value out of range")
}

func TestFitsInt(t *testing.T) {
	assert.True(t, fitsInt(3))
	assert.True(t, fitsInt(int64(-7)))
	assert.True(t, fitsInt(float64(1<<52)))
	assert.True(t, fitsInt(-9.223372036854775808e18))
	assert.True(t, fitsInt(json.Number("42")))

	assert.False(t, fitsInt(9.223372036854775808e18))
	assert.False(t, fitsInt(1e300))
	assert.False(t, fitsInt(json.Number("1e3")))
	assert.False(t, fitsInt("5"))
}
