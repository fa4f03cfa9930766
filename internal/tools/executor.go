// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/toolshop-ai/toolshop/internal/linestore"
	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// =============================================================================
// PERMISSION CALLBACK
// =============================================================================

// PermissionCallback is called before running a tool that requires
// confirmation. Returns true if the call is approved.
type PermissionCallback func(tool *Tool, params map[string]interface{}) bool

// AllowAllCallback returns a permission callback that allows all executions.
func AllowAllCallback() PermissionCallback {
	return func(tool *Tool, params map[string]interface{}) bool {
		return true
	}
}

// DenyAllCallback returns a permission callback that denies all executions.
func DenyAllCallback() PermissionCallback {
	return func(tool *Tool, params map[string]interface{}) bool {
		return false
	}
}

// =============================================================================
// HOOKS
// =============================================================================

// ArgumentValidator is implemented by executors that check their arguments
// beyond the schema types.
type ArgumentValidator interface {
	ValidateArgs(params map[string]interface{}) error
}

// PostCallHook is implemented by executors that act after the result has
// been logged and redirected.
type PostCallHook interface {
	PostCall(params map[string]interface{})
}

// =============================================================================
// EXECUTION RECORD
// =============================================================================

// ExecutionRecord tracks the result of a tool execution for audit purposes.
type ExecutionRecord struct {
	// ID uniquely identifies the execution
	ID string

	// ToolName is the name of the executed tool
	ToolName string

	// Params are the parameters passed to the tool
	Params map[string]interface{}

	// Result is the outcome of the execution
	Result Result

	// Timestamp is when the execution started
	Timestamp time.Time

	// Duration is how long the execution took
	Duration time.Duration

	// Approved is false when confirmation was denied
	Approved bool
}

// =============================================================================
// EXECUTOR
// =============================================================================

// DefaultToolTimeout is applied when neither the executor nor the context
// sets a deadline.
const DefaultToolTimeout = 120 * time.Second

// maxHistorySize bounds the in-memory execution history.
const maxHistorySize = 1000

// Executor runs tool calls through validation, confirmation, rate limiting,
// timeout handling, logging, result redirect and history recording.
type Executor struct {
	registry     *Registry
	state        *session.State
	logger       *zap.Logger
	fs           afero.Fs
	permissionCb PermissionCallback
	limiter      *rate.Limiter

	timeout       time.Duration
	maxOutputSize int

	mu      sync.Mutex
	history []ExecutionRecord
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger used for tool call blocks.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithState sets the session state whose result redirect is honoured.
func WithState(st *session.State) ExecutorOption {
	return func(e *Executor) { e.state = st }
}

// WithFs sets the filesystem redirected results are written to.
func WithFs(fsys afero.Fs) ExecutorOption {
	return func(e *Executor) {
		if fsys != nil {
			e.fs = fsys
		}
	}
}

// WithPermissionCallback sets the confirmation callback.
func WithPermissionCallback(cb PermissionCallback) ExecutorOption {
	return func(e *Executor) { e.permissionCb = cb }
}

// WithRateLimit caps calls per second. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) ExecutorOption {
	return func(e *Executor) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout bounds every call.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxOutputSize truncates outputs longer than n bytes. Zero disables it.
func WithMaxOutputSize(n int) ExecutorOption {
	return func(e *Executor) { e.maxOutputSize = n }
}

// NewExecutor creates a new tool executor over registry. Without a
// permission callback every tool that requires confirmation is denied.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:     registry,
		logger:       logging.Nop(),
		fs:           afero.NewOsFs(),
		permissionCb: DenyAllCallback(),
		timeout:      DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPermissionCallback replaces the confirmation callback.
func (e *Executor) SetPermissionCallback(cb PermissionCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.permissionCb = cb
}

// Registry returns the tool registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// State returns the session state, which may be nil.
func (e *Executor) State() *session.State {
	return e.state
}

// Logger returns the executor's logger.
func (e *Executor) Logger() *zap.Logger {
	return e.logger
}

// History returns a copy of the execution history.
func (e *Executor) History() []ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]ExecutionRecord, len(e.history))
	copy(result, e.history)
	return result
}

// ClearHistory clears the execution history.
func (e *Executor) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute runs a tool call and returns the result. Failures are reported in
// the Result; Result.Err carries the error for errors.Is matching.
func (e *Executor) Execute(ctx context.Context, call ToolCall) Result {
	start := time.Now()
	record := ExecutionRecord{
		ID:        uuid.NewString(),
		ToolName:  call.Name,
		Params:    call.Params,
		Timestamp: start,
		Approved:  true,
	}

	finish := func(result Result) Result {
		result.ID = record.ID
		result.Duration = time.Since(start)
		record.Duration = result.Duration
		record.Result = result
		e.addToHistory(record)
		return result
	}

	tool := e.registry.Get(call.Name)
	if tool == nil {
		err := toolerr.New(toolerr.ErrInvalidArgument, "execute", "", "unknown tool: %s", call.Name)
		return finish(failure(err))
	}

	logging.LogHeader(e.logger, tool.Name)
	logging.LogParams(e.logger, call.Params)

	params, err := e.prepareParams(tool, call.Params)
	if err != nil {
		e.logFailure(tool, err)
		return finish(failure(err))
	}
	record.Params = params

	if tool.RequireConfirmation && !e.confirm(tool, params) {
		record.Approved = false
		err := toolerr.New(toolerr.ErrConfirmationDenied, tool.Name, "",
			"Request to run %s was denied by the user.", tool.Name)
		e.logFailure(tool, err)
		return finish(failure(err))
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			err = fmt.Errorf("rate limit wait: %w", err)
			e.logFailure(tool, err)
			return finish(failure(err))
		}
	}

	result, err := e.run(ctx, tool, params)
	if err != nil {
		e.logFailure(tool, err)
		return finish(failure(err))
	}
	result.Success = true

	logging.LogResult(e.logger, result.Output)
	logging.LogFooter(e.logger, tool.Name)

	if path := e.state.ResultToFile(); path != "" {
		if err := e.redirect(path, result.Output); err != nil {
			e.logger.Warn("failed to write result to file", zap.String("path", path), zap.Error(err))
		} else {
			result.RedirectedTo = path
		}
		e.state.DisableResultToFile()
	}

	if hook, ok := tool.Executor.(PostCallHook); ok {
		hook.PostCall(params)
	}

	if e.maxOutputSize > 0 && len(result.Output) > e.maxOutputSize {
		result.Output = truncateUTF8(result.Output, e.maxOutputSize)
		result.Truncated = true
	}

	if !tool.ReturnResult {
		result.Output = ""
		result.Suppressed = true
	}

	return finish(result)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ExecuteBatch executes calls sequentially and returns their results.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []ToolCall) []Result {
	results := make([]Result, len(calls))
	for i, call := range calls {
		results[i] = e.Execute(ctx, call)
	}
	return results
}

// run executes the tool under the executor timeout.
func (e *Executor) run(ctx context.Context, tool *Tool, params map[string]interface{}) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := tool.Executor.Execute(ctx, params)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return Result{}, fmt.Errorf("tool execution timed out: %w", ctx.Err())
	}
}

// prepareParams coerces, defaults and validates call parameters.
func (e *Executor) prepareParams(tool *Tool, raw map[string]interface{}) (map[string]interface{}, error) {
	params, err := CoerceParams(tool.Schema, raw)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.ErrInvalidArgument, tool.Name, "", err)
	}

	for _, p := range tool.Schema.Parameters {
		if !hasParam(params, p.Name) && p.Default != nil {
			params[p.Name] = p.Default
		}
	}

	if err := ValidateToolArgs(&tool.Schema, params); err != nil {
		return nil, toolerr.Wrap(toolerr.ErrInvalidArgument, tool.Name, "", err)
	}
	if v, ok := tool.Executor.(ArgumentValidator); ok {
		if err := v.ValidateArgs(params); err != nil {
			if toolerr.KindOf(err) == nil {
				err = toolerr.Wrap(toolerr.ErrInvalidArgument, tool.Name, "", err)
			}
			return nil, err
		}
	}
	return params, nil
}

func (e *Executor) confirm(tool *Tool, params map[string]interface{}) bool {
	e.mu.Lock()
	cb := e.permissionCb
	e.mu.Unlock()

	if cb == nil {
		return false
	}
	return cb(tool, params)
}

// redirect overwrites path with output.
func (e *Executor) redirect(path, output string) error {
	path = linestore.ExpandHome(path)
	return afero.WriteFile(e.fs, path, []byte(output), 0644)
}

func (e *Executor) logFailure(tool *Tool, err error) {
	e.logger.Error(fmt.Sprintf("%s failed: %v", tool.Name, err))
	logging.LogFooter(e.logger, tool.Name)
}

// addToHistory adds an execution record to the history.
func (e *Executor) addToHistory(record ExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.history) >= maxHistorySize {
		e.history = e.history[len(e.history)-maxHistorySize+1:]
	}
	e.history = append(e.history, record)
}

func failure(err error) Result {
	return Result{
		Success: false,
		Error:   err.Error(),
		Err:     err,
	}
}

// =============================================================================
// STANDALONE VALIDATION FUNCTION
// =============================================================================

// ValidateToolArgs validates arguments against a schema: required
// parameters, types and string length.
func ValidateToolArgs(schema *Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	for _, param := range schema.Parameters {
		val, exists := args[param.Name]

		if param.Required && (!exists || val == nil) {
			return &ValidationError{
				Param:   param.Name,
				Message: "missing required argument",
			}
		}
		if !exists || val == nil {
			continue
		}

		if err := validateArgType(param, val); err != nil {
			return err
		}

		if str, ok := val.(string); ok {
			if err := validateStringLength(param, str); err != nil {
				return err
			}
		}
	}

	for name := range args {
		if _, ok := schema.Param(name); !ok {
			return &ValidationError{Param: name, Message: "unexpected argument"}
		}
	}

	return nil
}

// validateArgType validates the type of an argument.
func validateArgType(param Parameter, val interface{}) error {
	switch param.Type {
	case "string":
		if _, ok := val.(string); !ok {
			return &ValidationError{Param: param.Name, Message: "expected string type"}
		}
	case "integer":
		if !isWholeNumber(val) {
			return &ValidationError{Param: param.Name, Message: "expected integer type"}
		}
		if !fitsInt(val) {
			return &ValidationError{Param: param.Name, Message: "value out of range"}
		}
	case "number":
		switch val.(type) {
		case int, int64, int32, float64, float32:
		default:
			return &ValidationError{Param: param.Name, Message: "expected number type"}
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return &ValidationError{Param: param.Name, Message: "expected boolean type"}
		}
	case "array":
		switch val.(type) {
		case []interface{}, []string:
		default:
			return &ValidationError{Param: param.Name, Message: "expected array type"}
		}
	}
	return nil
}

// validateStringLength rejects strings over 10MB.
func validateStringLength(param Parameter, val string) error {
	const maxStringLength = 10 * 1024 * 1024

	if len(val) > maxStringLength {
		return &ValidationError{
			Param:   param.Name,
			Message: "string value exceeds maximum length",
		}
	}
	return nil
}

// =============================================================================
// TOOL CALL PARSING
// =============================================================================

// ParseToolCall parses a JSON tool call of the form
// {"name": "...", "parameters": {...}}. "arguments" and "input" are accepted
// in place of "parameters", and the arguments may be a JSON-encoded string.
func ParseToolCall(data string) (ToolCall, error) {
	if !gjson.Valid(data) {
		return ToolCall{}, toolerr.New(toolerr.ErrInvalidArgument, "parse", "", "invalid JSON tool call")
	}
	return toolCallFromResult(gjson.Parse(data))
}

// ParseToolCalls parses either a single tool call object or an array of them.
func ParseToolCalls(data string) ([]ToolCall, error) {
	if !gjson.Valid(data) {
		return nil, toolerr.New(toolerr.ErrInvalidArgument, "parse", "", "invalid JSON tool call")
	}
	parsed := gjson.Parse(data)
	if !parsed.IsArray() {
		call, err := toolCallFromResult(parsed)
		if err != nil {
			return nil, err
		}
		return []ToolCall{call}, nil
	}

	var calls []ToolCall
	var parseErr error
	parsed.ForEach(func(_, value gjson.Result) bool {
		call, err := toolCallFromResult(value)
		if err != nil {
			parseErr = err
			return false
		}
		calls = append(calls, call)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return calls, nil
}

// ParseParams parses a JSON object of tool parameters.
func ParseParams(data string) (map[string]interface{}, error) {
	if data == "" {
		return map[string]interface{}{}, nil
	}
	if !gjson.Valid(data) {
		return nil, toolerr.New(toolerr.ErrInvalidArgument, "parse", "", "invalid JSON parameters")
	}
	parsed := gjson.Parse(data)
	if !parsed.IsObject() {
		return nil, toolerr.New(toolerr.ErrInvalidArgument, "parse", "", "parameters must be a JSON object")
	}
	params, _ := parsed.Value().(map[string]interface{})
	return params, nil
}

func toolCallFromResult(r gjson.Result) (ToolCall, error) {
	if !r.IsObject() {
		return ToolCall{}, toolerr.New(toolerr.ErrInvalidArgument, "parse", "", "tool call must be a JSON object")
	}

	name := r.Get("name")
	if !name.Exists() {
		name = r.Get("function.name")
	}
	if name.String() == "" {
		return ToolCall{}, toolerr.New(toolerr.ErrInvalidArgument, "parse", "", "tool call has no name")
	}

	var args gjson.Result
	for _, key := range []string{"parameters", "arguments", "input", "function.arguments"} {
		if v := r.Get(key); v.Exists() {
			args = v
			break
		}
	}

	call := ToolCall{Name: name.String(), Params: map[string]interface{}{}}
	switch {
	case !args.Exists():
	case args.Type == gjson.String:
		params, err := ParseParams(args.String())
		if err != nil {
			return ToolCall{}, err
		}
		call.Params = params
	case args.IsObject():
		call.Params, _ = args.Value().(map[string]interface{})
	default:
		return ToolCall{}, toolerr.New(toolerr.ErrInvalidArgument, "parse", "", "arguments must be an object")
	}
	return call, nil
}

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ValidationError represents a parameter validation error.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Param + ": " + e.Message
}

// =============================================================================
// EXECUTION STATISTICS
// =============================================================================

// ExecutionStats provides statistics about tool executions.
type ExecutionStats struct {
	TotalExecutions int
	Successful      int
	Failed          int
	Denied          int
	TotalDuration   time.Duration
	AvgDuration     time.Duration
}

// Stats returns statistics about the execution history.
func (e *Executor) Stats() ExecutionStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := ExecutionStats{TotalExecutions: len(e.history)}
	for _, record := range e.history {
		switch {
		case !record.Approved:
			stats.Denied++
		case record.Result.Success:
			stats.Successful++
		default:
			stats.Failed++
		}
		stats.TotalDuration += record.Duration
	}

	if stats.TotalExecutions > 0 {
		stats.AvgDuration = stats.TotalDuration / time.Duration(stats.TotalExecutions)
	}
	return stats
}

// IsKind reports whether a result failed with the given error kind.
func (r Result) IsKind(kind error) bool {
	return r.Err != nil && errors.Is(r.Err, kind)
}
