// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// =============================================================================
// TOOL NAMES
// =============================================================================

// Declared tool names. Callers invoke tools by these names.
const (
	NameReadFile       = "read_file"
	NameReadDirectory  = "read_directory"
	NameCreateFile     = "create_file"
	NameReplaceLines   = "replace_lines"
	NameInsertLines    = "insert_lines"
	NameDeleteLines    = "delete_lines"
	NameShell          = "shell"
	NamePythonExec     = "python_exec"
	NameBrowse         = "browse"
	NameSQL            = "sql"
	NameHistogram      = "histogram"
	NameResultToFile   = "enable_result_to_file"
	NameBigQuerySchema = "get_big_query_table_schema"
	NameAuthGCP        = "authenticate_to_gcp"
)

// FileToolNames lists the file tools in their canonical order.
var FileToolNames = []string{
	NameReadFile,
	NameReadDirectory,
	NameCreateFile,
	NameReplaceLines,
	NameInsertLines,
	NameDeleteLines,
}

// MaxDescriptionLength is the longest description a tool may declare.
const MaxDescriptionLength = 1024

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Tool represents an executable tool.
type Tool struct {
	// Name is the declared tool identifier (e.g., "read_file")
	Name string

	// Description explains what the tool does
	Description string

	// Usage is an optional example invocation appended to the documentation
	Usage string

	// Schema defines the tool's parameters
	Schema Schema

	// RequireConfirmation asks the permission callback before every call
	RequireConfirmation bool

	// ReturnResult controls whether the output is handed back to the caller.
	// When false the result is still logged and redirected.
	ReturnResult bool

	// Executor handles the actual execution
	Executor ToolExecutor
}

// Documentation renders the description, an Args block and the usage.
func (t *Tool) Documentation() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(t.Description))
	b.WriteString("\n\nArgs:\n")
	for _, p := range t.Schema.Parameters {
		typ := p.Type
		if !p.Required {
			typ += ", optional"
		}
		fmt.Fprintf(&b, "    %s (%s): %s\n", p.Name, typ, p.Description)
	}
	if t.Usage != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(t.Usage))
	}
	return b.String()
}

// Validate checks the tool definition itself.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return toolerr.New(toolerr.ErrInvalidArgument, "register", "", "tool has no name")
	}
	if t.Executor == nil {
		return toolerr.New(toolerr.ErrInvalidArgument, "register", "", "tool %s has no executor", t.Name)
	}
	if n := len(t.Description); n > MaxDescriptionLength {
		return toolerr.New(toolerr.ErrInvalidArgument, "register", "",
			"Description is too long for tool %s. Max length is %d but current description length is %d.",
			t.Name, MaxDescriptionLength, n)
	}
	return nil
}

// Schema defines a tool's parameters.
type Schema struct {
	Parameters []Parameter
}

// Parameter defines a single tool parameter.
type Parameter struct {
	// Name of the parameter
	Name string

	// Type is the parameter type ("string", "integer", "number", "boolean", "array")
	Type string

	// Required indicates if the parameter must be provided
	Required bool

	// Description explains the parameter
	Description string

	// Default is the value used when the parameter is omitted
	Default interface{}

	// Items is the element type of an array parameter
	Items string
}

// Param returns the named parameter definition.
func (s Schema) Param(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// =============================================================================
// TOOL EXECUTOR INTERFACE
// =============================================================================

// ToolExecutor is the interface for individual tool execution.
type ToolExecutor interface {
	Execute(ctx context.Context, params map[string]interface{}) (Result, error)
}

// ExecutorFunc adapts a function to ToolExecutor.
type ExecutorFunc func(ctx context.Context, params map[string]interface{}) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	return f(ctx, params)
}

// Result holds the outcome of a tool execution.
type Result struct {
	// ID identifies the execution in the history
	ID string

	// Success indicates if the tool executed successfully
	Success bool

	// Output is what the caller receives. Empty when the tool does not
	// return its result.
	Output string

	// Error is the error message (for failed execution)
	Error string

	// Err is the underlying error, matchable with errors.Is
	Err error

	// Duration is how long execution took
	Duration time.Duration

	// Truncated indicates output was truncated
	Truncated bool

	// Suppressed indicates the output was withheld from the caller
	Suppressed bool

	// RedirectedTo is the file the result was written to, if any
	RedirectedTo string

	// LinesCount for file reads and edits
	LinesCount int

	// BytesWritten for file operations
	BytesWritten int64
}

// =============================================================================
// TOOL REGISTRY
// =============================================================================

// Registry holds tools by declared name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry, replacing one with the same name.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
	return nil
}

// MustRegister is Register for built-in tools, panicking on a bad definition.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all registered tools sorted by name.
func (r *Registry) All() []*Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Tool, 0, len(names))
	for _, name := range names {
		result = append(result, r.tools[name])
	}
	return result
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// =============================================================================
// TOOL CALL
// =============================================================================

// ToolCall represents a tool invocation by name.
type ToolCall struct {
	Name   string
	Params map[string]interface{}
}

// GetString gets a string parameter with a default value.
func (tc *ToolCall) GetString(name string, defaultVal string) string {
	return getStringParam(tc.Params, name, defaultVal)
}

// GetInt gets an integer parameter with a default value.
func (tc *ToolCall) GetInt(name string, defaultVal int) int {
	return getIntParam(tc.Params, name, defaultVal)
}

// GetBool gets a boolean parameter with a default value.
func (tc *ToolCall) GetBool(name string, defaultVal bool) bool {
	return getBoolParam(tc.Params, name, defaultVal)
}
