// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/linestore"
	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// =============================================================================
// FILE TOOL SET
// =============================================================================

// FileTools builds the line-oriented file tools. Every tool it builds shares
// one store and one session state.
type FileTools struct {
	store  *linestore.Store
	state  *session.State
	logger *zap.Logger
}

// NewFileTools returns a FileTools over store and state. A nil store uses
// the OS filesystem; a nil state disables staleness tracking.
func NewFileTools(store *linestore.Store, state *session.State, logger *zap.Logger) *FileTools {
	if store == nil {
		store = linestore.New(nil)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileTools{store: store, state: state, logger: logger}
}

// MakeFileTools returns the named file tools on the OS filesystem, sharing
// state. No names returns all six.
func MakeFileTools(state *session.State, names ...string) ([]*Tool, error) {
	return NewFileTools(nil, state, nil).Tools(names...)
}

// Tools returns the named tools in the order given. No names returns all
// of them in canonical order.
func (f *FileTools) Tools(names ...string) ([]*Tool, error) {
	if len(names) == 0 {
		names = FileToolNames
	}
	out := make([]*Tool, 0, len(names))
	for _, name := range names {
		tool := f.Tool(name)
		if tool == nil {
			return nil, toolerr.New(toolerr.ErrInvalidArgument, "file tools", "", "unknown file tool: %s", name)
		}
		out = append(out, tool)
	}
	return out, nil
}

// Tool returns a single file tool, or nil for an unknown name.
func (f *FileTools) Tool(name string) *Tool {
	switch name {
	case NameReadFile:
		return f.readFileTool()
	case NameReadDirectory:
		return f.readDirectoryTool()
	case NameCreateFile:
		return f.createFileTool()
	case NameReplaceLines:
		return f.replaceLinesTool()
	case NameInsertLines:
		return f.insertLinesTool()
	case NameDeleteLines:
		return f.deleteLinesTool()
	}
	return nil
}

// recordRead records a read, noting when there is no state to record into.
func (f *FileTools) recordRead(path string) {
	if !f.state.Enabled() {
		f.logger.Debug("No shared state provided for the tool. Ignoring read record.", zap.String("path", path))
		return
	}
	f.state.RecordRead(path)
}

func (f *FileTools) recordWrite(path string) {
	if !f.state.Enabled() {
		f.logger.Debug("No shared state provided for the tool. Ignoring write record.", zap.String("path", path))
		return
	}
	f.state.RecordWrite(path)
}

func (f *FileTools) assertFresh(path string) error {
	if !f.state.Enabled() {
		f.logger.Debug("No shared state provided for the tool. Skipping freshness check.", zap.String("path", path))
		return nil
	}
	return f.state.AssertFresh(path)
}

// edit runs a mutating operation behind the freshness check. A call whose
// context is already done leaves the file alone.
func (f *FileTools) edit(ctx context.Context, path, text string, start, end int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := f.assertFresh(path); err != nil {
		return Result{}, err
	}
	contents, err := f.store.Edit(path, text, start, end)
	if err != nil {
		return Result{}, err
	}
	// Recorded even if the caller gave up meanwhile: the file did change.
	f.recordWrite(path)

	return Result{
		Output:       contents,
		LinesCount:   len(linestore.SplitLines(contents)),
		BytesWritten: int64(len(contents)),
	}, nil
}

// =============================================================================
// READ FILE
// =============================================================================

func (f *FileTools) readFileTool() *Tool {
	return &Tool{
		Name: NameReadFile,
		Description: `Always use this read tool when reading contents of a file. This tool
is specifically designed for safely reading files and can include line
numbers in its output for easier reference. You must read a file before
modifying it with insert_lines, delete_lines or replace_lines.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "The path to the file."},
			{Name: "include_line_numbers", Type: "boolean", Description: "Whether to include line numbers in the returned contents. Defaults to True.", Default: true},
			{Name: "start_line", Type: "integer", Description: "The line number to start reading from. Uses one-based indexing."},
			{Name: "end_line", Type: "integer", Description: "The line number to stop reading at. Uses one-based indexing and is inclusive."},
		}},
		ReturnResult: true,
		Executor:     &readFileExecutor{f},
	}
}

type readFileExecutor struct{ *FileTools }

func (e *readFileExecutor) ValidateArgs(params map[string]interface{}) error {
	start := getIntParam(params, "start_line", 1)
	if start < 1 {
		return toolerr.New(toolerr.ErrInvalidArgument, NameReadFile, "", "start_line must be >= 1, got %d", start)
	}
	if hasParam(params, "end_line") {
		end := getIntParam(params, "end_line", 0)
		if end < start {
			return toolerr.New(toolerr.ErrInvalidArgument, NameReadFile, "", "end_line (%d) must be >= start_line (%d)", end, start)
		}
	}
	return nil
}

func (e *readFileExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	path := getStringParam(params, "path", "")

	opts := linestore.ReadOptions{
		LineNumbers: getBoolParam(params, "include_line_numbers", true),
	}
	if hasParam(params, "start_line") {
		opts.Start = getIntParam(params, "start_line", 1) - 1
	}
	if hasParam(params, "end_line") {
		opts.End = getIntParam(params, "end_line", 0)
	}

	output, err := e.store.Read(path, opts)
	if err != nil {
		return Result{}, err
	}
	// A caller that timed out never saw the contents.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	e.recordRead(path)

	return Result{Output: output, LinesCount: strings.Count(output, "\n")}, nil
}

// =============================================================================
// CREATE FILE
// =============================================================================

func (f *FileTools) createFileTool() *Tool {
	return &Tool{
		Name:        NameCreateFile,
		Description: `Creates a new file with the given contents. Fails if the file already exists. Parent directories are created as needed.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "The name of the file to write to."},
			{Name: "contents", Type: "string", Required: true, Description: "The content to write to the file."},
		}},
		ReturnResult: true,
		Executor:     &createFileExecutor{f},
	}
}

type createFileExecutor struct{ *FileTools }

func (e *createFileExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	path := getStringParam(params, "path", "")
	contents := getStringParam(params, "contents", "")

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	output, err := e.store.Create(path, contents)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: output, BytesWritten: int64(len(contents))}, nil
}

// =============================================================================
// REPLACE LINES
// =============================================================================

func (f *FileTools) replaceLinesTool() *Tool {
	return &Tool{
		Name: NameReplaceLines,
		Description: `Replaces the lines start_line to end_line with text in the specified file.
Uses one-based indexing, and end_line is inclusive. This operation must
replace at least one line. Always consider the broader code context in the
lines before and after your replacement, and use indentation that fits the
surrounding code. Consider the line that will follow your inserted text when
choosing end_line. NOT THREAD-SAFE. Perform all file modifications in a
sequential manner.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "The name of the file to write to."},
			{Name: "text", Type: "string", Required: true, Description: "The content to write to the file. Must end with a newline character."},
			{Name: "start_line", Type: "integer", Required: true, Description: "The line number of the start of the text block to replace."},
			{Name: "end_line", Type: "integer", Required: true, Description: "The line number of the end of the text block to replace. end_line is inclusive."},
		}},
		Executor: &replaceLinesExecutor{f},
	}
}

type replaceLinesExecutor struct{ *FileTools }

func (e *replaceLinesExecutor) ValidateArgs(params map[string]interface{}) error {
	return validateLineRange(NameReplaceLines, params)
}

func (e *replaceLinesExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	path := getStringParam(params, "path", "")
	text := getStringParam(params, "text", "")
	start := getIntParam(params, "start_line", 1)
	end := getIntParam(params, "end_line", start)

	return e.edit(ctx, path, text, start-1, end)
}

// =============================================================================
// INSERT LINES
// =============================================================================

func (f *FileTools) insertLinesTool() *Tool {
	return &Tool{
		Name: NameInsertLines,
		Description: `Inserts text at line insert_line. Text that was previously on or below
this line is shifted down. Uses one-based indexing. NOT THREAD-SAFE. Perform
file modifications in a sequential manner. Do not modify the same file in
parallel. Always consider the broader code context in the lines before and
after your insertion, and use indentation that fits the surrounding code.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "The name of the file to write to."},
			{Name: "text", Type: "string", Required: true, Description: "The content to write to the file. Must end with a newline character."},
			{Name: "insert_line", Type: "integer", Required: true, Description: "The line number to insert the content at. -1 will insert at the end of the file."},
		}},
		Executor: &insertLinesExecutor{f},
	}
}

type insertLinesExecutor struct{ *FileTools }

func (e *insertLinesExecutor) ValidateArgs(params map[string]interface{}) error {
	line := getIntParam(params, "insert_line", 0)
	if line != -1 && line < 1 {
		return toolerr.New(toolerr.ErrInvalidArgument, NameInsertLines, "", "insert_line must be -1 or >= 1, got %d", line)
	}
	return nil
}

func (e *insertLinesExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	path := getStringParam(params, "path", "")
	text := getStringParam(params, "text", "")
	line := getIntParam(params, "insert_line", -1)

	if line == -1 {
		return e.edit(ctx, path, text, -1, -1)
	}
	return e.edit(ctx, path, text, line-1, line-1)
}

// =============================================================================
// DELETE LINES
// =============================================================================

func (f *FileTools) deleteLinesTool() *Tool {
	return &Tool{
		Name: NameDeleteLines,
		Description: `Deletes lines start_line to end_line from the file. Uses one-based
indexing, and end_line is inclusive. Returns the contents of the file after
the deletion. NOT THREAD-SAFE. Perform file modifications in a sequential
manner. Do not modify the same file in parallel.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "The name of the file to delete lines from."},
			{Name: "start_line", Type: "integer", Required: true, Description: "The start line number of the range to delete."},
			{Name: "end_line", Type: "integer", Required: true, Description: "The end line number of the range to delete."},
		}},
		Executor: &deleteLinesExecutor{f},
	}
}

type deleteLinesExecutor struct{ *FileTools }

func (e *deleteLinesExecutor) ValidateArgs(params map[string]interface{}) error {
	return validateLineRange(NameDeleteLines, params)
}

func (e *deleteLinesExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	path := getStringParam(params, "path", "")
	start := getIntParam(params, "start_line", 1)
	end := getIntParam(params, "end_line", start)

	return e.edit(ctx, path, "", start-1, end)
}

// validateLineRange checks a 1-based inclusive start_line/end_line pair.
func validateLineRange(op string, params map[string]interface{}) error {
	start := getIntParam(params, "start_line", 0)
	end := getIntParam(params, "end_line", 0)
	if start < 1 {
		return toolerr.New(toolerr.ErrInvalidArgument, op, "", "start_line must be >= 1, got %d", start)
	}
	if end < start {
		return toolerr.New(toolerr.ErrInvalidArgument, op, "", "end_line (%d) must be >= start_line (%d)", end, start)
	}
	return nil
}
