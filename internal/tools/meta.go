// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"

	"github.com/toolshop-ai/toolshop/internal/session"
)

// ResultToFileTool arms the session's result redirect. The redirect is set
// after this call's own result has been handled, so it applies to the next
// call only.
func ResultToFileTool(state *session.State) *Tool {
	return &Tool{
		Name: NameResultToFile,
		Description: `After this tool is called, the output of the following tool call will be
written to the specified file.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "The path to the file where the output will be written."},
		}},
		ReturnResult: true,
		Executor:     &resultToFileExecutor{state: state},
	}
}

type resultToFileExecutor struct {
	state *session.State
}

func (e *resultToFileExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	path := getStringParam(params, "path", "")
	if !e.state.Enabled() {
		return Result{Output: "No shared state provided; the result redirect is not available."}, nil
	}
	return Result{Output: fmt.Sprintf("The next tool result will be written to %q", path)}, nil
}

// PostCall arms the redirect.
func (e *resultToFileExecutor) PostCall(params map[string]interface{}) {
	e.state.EnableResultToFile(getStringParam(params, "path", ""))
}
