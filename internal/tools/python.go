// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/logging"
)

// varsMarker separates the user's own output from the harness payload.
const varsMarker = "\x00__toolshop_vars__\x00"

// pythonHarness executes the code read from stdin in a fresh scope and
// prints the requested variables as a JSON object after varsMarker. Values
// JSON cannot encode are returned as their repr().
const pythonHarness = `import json, sys
_code = sys.stdin.read()
_names = json.loads(sys.argv[1])
_scope = {"__name__": "__main__"}
exec(compile(_code, "<python_exec>", "exec"), _scope)
_out = {}
for _k in _names:
    if _k in _scope:
        try:
            json.dumps(_scope[_k])
            _out[_k] = _scope[_k]
        except (TypeError, ValueError):
            _out[_k] = repr(_scope[_k])
sys.stdout.flush()
sys.stdout.write(` + "\"\\x00__toolshop_vars__\\x00\"" + ` + json.dumps(_out))
`

// PythonExecutor runs Python code in a separate interpreter process inside
// an empty temporary directory with a minimal environment.
type PythonExecutor struct {
	Interpreter string
	Timeout     time.Duration
	Logger      *zap.Logger
}

// PythonExecTool returns the python_exec tool.
func PythonExecTool(executor *PythonExecutor) *Tool {
	return &Tool{
		Name: NamePythonExec,
		Description: `Executes python code in a separate, sandboxed Python process. Returns the
requested variables from the scope the code ran in, as a JSON object.`,
		Usage: `python_exec(code="a = 1+1", vars=["a"])  ->  {"a": 2}`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "code", Type: "string", Required: true, Description: "String of python code to execute"},
			{Name: "vars", Type: "array", Items: "string", Required: true, Description: "List of variable names to return from the scope"},
		}},
		ReturnResult: true,
		Executor:     executor,
	}
}

// Execute runs the code and returns the JSON object of requested variables.
func (e *PythonExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	code := getStringParam(params, "code", "")
	names := getStringListParam(params, "vars")
	if names == nil {
		names = []string{}
	}
	namesJSON, err := json.Marshal(names)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode vars: %w", err)
	}

	sandbox, err := os.MkdirTemp("", "toolshop-python-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create sandbox: %w", err)
	}
	defer os.RemoveAll(sandbox)

	harness := filepath.Join(sandbox, "harness.py")
	if err := os.WriteFile(harness, []byte(pythonHarness), 0600); err != nil {
		return Result{}, fmt.Errorf("failed to write harness: %w", err)
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	interpreter := e.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}

	cmd := exec.CommandContext(ctx, interpreter, "-I", harness, string(namesJSON))
	cmd.Dir = sandbox
	cmd.Env = sandboxEnvironment(sandbox)
	cmd.Stdin = strings.NewReader(code)
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("python_exec interrupted: %w", ctxErr)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return Result{}, fmt.Errorf("python exited with code %d:\n%s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return Result{}, fmt.Errorf("failed to run %s: %w", interpreter, runErr)
	}

	printed, payload, found := strings.Cut(stdout.String(), varsMarker)
	if !found {
		return Result{}, fmt.Errorf("python_exec produced no result payload")
	}
	if printed != "" {
		logger.Info(strings.TrimSuffix(printed, "\n"))
	}
	if !gjson.Valid(payload) || !gjson.Parse(payload).IsObject() {
		return Result{}, fmt.Errorf("python_exec returned malformed payload: %q", payload)
	}

	return Result{Output: payload}, nil
}

// sandboxEnvironment is the minimal environment of the Python child: PATH
// to find the interpreter, and HOME/TMPDIR pointing into the sandbox.
func sandboxEnvironment(dir string) []string {
	env := []string{
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONIOENCODING=utf-8",
	}
	if path := os.Getenv("PATH"); path != "" {
		env = append(env, "PATH="+path)
	}
	if root := os.Getenv("SYSTEMROOT"); root != "" {
		env = append(env, "SYSTEMROOT="+root)
	}
	return env
}
