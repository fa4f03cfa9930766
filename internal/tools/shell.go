// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// =============================================================================
// COMMAND NORMALIZATION
// =============================================================================

// normalizeCommand folds unicode lookalikes to NFKC, lowercases and collapses
// whitespace so blocklist entries match however they were typed.
func normalizeCommand(cmd string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(cmd))), " ")
}

// blockedBy returns the blocklist entry matched by command, or "".
func blockedBy(command string, blocked []string) string {
	normalized := normalizeCommand(command)
	for _, b := range blocked {
		if nb := normalizeCommand(b); nb != "" && strings.Contains(normalized, nb) {
			return b
		}
	}
	return ""
}

// =============================================================================
// SHELL EXECUTOR
// =============================================================================

// ShellExecutor runs a command through a shell.
type ShellExecutor struct {
	// Shell is the interpreter (default bash, cmd on Windows)
	Shell string

	// WorkDir is the working directory (default: current)
	WorkDir string

	// BlockedCommands are rejected after normalization
	BlockedCommands []string

	Logger *zap.Logger
}

// ShellTool returns the shell tool.
func ShellTool(executor *ShellExecutor) *Tool {
	return &Tool{
		Name: NameShell,
		Description: `Execute the given shell command and return output. If you get errors, try
using the --help flag on the command you are running. Standard error follows
standard output, and the output ends with the exit code.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "command", Type: "string", Required: true, Description: "A shell command to execute."},
		}},
		ReturnResult: true,
		Executor:     executor,
	}
}

// ValidateArgs rejects empty and blocked commands.
func (e *ShellExecutor) ValidateArgs(params map[string]interface{}) error {
	command := getStringParam(params, "command", "")
	if strings.TrimSpace(command) == "" {
		return toolerr.New(toolerr.ErrInvalidArgument, NameShell, "", "command is required")
	}
	if b := blockedBy(command, e.BlockedCommands); b != "" {
		return toolerr.New(toolerr.ErrInvalidArgument, NameShell, "", "command is blocked: matches %q", b)
	}
	return nil
}

// Execute runs the command. A non-zero exit status is reported in the
// output, not as an error.
func (e *ShellExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	command := getStringParam(params, "command", "")

	output, _, err := runShell(ctx, shellRun{
		shell:           e.Shell,
		command:         command,
		dir:             e.WorkDir,
		logger:          e.Logger,
		logLines:        true,
		includeExitCode: true,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Output: output}, nil
}

// =============================================================================
// SHELL HELPER
// =============================================================================

type shellRun struct {
	shell           string
	command         string
	dir             string
	logger          *zap.Logger
	logLines        bool
	includeExitCode bool
}

// runShell streams stdout line by line, then appends stderr and, if asked,
// an "[exit code N]" line.
func runShell(ctx context.Context, r shellRun) (string, int, error) {
	logger := r.logger
	if logger == nil {
		logger = logging.Nop()
	}

	cmd := shellCommand(ctx, r.shell, r.command)
	cmd.Dir = r.dir
	cmd.Env = sanitizeEnvironment()
	configureProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", -1, fmt.Errorf("failed to open stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", -1, fmt.Errorf("failed to start command: %w", err)
	}

	var out strings.Builder
	reader := bufio.NewReader(stdout)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			if r.logLines {
				logger.Info(strings.TrimSuffix(line, "\n"))
			}
			out.WriteString(line)
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && !errors.Is(readErr, os.ErrClosed) {
				logger.Warn("stdout read failed", zap.Error(readErr))
			}
			break
		}
	}

	waitErr := cmd.Wait()

	if stderr.Len() > 0 {
		if r.logLines {
			logger.Info(stderr.String())
		}
		out.Write(stderr.Bytes())
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out.String(), -1, fmt.Errorf("command %q interrupted: %w", r.command, ctxErr)
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out.String(), -1, fmt.Errorf("command failed: %w", waitErr)
		}
		code = exitErr.ExitCode()
	}

	if r.includeExitCode {
		msg := fmt.Sprintf("[exit code %d]", code)
		logger.Info(msg)
		out.WriteString(msg + "\n")
	}
	return out.String(), code, nil
}

// shellCommand builds the interpreter invocation for command.
func shellCommand(ctx context.Context, shell, command string) *exec.Cmd {
	if shell == "" {
		shell = "bash"
		if runtime.GOOS == "windows" {
			shell = "cmd"
		}
	}
	if strings.EqualFold(shell, "cmd") || strings.EqualFold(shell, "cmd.exe") {
		return exec.CommandContext(ctx, shell, "/C", command)
	}
	return exec.CommandContext(ctx, shell, "-c", command)
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// dangerousEnvPrefixes are dropped from child environments.
var dangerousEnvPrefixes = []string{"LD_", "DYLD_", "BASH_FUNC_"}

// dangerousEnvVars are dropped from child environments.
var dangerousEnvVars = map[string]bool{
	"BASH_ENV":       true,
	"ENV":            true,
	"PROMPT_COMMAND": true,
	"PS4":            true,
	"SHELLOPTS":      true,
}

// sanitizeEnvironment returns the current environment minus variables that
// change how shells and the dynamic loader behave.
func sanitizeEnvironment() []string {
	current := getEnviron()
	result := make([]string, 0, len(current))
	for _, env := range current {
		idx := strings.Index(env, "=")
		if idx <= 0 {
			continue
		}
		key := strings.ToUpper(env[:idx])
		if dangerousEnvVars[key] || hasAnyPrefix(key, dangerousEnvPrefixes) {
			continue
		}
		result = append(result, env)
	}
	return result
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// getEnviron returns the current environment (abstracted for testing).
var getEnviron = os.Environ
