// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
	"github.com/toolshop-ai/toolshop/internal/tools"
	"github.com/toolshop-ai/toolshop/internal/ui"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		argPairs []string
		jsonArgs string
	)

	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Run one tool call",
		Long: `Run one tool call and print its output.

Parameters come from --json (a JSON object) and --arg name=value pairs;
--arg wins when both set the same name. String values are converted to the
types the tool declares.

Use --session to keep read records between runs, so that a later edit in
the same session passes the read-before-write check.`,
		Example: `  toolshop run read_file --arg path=main.go --arg start_line=1 --arg end_line=20
  toolshop --session work run read_file --arg path=notes.txt
  toolshop --session work run insert_lines --json '{"path": "notes.txt", "text": "hi\n", "insert_line": 1}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := buildParams(jsonArgs, argPairs)
			if err != nil {
				return err
			}

			mgr, err := a.openSession()
			if err != nil {
				return err
			}
			defer a.closeSession(mgr)

			ts, err := a.newToolset(mgr.State(), true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res := runCall(ctx, a, ts, mgr, tools.ToolCall{Name: args[0], Params: params}, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if !res.Success {
				return res.Err
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&argPairs, "arg", "a", nil, "tool parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&jsonArgs, "json", "", "tool parameters as a JSON object")
	return cmd
}

// buildParams merges a JSON object with name=value pairs.
func buildParams(jsonArgs string, pairs []string) (map[string]interface{}, error) {
	params, err := tools.ParseParams(strings.TrimSpace(jsonArgs))
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, toolerr.New(toolerr.ErrInvalidArgument, "run", "", "--arg must be name=value, got %q", pair)
		}
		params[strings.TrimSpace(name)] = value
	}
	return params, nil
}

// runCall executes call, saves the session and prints the result: output
// to out, status lines to errOut.
func runCall(ctx context.Context, a *app, ts *tools.Toolset, mgr *session.Manager, call tools.ToolCall, out, errOut io.Writer) tools.Result {
	return runCalls(ctx, a, ts, mgr, []tools.ToolCall{call}, out, errOut)[0]
}

// runCalls executes calls in order, saves the session once and prints every
// result.
func runCalls(ctx context.Context, a *app, ts *tools.Toolset, mgr *session.Manager, calls []tools.ToolCall, out, errOut io.Writer) []tools.Result {
	results := ts.Executor.ExecuteBatch(ctx, calls)
	if err := mgr.Touch(); err != nil {
		a.logger.Warn("failed to save session", zap.Error(err))
	}
	for i, call := range calls {
		printResult(call, results[i], out, errOut)
	}
	return results
}

// printResult renders a Result for the terminal.
func printResult(call tools.ToolCall, res tools.Result, out, errOut io.Writer) {
	if !res.Success {
		printLine(errOut, ui.ErrorLine(res.Error))
		return
	}

	if res.Output != "" {
		output := res.Output
		if call.Name == tools.NameReadFile && ui.IsStdoutTTY() {
			output = ui.Highlight(output, call.GetString("path", ""))
		}
		fmt.Fprint(out, output)
		if !strings.HasSuffix(output, "\n") {
			fmt.Fprintln(out)
		}
	}

	if res.RedirectedTo != "" {
		printLine(errOut, ui.InfoLine("result written to "+res.RedirectedTo))
	}
	if res.Truncated {
		printLine(errOut, ui.WarningLine("output truncated"))
	}
	if res.Suppressed && res.RedirectedTo == "" {
		printLine(errOut, ui.SuccessLine(call.Name+" completed"))
	}
}
