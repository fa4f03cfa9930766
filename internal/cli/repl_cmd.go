// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/toolshop-ai/toolshop/internal/config"
	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/tools"
	"github.com/toolshop-ai/toolshop/internal/ui"
	"github.com/toolshop-ai/toolshop/internal/ui/styles"
)

// historyFileName is the REPL history file in the config directory.
const historyFileName = "repl_history"

const replHelp = `Enter a tool call as either:
  <tool> {"param": "value", ...}
  {"name": "<tool>", "parameters": {...}}      (or a JSON array of calls)

Commands:
  /tools            list tools
  /describe <tool>  show a tool's documentation
  /session          show session status
  /reset            forget every read and write record
  /help             show this help
  /exit             leave`

func newReplCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Call tools interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openSession()
			if err != nil {
				return err
			}
			defer a.closeSession(mgr)

			ts, err := a.newToolset(mgr.State(), true)
			if err != nil {
				return err
			}

			r := &repl{app: a, toolset: ts, session: mgr, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			if ui.IsTTY() {
				return r.runInteractive(cmd.Context())
			}
			return r.runScript(cmd.Context(), cmd.InOrStdin())
		},
	}
}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	app     *app
	toolset *tools.Toolset
	session *session.Manager
	out     io.Writer
	errOut  io.Writer
}

// runInteractive reads lines with history and line editing until Ctrl+C,
// Ctrl+D or /exit.
func (r *repl) runInteractive(ctx context.Context) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, historyFileName)
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyFile == "" {
			return
		}
		if err := os.MkdirAll(filepath.Dir(historyFile), 0700); err != nil {
			return
		}
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	printLine(r.out, styles.Title.Render("toolshop")+" "+styles.Hint.Render("session "+r.session.SessionID()+", /help for help"))

	for {
		input, err := line.Prompt("toolshop> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if !r.handle(ctx, input) {
			return nil
		}
	}
}

// runScript reads one command per line from in, for piped input.
func (r *repl) runScript(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if !r.handle(ctx, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// handle runs one input line. It returns false when the REPL should exit.
func (r *repl) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return true
	}
	if strings.HasPrefix(input, "/") {
		return r.command(input)
	}

	calls, err := parseReplInput(input)
	if err != nil {
		printLine(r.errOut, ui.ErrorLine(err.Error()))
		return true
	}
	expired, err := r.session.ExpireIfIdle()
	if err != nil {
		printLine(r.errOut, ui.ErrorLine(err.Error()))
	} else if expired {
		printLine(r.errOut, ui.WarningLine("session was idle too long, files must be read again"))
	}
	runCalls(ctx, r.app, r.toolset, r.session, calls, r.out, r.errOut)
	return true
}

// command handles a slash command.
func (r *repl) command(input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/exit", "/quit":
		return false
	case "/help":
		printLine(r.out, replHelp)
	case "/tools":
		printLine(r.out, ui.ToolTable(r.toolset.Registry.All(), ui.TerminalWidth()))
	case "/describe":
		if len(fields) != 2 {
			printLine(r.errOut, ui.ErrorLine("usage: /describe <tool>"))
			break
		}
		tool := r.toolset.Registry.Get(fields[1])
		if tool == nil {
			printLine(r.errOut, ui.ErrorLine("unknown tool: "+fields[1]))
			break
		}
		fmt.Fprint(r.out, ui.RenderMarkdown(ui.ToolMarkdown(tool), ui.TerminalWidth()))
	case "/session":
		printStatus(r.out, r.session.GetStatus())
	case "/reset":
		if err := r.session.Reset(); err != nil {
			printLine(r.errOut, ui.ErrorLine(err.Error()))
			break
		}
		printLine(r.out, ui.SuccessLine("session reset"))
	default:
		printLine(r.errOut, ui.ErrorLine("unknown command "+fields[0]+", /help for help"))
	}
	return true
}

// parseReplInput accepts a JSON tool call (or array of them) or
// "<tool> [json params]".
func parseReplInput(input string) ([]tools.ToolCall, error) {
	if strings.HasPrefix(input, "{") || strings.HasPrefix(input, "[") {
		return tools.ParseToolCalls(input)
	}
	name, rest, _ := strings.Cut(input, " ")
	params, err := tools.ParseParams(strings.TrimSpace(rest))
	if err != nil {
		return nil, err
	}
	return []tools.ToolCall{{Name: name, Params: params}}, nil
}
