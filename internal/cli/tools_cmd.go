// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/toolshop-ai/toolshop/internal/ui"
)

// Output formats accepted by "tools --format".
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

func newToolsCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := a.newToolset(nil, false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch format {
			case FormatTable:
				printLine(out, ui.ToolTable(ts.Registry.All(), ui.TerminalWidth()))
			case FormatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ts.Registry.Manifest())
			case FormatYAML:
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(ts.Registry.Manifest()); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown format %q, must be one of: %s, %s, %s",
					format, FormatTable, FormatJSON, FormatYAML)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", FormatTable, "output format: table, json or yaml")
	return cmd
}

func newDescribeCommand(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "describe <tool>",
		Short: "Show a tool's documentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := a.newToolset(nil, false)
			if err != nil {
				return err
			}
			tool := ts.Registry.Get(args[0])
			if tool == nil {
				return fmt.Errorf("unknown tool: %s", args[0])
			}

			out := cmd.OutOrStdout()
			if raw {
				printLine(out, tool.Documentation())
				return nil
			}
			fmt.Fprint(out, ui.RenderMarkdown(ui.ToolMarkdown(tool), ui.TerminalWidth()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the plain documentation handed to models")
	return cmd
}
